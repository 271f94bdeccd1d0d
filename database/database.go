package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect is the SQL flavour behind a connection.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DialectFor picks Postgres for postgres:// URLs and SQLite for anything
// else, which is treated as a file path or ":memory:".
func DialectFor(url string) Dialect {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects and pings the database named by url.
func Open(ctx context.Context, url string) (*sql.DB, Dialect, error) {
	dialect := DialectFor(url)

	dsn := url
	if dialect == SQLite {
		dsn = sqliteDSN(url)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == SQLite {
		// one connection keeps ":memory:" databases shared and writes serialised
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}
	return db, dialect, nil
}

func sqliteDSN(path string) string {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	switch {
	case path == ":memory:":
		return "file::memory:?" + pragmas
	case strings.HasPrefix(path, "file:"):
		return path
	}
	return "file:" + path + "?" + pragmas
}

// CreateTables creates the schema if it does not exist.
func CreateTables(ctx context.Context, db *sql.DB, dialect Dialect) error {
	id := "SERIAL PRIMARY KEY"
	ts := "TIMESTAMPTZ"
	float := "DOUBLE PRECISION"
	if dialect == SQLite {
		id = "INTEGER PRIMARY KEY AUTOINCREMENT"
		ts = "TIMESTAMP"
		float = "REAL"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS vendors (
			id ` + id + `,
			name TEXT NOT NULL,
			base_url TEXT,
			notes TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS materials (
			id ` + id + `,
			name TEXT NOT NULL,
			category TEXT,
			unit TEXT,
			description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS material_vendor_links (
			id ` + id + `,
			material_id INTEGER NOT NULL REFERENCES materials(id) ON DELETE CASCADE,
			vendor_id INTEGER NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
			sku TEXT,
			product_url TEXT,
			notes TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS vendor_configs (
			id ` + id + `,
			vendor_id INTEGER NOT NULL UNIQUE REFERENCES vendors(id) ON DELETE CASCADE,
			price_selectors TEXT,
			location_triggers TEXT,
			zip_inputs TEXT,
			store_result_selectors TEXT,
			search_url_template TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id ` + id + `,
			material_id INTEGER NOT NULL REFERENCES materials(id) ON DELETE CASCADE,
			vendor_id INTEGER NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
			price ` + float + ` NOT NULL CHECK (price >= 0),
			currency TEXT NOT NULL DEFAULT 'USD',
			unit TEXT,
			fetched_at ` + ts + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_links_material ON material_vendor_links (material_id)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_lookup ON prices (material_id, vendor_id, fetched_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
