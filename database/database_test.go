package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, Postgres, DialectFor("postgres://u@localhost/db"))
	assert.Equal(t, Postgres, DialectFor("postgresql://u@localhost/db"))
	assert.Equal(t, SQLite, DialectFor("buildbank.db"))
	assert.Equal(t, SQLite, DialectFor(":memory:"))
}

func TestCreateTablesIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, filepath.Join(t.TempDir(), "bb.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, CreateTables(ctx, db, dialect))
	require.NoError(t, CreateTables(ctx, db, dialect))

	for _, table := range []string{"vendors", "materials", "material_vendor_links", "vendor_configs", "prices", "settings"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestPricesRejectNegative(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, CreateTables(ctx, db, dialect))

	_, err = db.ExecContext(ctx, `INSERT INTO vendors (name) VALUES ('v')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO materials (name) VALUES ('m')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO prices (material_id, vendor_id, price, fetched_at) VALUES (1, 1, -1, CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}
