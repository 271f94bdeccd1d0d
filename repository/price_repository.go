package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"buildbank/models"
)

// PriceRepository appends and queries observed prices.
type PriceRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPriceRepository(db *sql.DB) *PriceRepository {
	return &PriceRepository{db: db, now: time.Now}
}

// InsertPriceRecord appends rec and sets its ID. Existing rows are never
// updated.
func (r *PriceRepository) InsertPriceRecord(ctx context.Context, rec *models.PriceRecord) error {
	query := `
		INSERT INTO prices (material_id, vendor_id, price, currency, unit, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.MaterialID, rec.VendorID, rec.Price, rec.Currency, nullable(rec.Unit), rec.FetchedAt.UTC(),
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert price for material %d vendor %d: %w", rec.MaterialID, rec.VendorID, err)
	}
	return nil
}

// PriceHistory returns prices of a material fetched in the last days days,
// oldest first. vendorID 0 means every vendor.
func (r *PriceRepository) PriceHistory(ctx context.Context, materialID, vendorID int64, days int) ([]models.PriceRecord, error) {
	if days <= 0 {
		days = 30
	}
	since := r.now().UTC().AddDate(0, 0, -days)

	query := `
		SELECT id, material_id, vendor_id, price, currency, unit, fetched_at
		FROM prices
		WHERE material_id = $1 AND ($2 = 0 OR vendor_id = $2) AND fetched_at >= $3
		ORDER BY fetched_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, materialID, vendorID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history for material %d: %w", materialID, err)
	}
	defer rows.Close()
	return scanPrices(rows)
}

// LatestForMaterial returns the newest price from each vendor for a material.
func (r *PriceRepository) LatestForMaterial(ctx context.Context, materialID int64) ([]models.PriceRecord, error) {
	query := `
		SELECT p.id, p.material_id, p.vendor_id, p.price, p.currency, p.unit, p.fetched_at
		FROM prices p
		WHERE p.material_id = $1 AND p.id = (
			SELECT p2.id FROM prices p2
			WHERE p2.material_id = p.material_id AND p2.vendor_id = p.vendor_id
			ORDER BY p2.fetched_at DESC, p2.id DESC
			LIMIT 1
		)
		ORDER BY p.vendor_id
	`
	rows, err := r.db.QueryContext(ctx, query, materialID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest prices for material %d: %w", materialID, err)
	}
	defer rows.Close()
	return scanPrices(rows)
}

func scanPrices(rows *sql.Rows) ([]models.PriceRecord, error) {
	records := []models.PriceRecord{}
	for rows.Next() {
		var (
			rec  models.PriceRecord
			unit sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.MaterialID, &rec.VendorID, &rec.Price, &rec.Currency, &unit, &rec.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		rec.Unit = unit.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
