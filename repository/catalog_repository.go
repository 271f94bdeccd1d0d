package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"buildbank/models"
)

// ErrNotFound is returned when a row looked up by id does not exist.
var ErrNotFound = errors.New("not found")

// CatalogRepository manages vendors, materials, links and vendor configs.
// The price updater only reads through it.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateVendor inserts v and sets its ID.
func (r *CatalogRepository) CreateVendor(ctx context.Context, v *models.Vendor) error {
	query := `
		INSERT INTO vendors (name, base_url, notes)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, v.Name, nullable(v.BaseURL), nullable(v.Notes)).Scan(&v.ID); err != nil {
		return fmt.Errorf("failed to create vendor: %w", err)
	}
	return nil
}

// ListVendors returns all vendors ordered by id.
func (r *CatalogRepository) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, base_url, notes FROM vendors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		var (
			v           models.Vendor
			base, notes sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Name, &base, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		v.BaseURL, v.Notes = base.String, notes.String
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// DeleteVendor removes a vendor and, by cascade, its links, config and prices.
func (r *CatalogRepository) DeleteVendor(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "vendors", id)
}

// CreateMaterial inserts m and sets its ID.
func (r *CatalogRepository) CreateMaterial(ctx context.Context, m *models.Material) error {
	query := `
		INSERT INTO materials (name, category, unit, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		m.Name, nullable(m.Category), nullable(m.Unit), nullable(m.Description),
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

// ListMaterials returns all materials ordered by id.
func (r *CatalogRepository) ListMaterials(ctx context.Context) ([]models.Material, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, category, unit, description FROM materials ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	var materials []models.Material
	for rows.Next() {
		var (
			m                    models.Material
			category, unit, desc sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &category, &unit, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		m.Category, m.Unit, m.Description = category.String, unit.String, desc.String
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// DeleteMaterial removes a material with its links and prices.
func (r *CatalogRepository) DeleteMaterial(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "materials", id)
}

// CreateLink inserts l and sets its ID.
func (r *CatalogRepository) CreateLink(ctx context.Context, l *models.VendorLink) error {
	query := `
		INSERT INTO material_vendor_links (material_id, vendor_id, sku, product_url, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		l.MaterialID, l.VendorID, nullable(l.SKU), nullable(l.ProductURL), nullable(l.Notes),
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// ListLinksForMaterial returns the vendor links of one material.
func (r *CatalogRepository) ListLinksForMaterial(ctx context.Context, materialID int64) ([]models.VendorLink, error) {
	query := `
		SELECT id, material_id, vendor_id, sku, product_url, notes
		FROM material_vendor_links
		WHERE material_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, materialID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links for material %d: %w", materialID, err)
	}
	defer rows.Close()

	var links []models.VendorLink
	for rows.Next() {
		var (
			l               models.VendorLink
			sku, url, notes sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.MaterialID, &l.VendorID, &sku, &url, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.SKU, l.ProductURL, l.Notes = sku.String, url.String, notes.String
		links = append(links, l)
	}
	return links, rows.Err()
}

// DeleteLink removes a single link.
func (r *CatalogRepository) DeleteLink(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "material_vendor_links", id)
}

// GetVendorConfig returns the vendor's config, or nil when it has none.
func (r *CatalogRepository) GetVendorConfig(ctx context.Context, vendorID int64) (*models.VendorConfig, error) {
	query := `
		SELECT id, vendor_id, price_selectors, location_triggers, zip_inputs, store_result_selectors, search_url_template
		FROM vendor_configs
		WHERE vendor_id = $1
	`
	var (
		cfg                                  models.VendorConfig
		price, triggers, inputs, stores, tpl sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, vendorID).Scan(
		&cfg.ID, &cfg.VendorID, &price, &triggers, &inputs, &stores, &tpl,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor config for %d: %w", vendorID, err)
	}
	cfg.PriceSelectors = price.String
	cfg.LocationTriggers = triggers.String
	cfg.PostalInputs = inputs.String
	cfg.StoreResultSelectors = stores.String
	cfg.SearchURLTemplate = tpl.String
	return &cfg, nil
}

// UpsertVendorConfig stores the one config a vendor may have.
func (r *CatalogRepository) UpsertVendorConfig(ctx context.Context, cfg *models.VendorConfig) error {
	query := `
		INSERT INTO vendor_configs (vendor_id, price_selectors, location_triggers, zip_inputs, store_result_selectors, search_url_template)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (vendor_id) DO UPDATE SET
			price_selectors = excluded.price_selectors,
			location_triggers = excluded.location_triggers,
			zip_inputs = excluded.zip_inputs,
			store_result_selectors = excluded.store_result_selectors,
			search_url_template = excluded.search_url_template
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		cfg.VendorID,
		nullable(cfg.PriceSelectors),
		nullable(cfg.LocationTriggers),
		nullable(cfg.PostalInputs),
		nullable(cfg.StoreResultSelectors),
		nullable(cfg.SearchURLTemplate),
	).Scan(&cfg.ID)
	if err != nil {
		return fmt.Errorf("failed to save vendor config for %d: %w", cfg.VendorID, err)
	}
	return nil
}

// DeleteVendorConfig drops a vendor's config so it falls back to the
// name-matched or universal strategy.
func (r *CatalogRepository) DeleteVendorConfig(ctx context.Context, vendorID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vendor_configs WHERE vendor_id = $1`, vendorID)
	if err != nil {
		return fmt.Errorf("failed to delete vendor config for %d: %w", vendorID, err)
	}
	return requireAffected(res)
}

func (r *CatalogRepository) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
