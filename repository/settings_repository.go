package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	SettingPostalCode      = "location_zip"
	SettingLastPriceUpdate = "last_price_update"
)

// SettingsRepository is a small key/value store.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting returns the value for key; ok is false when the key is unset.
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value.String, value.Valid, nil
}

// SetSetting creates or replaces key.
func (r *SettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// LastPriceUpdate returns the run timestamp of the last completed batch, or
// nil if none has completed.
func (r *SettingsRepository) LastPriceUpdate(ctx context.Context) (*time.Time, error) {
	raw, ok, err := r.GetSetting(ctx, SettingLastPriceUpdate)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", SettingLastPriceUpdate, raw, err)
	}
	return &t, nil
}

// FormatTimestamp is the stored form of time settings.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
