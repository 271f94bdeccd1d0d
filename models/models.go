package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Vendor is a retailer selling building materials.
type Vendor struct {
	ID      int64  `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	BaseURL string `json:"base_url,omitempty" db:"base_url"`
	Notes   string `json:"notes,omitempty" db:"notes"`
}

// Material is a building material whose price is tracked.
type Material struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Category    string `json:"category,omitempty" db:"category"`
	Unit        string `json:"unit,omitempty" db:"unit"`
	Description string `json:"description,omitempty" db:"description"`
}

// VendorLink associates a material with a vendor product page. Notes doubles
// as a CSS selector hint for the price element.
type VendorLink struct {
	ID         int64  `json:"id" db:"id"`
	MaterialID int64  `json:"material_id" db:"material_id"`
	VendorID   int64  `json:"vendor_id" db:"vendor_id"`
	SKU        string `json:"sku,omitempty" db:"sku"`
	ProductURL string `json:"product_url,omitempty" db:"product_url"`
	Notes      string `json:"notes,omitempty" db:"notes"`
}

// HasProductURL reports whether the link points at a product page.
func (l *VendorLink) HasProductURL() bool {
	return strings.TrimSpace(l.ProductURL) != ""
}

// VendorConfig holds per-vendor selector overrides. Every list field is a
// comma-separated string as stored.
type VendorConfig struct {
	ID                   int64  `json:"id" db:"id"`
	VendorID             int64  `json:"vendor_id" db:"vendor_id"`
	PriceSelectors       string `json:"price_selectors,omitempty" db:"price_selectors"`
	LocationTriggers     string `json:"location_triggers,omitempty" db:"location_triggers"`
	PostalInputs         string `json:"zip_inputs,omitempty" db:"zip_inputs"`
	StoreResultSelectors string `json:"store_result_selectors,omitempty" db:"store_result_selectors"`
	SearchURLTemplate    string `json:"search_url_template,omitempty" db:"search_url_template"`
}

// PriceSelectorList returns the parsed price selectors.
func (c *VendorConfig) PriceSelectorList() []string { return ParseSelectorList(c.PriceSelectors) }

// LocationTriggerList returns the parsed store/location trigger selectors.
func (c *VendorConfig) LocationTriggerList() []string { return ParseSelectorList(c.LocationTriggers) }

// PostalInputList returns the parsed postal code input selectors.
func (c *VendorConfig) PostalInputList() []string { return ParseSelectorList(c.PostalInputs) }

// StoreResultList returns the parsed store confirmation selectors.
func (c *VendorConfig) StoreResultList() []string {
	return ParseSelectorList(c.StoreResultSelectors)
}

// HasLocationFlow reports whether any location steering list is configured.
func (c *VendorConfig) HasLocationFlow() bool {
	return len(c.LocationTriggerList()) > 0 ||
		len(c.PostalInputList()) > 0 ||
		len(c.StoreResultList()) > 0
}

// ParseSelectorList splits a comma-separated list, trimming entries and
// dropping empty ones.
func ParseSelectorList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// JoinSelectorList is the inverse of ParseSelectorList.
func JoinSelectorList(selectors []string) string {
	return strings.Join(selectors, ",")
}

// PriceRecord is one observed price. Records are append-only.
type PriceRecord struct {
	ID         int64     `json:"id" db:"id"`
	MaterialID int64     `json:"material_id" db:"material_id"`
	VendorID   int64     `json:"vendor_id" db:"vendor_id"`
	Price      float64   `json:"price" db:"price"`
	Currency   string    `json:"currency" db:"currency"`
	Unit       string    `json:"unit,omitempty" db:"unit"`
	FetchedAt  time.Time `json:"fetched_at" db:"fetched_at"`
}

// ScrapeError describes a single link that failed during a run.
type ScrapeError struct {
	VendorID     int64  `json:"vendor_id"`
	MaterialID   int64  `json:"material_id"`
	VendorName   string `json:"vendor_name"`
	MaterialName string `json:"material_name"`
	Message      string `json:"message"`
	URL          string `json:"url,omitempty"`
}

func (e ScrapeError) String() string {
	return fmt.Sprintf("%s / %s: %s", e.VendorName, e.MaterialName, e.Message)
}

// Origin returns scheme://host of a URL, or "" when it cannot be parsed.
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
