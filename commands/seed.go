package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/titanous/json5"

	"buildbank/models"
	"buildbank/repository"
)

// Seed is the JSON5 catalog file read by the import command.
type Seed struct {
	Vendors   []SeedVendor   `json:"vendors"`
	Materials []SeedMaterial `json:"materials"`
}

type SeedVendor struct {
	Name    string      `json:"name"`
	BaseURL string      `json:"base_url"`
	Notes   string      `json:"notes"`
	Config  *SeedConfig `json:"config"`
}

type SeedConfig struct {
	PriceSelectors       []string `json:"price_selectors"`
	LocationTriggers     []string `json:"location_triggers"`
	PostalInputs         []string `json:"zip_inputs"`
	StoreResultSelectors []string `json:"store_result_selectors"`
	SearchURLTemplate    string   `json:"search_url_template"`
}

type SeedMaterial struct {
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Unit        string     `json:"unit"`
	Description string     `json:"description"`
	Links       []SeedLink `json:"links"`
}

type SeedLink struct {
	// Vendor is the vendor name as declared in the same file.
	Vendor     string `json:"vendor"`
	SKU        string `json:"sku"`
	ProductURL string `json:"product_url"`
	Notes      string `json:"notes"`
}

type SeedStats struct {
	Vendors, Configs, Materials, Links int
}

func readSeed(path string) (Seed, error) {
	var seed Seed
	raw, err := os.ReadFile(path)
	if err != nil {
		return seed, err
	}
	if err := json5.Unmarshal(raw, &seed); err != nil {
		return seed, fmt.Errorf("parse %s: %w", path, err)
	}
	return seed, nil
}

// importSeed inserts every vendor, config, material and link in seed. Links
// naming an undeclared vendor fail the import before anything is linked.
func importSeed(ctx context.Context, catalog *repository.CatalogRepository, seed Seed) (SeedStats, error) {
	var stats SeedStats

	known := map[string]bool{}
	for _, v := range seed.Vendors {
		known[v.Name] = true
	}
	for _, m := range seed.Materials {
		for _, l := range m.Links {
			if !known[l.Vendor] {
				return stats, fmt.Errorf("material %q links unknown vendor %q", m.Name, l.Vendor)
			}
		}
	}

	vendorIDs := map[string]int64{}
	for _, sv := range seed.Vendors {
		v := models.Vendor{Name: sv.Name, BaseURL: sv.BaseURL, Notes: sv.Notes}
		if err := catalog.CreateVendor(ctx, &v); err != nil {
			return stats, err
		}
		vendorIDs[v.Name] = v.ID
		stats.Vendors++

		if sv.Config == nil {
			continue
		}
		cfg := models.VendorConfig{
			VendorID:             v.ID,
			PriceSelectors:       models.JoinSelectorList(sv.Config.PriceSelectors),
			LocationTriggers:     models.JoinSelectorList(sv.Config.LocationTriggers),
			PostalInputs:         models.JoinSelectorList(sv.Config.PostalInputs),
			StoreResultSelectors: models.JoinSelectorList(sv.Config.StoreResultSelectors),
			SearchURLTemplate:    sv.Config.SearchURLTemplate,
		}
		if err := catalog.UpsertVendorConfig(ctx, &cfg); err != nil {
			return stats, err
		}
		stats.Configs++
	}

	for _, sm := range seed.Materials {
		m := models.Material{Name: sm.Name, Category: sm.Category, Unit: sm.Unit, Description: sm.Description}
		if err := catalog.CreateMaterial(ctx, &m); err != nil {
			return stats, err
		}
		stats.Materials++

		for _, sl := range sm.Links {
			link := models.VendorLink{
				MaterialID: m.ID,
				VendorID:   vendorIDs[sl.Vendor],
				SKU:        sl.SKU,
				ProductURL: sl.ProductURL,
				Notes:      sl.Notes,
			}
			if err := catalog.CreateLink(ctx, &link); err != nil {
				return stats, err
			}
			stats.Links++
		}
	}
	return stats, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <catalog.json5>",
	Short: "Imports vendors, vendor configs, materials and links from a JSON5 file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := readSeed(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := importSeed(cmd.Context(), a.catalog, seed)
		if err != nil {
			return err
		}
		a.log.Info().
			Int("vendors", stats.Vendors).
			Int("configs", stats.Configs).
			Int("materials", stats.Materials).
			Int("links", stats.Links).
			Msg("catalog imported")
		return nil
	},
}
