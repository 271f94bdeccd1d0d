package commands

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"buildbank/config"
	"buildbank/database"
	"buildbank/logger"
	"buildbank/models"
	"buildbank/repository"
	"buildbank/scheduler"
	"buildbank/scraper"
)

var (
	probeVendor   *string
	probeSelector *string
	probePostal   *string
	probeStatic   *bool
)

func init() {
	probeVendor = probeCmd.Flags().String("vendor", "", "Vendor name, used to pick a name-matched strategy.")
	probeSelector = probeCmd.Flags().String("selector", "", "CSS selector hint for the price element.")
	probePostal = probeCmd.Flags().String("zip", "", "Postal code for location steering.")
	probeStatic = probeCmd.Flags().Bool("static", false, "Fetch over plain HTTP instead of Chrome.")
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe <url> [--vendor <name>] [--selector <css>] [--zip <postal code>]",
	Short: "Fetches one product page through the strategy selector without storing anything.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if *probeStatic {
			cfg.Browser.Mode = config.BrowserModeStatic
		}

		a := &app{cfg: cfg, log: logger.For("probe")}
		if err := a.buildFetcher(); err != nil {
			return err
		}
		defer a.close()

		postal := *probePostal
		if postal == "" {
			postal = probePostalCode(cmd.Context(), cfg, a.log)
		}
		url := args[0]
		req := scraper.Request{
			Link:       models.VendorLink{ProductURL: url, Notes: *probeSelector},
			Vendor:     models.Vendor{Name: *probeVendor, BaseURL: models.Origin(url)},
			PostalCode: postal,
		}

		strategy := a.selector.Resolve(req.Vendor, nil)
		res, err := strategy.FetchPrice(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("%s: %w", strategy.Name(), err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Strategy", "Method", "Price", "Unit", "URL"})
		t.AppendRow(table.Row{res.Strategy, res.Method, fmt.Sprintf("%.2f", res.Price), res.Unit, res.URL})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

// probePostalCode resolves the postal code the way a batch run does. The
// stored setting is skipped when the database cannot be read.
func probePostalCode(ctx context.Context, cfg *config.Config, log *logger.Logger) string {
	var settings scheduler.SettingsReader
	db, _, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, ignoring stored postal code")
	} else {
		defer db.Close()
		settings = repository.NewSettingsRepository(db)
	}

	code, err := scheduler.ResolvePostalCode(ctx, settings, cfg.Batch.DefaultPostalCode)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read stored postal code")
		code, _ = scheduler.ResolvePostalCode(ctx, nil, cfg.Batch.DefaultPostalCode)
	}
	return code
}
