package commands

import (
	"context"
	"database/sql"
	"fmt"

	"buildbank/browser"
	"buildbank/config"
	"buildbank/database"
	"buildbank/logger"
	"buildbank/metrics"
	"buildbank/repository"
	"buildbank/scheduler"
	"buildbank/scraper"
	"buildbank/services"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *sql.DB
	catalog   *repository.CatalogRepository
	prices    *repository.PriceRepository
	settings  *repository.SettingsRepository
	launcher  browser.Launcher
	selector  *scraper.StrategySelector
	metrics   *metrics.Metrics
	publisher services.Publisher
	runner    *scheduler.Runner
}

// newApp loads config, opens the database and builds the fetch pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	a := &app{cfg: cfg, log: logger.For("buildbank")}

	db, dialect, err := database.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := database.CreateTables(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	a.catalog = repository.NewCatalogRepository(db)
	a.prices = repository.NewPriceRepository(db)
	a.settings = repository.NewSettingsRepository(db)

	if err := a.buildFetcher(); err != nil {
		a.close()
		return nil, err
	}

	a.metrics = metrics.New()
	a.publisher = services.NewPublisher(cfg.Redis)
	a.runner = scheduler.NewRunner(scheduler.RunnerDeps{
		Catalog:   a.catalog,
		Prices:    a.prices,
		Settings:  a.settings,
		Fetcher:   a.selector,
		Publisher: a.publisher,
		Metrics:   a.metrics,
		Log:       logger.For("runner"),
	}, cfg.Batch)
	return a, nil
}

// buildFetcher creates the page driver and strategy selector only.
func (a *app) buildFetcher() error {
	cfg := a.cfg
	switch cfg.Browser.Mode {
	case config.BrowserModeStatic:
		a.launcher = browser.NewStaticLauncher(browser.StaticOptions{
			UserAgent: cfg.Browser.UserAgent,
			Timeout:   cfg.Timings.ProductNavigation.Std(),
			CacheSize: cfg.Browser.CacheSize,
			CacheTTL:  cfg.Browser.CacheTTL.Std(),
		}, logger.For("static"))
	default:
		a.launcher = browser.NewRodLauncher(browser.RodOptions{
			ChromeBin: cfg.Browser.ChromeBin,
			Headless:  cfg.Browser.Headless,
			UserAgent: cfg.Browser.UserAgent,
		}, logger.For("rod"))
	}

	engine := scraper.NewEngine(a.launcher, timingsFrom(cfg.Timings), scraper.ParseNodePolicy(cfg.Batch.NodePolicy), logger.For("scraper"))
	selector, err := scraper.NewStrategySelector(engine, cfg.Vendors, scraper.LocationSelectors{
		Triggers:     cfg.Location.Triggers,
		PostalInputs: cfg.Location.PostalInputs,
		StoreButtons: cfg.Location.StoreButtons,
	})
	if err != nil {
		return err
	}
	a.selector = selector
	return nil
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close publisher")
		}
	}
	if a.launcher != nil {
		if err := a.launcher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close browser")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func timingsFrom(c config.TimingsConfig) scraper.Timings {
	return scraper.Timings{
		BaseNavigation:     c.BaseNavigation.Std(),
		ProductNavigation:  c.ProductNavigation.Std(),
		NamedNavigation:    c.NamedNavigation.Std(),
		SteeringStep:       c.SteeringStep.Std(),
		TriggerWait:        c.TriggerWait.Std(),
		PostalInputWait:    c.PostalInputWait.Std(),
		StoreButtonWait:    c.StoreButtonWait.Std(),
		SteeringSettle:     c.SteeringSettle.Std(),
		SelectorWait:       c.SelectorWait.Std(),
		ConfigSettle:       c.ConfigSettle.Std(),
		UniversalSettle:    c.UniversalSettle.Std(),
		GenericSettle:      c.GenericSettle.Std(),
		GenericFieldSettle: c.GenericFieldSettle.Std(),
	}
}
