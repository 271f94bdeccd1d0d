package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"buildbank/config"
	"buildbank/logger"
	"buildbank/metrics"
	"buildbank/models"
	"buildbank/repository"
	"buildbank/scraper"
	"buildbank/services"
)

// Catalog is the read side of the vendor/material catalog.
type Catalog interface {
	ListVendors(ctx context.Context) ([]models.Vendor, error)
	ListMaterials(ctx context.Context) ([]models.Material, error)
	ListLinksForMaterial(ctx context.Context, materialID int64) ([]models.VendorLink, error)
	GetVendorConfig(ctx context.Context, vendorID int64) (*models.VendorConfig, error)
}

type PriceStore interface {
	InsertPriceRecord(ctx context.Context, rec *models.PriceRecord) error
}

type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Fetcher extracts the price for one link. *scraper.StrategySelector is the
// production implementation.
type Fetcher interface {
	FetchPrice(ctx context.Context, req scraper.Request) (*scraper.Result, error)
}

// RunnerDeps are the collaborators of a Runner. Publisher, Metrics and Log
// may be nil.
type RunnerDeps struct {
	Catalog   Catalog
	Prices    PriceStore
	Settings  Settings
	Fetcher   Fetcher
	Publisher services.Publisher
	Metrics   *metrics.Metrics
	Log       *logger.Logger
}

// Runner performs batch price updates across every vendor link.
type Runner struct {
	RunnerDeps
	cfg config.BatchConfig
	now func() time.Time
}

type job struct {
	link     models.VendorLink
	material models.Material
	vendor   models.Vendor
	config   *models.VendorConfig
}

func NewRunner(deps RunnerDeps, cfg config.BatchConfig) *Runner {
	if deps.Publisher == nil {
		deps.Publisher = services.NoopPublisher{}
	}
	deps.Log = logger.OrNop(deps.Log)
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Runner{RunnerDeps: deps, cfg: cfg, now: time.Now}
}

// RunBatch fetches a price for every link whose material and vendor resolve,
// storing one record per success under a single run timestamp. Per-link
// failures are collected in the summary. Only catalog reads and the final
// last_price_update write fail the run. A cancelled run returns its partial
// summary marked Cancelled and leaves last_price_update untouched.
func (r *Runner) RunBatch(ctx context.Context) (*models.RunSummary, error) {
	r.Metrics.SetRunning(true)
	defer r.Metrics.SetRunning(false)

	ranAt := r.now().UTC()
	summary := models.NewRunSummary(ranAt)
	log := r.Log.WithField("run_id", summary.ID)

	jobs, err := r.plan(ctx)
	if err != nil {
		r.Metrics.IncRun("failed")
		return nil, err
	}
	postal, err := r.postalCode(ctx)
	if err != nil {
		r.Metrics.IncRun("failed")
		return nil, err
	}

	log.Info().Int("links", len(jobs)).Str("postal_code", postal).Msg("starting price update")

	r.execute(ctx, jobs, postal, summary, log)
	summary.Finish(r.now().UTC())

	if ctx.Err() != nil {
		summary.Cancelled = true
		log.Warn().
			Int("success", summary.SuccessCount).
			Int("failed", summary.FailedCount).
			Msg("price update cancelled")
		r.Metrics.IncRun("cancelled")
		r.publish(ctx, summary, log)
		return summary, nil
	}

	if err := r.Settings.SetSetting(ctx, repository.SettingLastPriceUpdate, repository.FormatTimestamp(ranAt)); err != nil {
		r.Metrics.IncRun("failed")
		return summary, fmt.Errorf("failed to record last price update: %w", err)
	}

	log.Info().
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailedCount).
		Dur("duration", summary.Duration()).
		Msg("price update completed")
	r.Metrics.IncRun("completed")
	r.publish(ctx, summary, log)
	return summary, nil
}

// plan loads the catalog and pairs every link with its material, vendor and
// vendor config. Links to unknown vendors are skipped.
func (r *Runner) plan(ctx context.Context) ([]job, error) {
	materials, err := r.Catalog.ListMaterials(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", err)
	}
	vendors, err := r.Catalog.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendors: %w", err)
	}
	byID := make(map[int64]models.Vendor, len(vendors))
	for _, v := range vendors {
		byID[v.ID] = v
	}

	configs := make(map[int64]*models.VendorConfig)
	var jobs []job
	for _, material := range materials {
		links, err := r.Catalog.ListLinksForMaterial(ctx, material.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load links for material %d: %w", material.ID, err)
		}
		for _, link := range links {
			vendor, ok := byID[link.VendorID]
			if !ok {
				r.Log.Debug().Int64("vendor_id", link.VendorID).Int64("link_id", link.ID).Msg("skipping link with unknown vendor")
				continue
			}
			cfg, seen := configs[vendor.ID]
			if !seen {
				cfg, err = r.Catalog.GetVendorConfig(ctx, vendor.ID)
				if err != nil {
					return nil, fmt.Errorf("failed to load config for vendor %d: %w", vendor.ID, err)
				}
				configs[vendor.ID] = cfg
			}
			jobs = append(jobs, job{link: link, material: material, vendor: vendor, config: cfg})
		}
	}
	return jobs, nil
}

func (r *Runner) postalCode(ctx context.Context) (string, error) {
	return ResolvePostalCode(ctx, r.Settings, r.cfg.DefaultPostalCode)
}

// SettingsReader is the read half of Settings.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// ResolvePostalCode returns the stored location_zip, then defaultCode, then
// config.FallbackPostalCode. A nil settings store skips the first step.
func ResolvePostalCode(ctx context.Context, settings SettingsReader, defaultCode string) (string, error) {
	if settings != nil {
		value, ok, err := settings.GetSetting(ctx, repository.SettingPostalCode)
		if err != nil {
			return "", fmt.Errorf("failed to load postal code: %w", err)
		}
		if ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), nil
		}
	}
	if code := strings.TrimSpace(defaultCode); code != "" {
		return code, nil
	}
	return config.FallbackPostalCode, nil
}

// execute runs jobs sequentially, or on a bounded pool when concurrency > 1.
// Dispatch stops on cancellation; jobs already running are waited for.
func (r *Runner) execute(ctx context.Context, jobs []job, postal string, summary *models.RunSummary, log *logger.Logger) {
	var mu sync.Mutex
	record := func(j job, err error) {
		mu.Lock()
		defer mu.Unlock()
		r.record(ctx, j, err, summary, log)
	}

	if r.cfg.Concurrency <= 1 {
		for _, j := range jobs {
			if ctx.Err() != nil {
				return
			}
			record(j, r.processLink(ctx, j, postal, summary.RanAt))
		}
		return
	}

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()
	for _, j := range jobs {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-sem
			return
		}
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()
			record(j, r.processLink(ctx, j, postal, summary.RanAt))
		}(j)
	}
}

func (r *Runner) record(ctx context.Context, j job, err error, summary *models.RunSummary, log *logger.Logger) {
	if err == nil {
		summary.RecordSuccess()
		r.Metrics.IncLink("success")
		return
	}
	if ctx.Err() != nil && !scraper.IsLinkFault(err) {
		// interrupted by cancellation; the link is neither a success nor a failure
		return
	}

	summary.RecordFailure(models.ScrapeError{
		VendorID:     j.vendor.ID,
		MaterialID:   j.material.ID,
		VendorName:   j.vendor.Name,
		MaterialName: j.material.Name,
		Message:      err.Error(),
		URL:          j.link.ProductURL,
	})
	r.Metrics.IncLink("failure")
	log.Error().
		Err(err).
		Str("vendor", j.vendor.Name).
		Str("material", j.material.Name).
		Str("url", j.link.ProductURL).
		Msg("price fetch failed")
}

// processLink fetches and stores one price. Panics become errors.
func (r *Runner) processLink(ctx context.Context, j job, postal string, ranAt time.Time) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unexpected failure: %v", p)
		}
	}()

	start := time.Now()
	res, err := r.Fetcher.FetchPrice(ctx, scraper.Request{
		Link:       j.link,
		Vendor:     j.vendor,
		PostalCode: postal,
		Config:     j.config,
	})
	r.Metrics.ObserveFetch(time.Since(start))
	if err != nil {
		return err
	}

	unit := res.Unit
	if unit == "" {
		unit = j.material.Unit
	}
	rec := &models.PriceRecord{
		MaterialID: j.material.ID,
		VendorID:   j.vendor.ID,
		Price:      res.Price,
		Currency:   r.cfg.Currency,
		Unit:       unit,
		FetchedAt:  ranAt,
	}
	// a fetched price is still stored when the run is cancelled mid-write
	if err := r.Prices.InsertPriceRecord(context.WithoutCancel(ctx), rec); err != nil {
		return fmt.Errorf("failed to store price: %w", err)
	}

	r.Metrics.IncExtraction(res.Strategy, string(res.Method))
	r.Log.Debug().
		Str("vendor", j.vendor.Name).
		Str("material", j.material.Name).
		Str("strategy", res.Strategy).
		Str("method", string(res.Method)).
		Float64("price", res.Price).
		Msg("price stored")
	return nil
}

func (r *Runner) publish(ctx context.Context, summary *models.RunSummary, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.Publisher.PublishRun(ctx, summary); err != nil {
		log.Warn().Err(err).Msg("failed to publish run summary")
	}
}
