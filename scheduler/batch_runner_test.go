package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildbank/browser"
	"buildbank/config"
	"buildbank/logger"
	"buildbank/models"
	"buildbank/repository"
	"buildbank/scraper"
)

type fixture struct {
	catalog   *fakeCatalog
	prices    *fakePrices
	settings  *fakeSettings
	fetcher   *fakeFetcher
	publisher *fakePublisher
}

// newFixture builds one vendor and one material per url, linked in order.
func newFixture(urls ...string) *fixture {
	f := &fixture{
		catalog: &fakeCatalog{
			vendors: []models.Vendor{
				{ID: 1, Name: "Home Depot", BaseURL: "https://www.homedepot.com"},
				{ID: 2, Name: "Lowe's", BaseURL: "https://www.lowes.com"},
			},
			links:   map[int64][]models.VendorLink{},
			configs: map[int64]*models.VendorConfig{},
		},
		prices:    &fakePrices{failFor: map[int64]bool{}},
		settings:  newFakeSettings(),
		fetcher:   &fakeFetcher{prices: map[string]float64{}, errs: map[string]error{}, panics: map[string]bool{}},
		publisher: &fakePublisher{},
	}
	for i, url := range urls {
		id := int64(i + 1)
		f.catalog.materials = append(f.catalog.materials, models.Material{ID: id, Name: fmt.Sprintf("Material %d", id), Unit: "each"})
		f.catalog.links[id] = []models.VendorLink{{ID: id, MaterialID: id, VendorID: 1, ProductURL: url}}
		f.fetcher.prices[url] = float64(i) + 1.99
	}
	return f
}

func (f *fixture) runner(cfg config.BatchConfig) *Runner {
	return NewRunner(RunnerDeps{
		Catalog:   f.catalog,
		Prices:    f.prices,
		Settings:  f.settings,
		Fetcher:   f.fetcher,
		Publisher: f.publisher,
		Log:       logger.Nop(),
	}, cfg)
}

func defaultBatch() config.BatchConfig {
	return config.BatchConfig{Concurrency: 1, Currency: "USD", DefaultPostalCode: "30301"}
}

func TestRunBatchCollectsLinkFailures(t *testing.T) {
	f := newFixture("https://a.example/p/1", "https://a.example/p/2", "https://a.example/p/3")
	f.fetcher.errs["https://a.example/p/2"] = &scraper.NotFoundError{Tried: []string{".price"}}

	before := time.Now().UTC()
	summary, err := f.runner(defaultBatch()).RunBatch(context.Background())
	after := time.Now().UTC()
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailedCount)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, models.ScrapeError{
		VendorID:     1,
		MaterialID:   2,
		VendorName:   "Home Depot",
		MaterialName: "Material 2",
		Message:      "price not found; tried selectors: .price",
		URL:          "https://a.example/p/2",
	}, summary.Errors[0])
	assert.False(t, summary.Cancelled)
	require.NotNil(t, summary.FinishedAt)

	require.Len(t, f.prices.records, 2)
	for _, rec := range f.prices.records {
		assert.Equal(t, summary.RanAt, rec.FetchedAt)
		assert.Equal(t, "USD", rec.Currency)
		assert.Equal(t, "each", rec.Unit)
	}
	assert.Equal(t, 1.99, f.prices.records[0].Price)
	assert.Equal(t, 3.99, f.prices.records[1].Price)

	assert.Equal(t, 1, f.settings.writes[repository.SettingLastPriceUpdate])
	stamp, err := time.Parse(time.RFC3339Nano, f.settings.values[repository.SettingLastPriceUpdate])
	require.NoError(t, err)
	assert.False(t, stamp.Before(before.Truncate(time.Second)))
	assert.False(t, stamp.After(after))

	require.Len(t, f.publisher.summaries, 1)
	assert.Same(t, summary, f.publisher.summaries[0])
}

func TestRunBatchPrefersResultUnit(t *testing.T) {
	f := newFixture()
	f.catalog.materials = []models.Material{{ID: 1, Name: "Stud", Unit: "each"}}
	f.catalog.links[1] = []models.VendorLink{{ID: 1, MaterialID: 1, VendorID: 1, ProductURL: "https://a.example/p/1"}}
	fetcher := &unitFetcher{unit: "312528776"}

	r := NewRunner(RunnerDeps{Catalog: f.catalog, Prices: f.prices, Settings: f.settings, Fetcher: fetcher}, defaultBatch())
	_, err := r.RunBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, f.prices.records, 1)
	assert.Equal(t, "312528776", f.prices.records[0].Unit)
}

type unitFetcher struct{ unit string }

func (u *unitFetcher) FetchPrice(_ context.Context, req scraper.Request) (*scraper.Result, error) {
	return &scraper.Result{Price: 3.5, Unit: u.unit, Method: scraper.MethodSelector, Strategy: "config", URL: req.Link.ProductURL}, nil
}

func TestRunBatchPostalCode(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		def    string
		want   string
	}{
		{name: "stored setting wins", stored: "94105", def: "10001", want: "94105"},
		{name: "configured default", def: "10001", want: "10001"},
		{name: "fallback", want: "30301"},
		{name: "blank setting ignored", stored: "  ", def: "10001", want: "10001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("https://a.example/p/1")
			if tt.stored != "" {
				f.settings.values[repository.SettingPostalCode] = tt.stored
			}
			cfg := defaultBatch()
			cfg.DefaultPostalCode = tt.def

			_, err := f.runner(cfg).RunBatch(context.Background())
			require.NoError(t, err)
			require.Len(t, f.fetcher.requests, 1)
			assert.Equal(t, tt.want, f.fetcher.requests[0].PostalCode)
		})
	}
}

func TestResolvePostalCode(t *testing.T) {
	ctx := context.Background()
	stored := newFakeSettings()
	stored.values[repository.SettingPostalCode] = " 94105 "

	code, err := ResolvePostalCode(ctx, stored, "10001")
	require.NoError(t, err)
	assert.Equal(t, "94105", code)

	code, err = ResolvePostalCode(ctx, nil, "10001")
	require.NoError(t, err)
	assert.Equal(t, "10001", code)

	code, err = ResolvePostalCode(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, config.FallbackPostalCode, code)

	code, err = ResolvePostalCode(ctx, newFakeSettings(), "  ")
	require.NoError(t, err)
	assert.Equal(t, config.FallbackPostalCode, code)
}

func TestRunBatchPassesVendorConfig(t *testing.T) {
	f := newFixture("https://a.example/p/1")
	cfg := &models.VendorConfig{ID: 7, VendorID: 1, PriceSelectors: ".price"}
	f.catalog.configs[1] = cfg

	_, err := f.runner(defaultBatch()).RunBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, f.fetcher.requests, 1)
	assert.Same(t, cfg, f.fetcher.requests[0].Config)
	assert.Equal(t, "Home Depot", f.fetcher.requests[0].Vendor.Name)
}

func TestRunBatchSkipsUnknownVendor(t *testing.T) {
	f := newFixture("https://a.example/p/1")
	f.catalog.links[1] = append(f.catalog.links[1], models.VendorLink{ID: 9, MaterialID: 1, VendorID: 99, ProductURL: "https://gone.example"})

	summary, err := f.runner(defaultBatch()).RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total())
	assert.Equal(t, 1, f.fetcher.calls())
}

func TestRunBatchEmptyCatalogStillStamps(t *testing.T) {
	f := newFixture()

	summary, err := f.runner(defaultBatch()).RunBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Total())
	assert.Empty(t, summary.Errors)
	assert.Equal(t, 1, f.settings.writes[repository.SettingLastPriceUpdate])
}

func TestRunBatchInsertFailureIsLinkFailure(t *testing.T) {
	f := newFixture("https://a.example/p/1", "https://a.example/p/2")
	f.catalog.links[2][0].VendorID = 2
	f.prices.failFor[2] = true

	summary, err := f.runner(defaultBatch()).RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Contains(t, summary.Errors[0].Message, "failed to store price")
	assert.Equal(t, "Lowe's", summary.Errors[0].VendorName)
}

func TestRunBatchRecoversPanics(t *testing.T) {
	f := newFixture("https://a.example/p/1", "https://a.example/p/2")
	f.fetcher.panics["https://a.example/p/1"] = true

	summary, err := f.runner(defaultBatch()).RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0].Message, "selector engine exploded")
}

func TestRunBatchCatalogFailureIsFatal(t *testing.T) {
	f := newFixture("https://a.example/p/1")
	f.catalog.listErr = errors.New("connection refused")

	summary, err := f.runner(defaultBatch()).RunBatch(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Zero(t, f.fetcher.calls())
	assert.Zero(t, f.settings.writes[repository.SettingLastPriceUpdate])
}

func TestRunBatchLastUpdateWriteFailure(t *testing.T) {
	f := newFixture("https://a.example/p/1")
	f.settings.setErr = errors.New("read-only database")

	summary, err := f.runner(defaultBatch()).RunBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record last price update")
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Empty(t, f.publisher.summaries)
}

func TestRunBatchCancelled(t *testing.T) {
	f := newFixture("https://a.example/p/1", "https://a.example/p/2", "https://a.example/p/3")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fetcher.hook = func(ctx context.Context, req scraper.Request) error {
		if req.Link.ID == 2 {
			cancel()
			return fmt.Errorf("navigate: %w", ctx.Err())
		}
		return nil
	}

	summary, err := f.runner(defaultBatch()).RunBatch(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Zero(t, summary.FailedCount)
	assert.Equal(t, 2, f.fetcher.calls())
	assert.Zero(t, f.settings.writes[repository.SettingLastPriceUpdate])
	require.Len(t, f.publisher.summaries, 1)
	assert.True(t, f.publisher.summaries[0].Cancelled)
}

func TestRunBatchConcurrent(t *testing.T) {
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://a.example/p/%d", i+1)
	}
	f := newFixture(urls...)
	f.fetcher.errs[urls[3]] = &scraper.NotFoundError{Strategy: "generic"}
	cfg := defaultBatch()
	cfg.Concurrency = 3

	summary, err := f.runner(cfg).RunBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, "price not found using generic heuristics", summary.Errors[0].Message)
	require.Len(t, f.prices.records, 7)
	for _, rec := range f.prices.records {
		assert.Equal(t, summary.RanAt, rec.FetchedAt)
	}
}

func TestRunBatchRepeatable(t *testing.T) {
	f := newFixture("https://a.example/p/1", "https://a.example/p/2")
	f.fetcher.errs["https://a.example/p/2"] = scraper.ErrPriceNotFound
	r := f.runner(defaultBatch())

	first, err := r.RunBatch(context.Background())
	require.NoError(t, err)
	second, err := r.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.SuccessCount, second.SuccessCount)
	assert.Equal(t, first.Errors, second.Errors)
	require.Len(t, f.prices.records, 2)
	assert.Equal(t, f.prices.records[0].Price, f.prices.records[1].Price)
	assert.Equal(t, 2, f.settings.writes[repository.SettingLastPriceUpdate])
}

// countingLauncher records sessions without ever producing a page.
type countingLauncher struct{ sessions int }

var _ browser.Launcher = (*countingLauncher)(nil)

func (l *countingLauncher) NewSession(context.Context) (browser.Session, error) {
	l.sessions++
	return nil, errors.New("no browser in tests")
}

func (l *countingLauncher) Interactive() bool { return true }

func (l *countingLauncher) Close() error { return nil }

func TestRunBatchMissingProductURLNeverLaunches(t *testing.T) {
	f := newFixture("")
	launcher := &countingLauncher{}
	engine := scraper.NewEngine(launcher, scraper.NoWaitTimings(), scraper.SelectMin, logger.Nop())
	selector, err := scraper.NewStrategySelector(engine, nil, scraper.LocationSelectors{})
	require.NoError(t, err)

	r := NewRunner(RunnerDeps{Catalog: f.catalog, Prices: f.prices, Settings: f.settings, Fetcher: selector}, defaultBatch())
	summary, err := r.RunBatch(context.Background())
	require.NoError(t, err)

	assert.Zero(t, launcher.sessions)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "missing product URL", summary.Errors[0].Message)
	assert.Empty(t, f.prices.records)
}
