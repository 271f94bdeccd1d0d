package scheduler

import (
	"context"
	"errors"
	"sync"

	"buildbank/models"
	"buildbank/scraper"
)

type fakeCatalog struct {
	vendors   []models.Vendor
	materials []models.Material
	links     map[int64][]models.VendorLink
	configs   map[int64]*models.VendorConfig
	listErr   error
}

var _ Catalog = (*fakeCatalog)(nil)

func (c *fakeCatalog) ListVendors(context.Context) ([]models.Vendor, error) {
	return c.vendors, c.listErr
}

func (c *fakeCatalog) ListMaterials(context.Context) ([]models.Material, error) {
	return c.materials, c.listErr
}

func (c *fakeCatalog) ListLinksForMaterial(_ context.Context, id int64) ([]models.VendorLink, error) {
	return c.links[id], nil
}

func (c *fakeCatalog) GetVendorConfig(_ context.Context, id int64) (*models.VendorConfig, error) {
	return c.configs[id], nil
}

type fakePrices struct {
	mu      sync.Mutex
	records []models.PriceRecord
	failFor map[int64]bool // vendor ids whose inserts fail
}

var _ PriceStore = (*fakePrices)(nil)

func (p *fakePrices) InsertPriceRecord(_ context.Context, rec *models.PriceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[rec.VendorID] {
		return errors.New("disk full")
	}
	rec.ID = int64(len(p.records) + 1)
	p.records = append(p.records, *rec)
	return nil
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
	writes map[string]int
	setErr error
}

var _ Settings = (*fakeSettings)(nil)

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]string{}, writes: map[string]int{}}
}

func (s *fakeSettings) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeSettings) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	s.writes[key]++
	return nil
}

// fakeFetcher answers from a table keyed by product URL.
type fakeFetcher struct {
	mu       sync.Mutex
	prices   map[string]float64
	errs     map[string]error
	panics   map[string]bool
	requests []scraper.Request
	// hook runs before each fetch returns
	hook func(ctx context.Context, req scraper.Request) error
}

var _ Fetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) FetchPrice(ctx context.Context, req scraper.Request) (*scraper.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.hook != nil {
		if err := f.hook(ctx, req); err != nil {
			return nil, err
		}
	}
	url := req.Link.ProductURL
	if f.panics[url] {
		panic("selector engine exploded")
	}
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	if url == "" {
		return nil, scraper.ErrMissingProductURL
	}
	price, ok := f.prices[url]
	if !ok {
		return nil, &scraper.NotFoundError{Strategy: "generic"}
	}
	return &scraper.Result{Price: price, Method: scraper.MethodJSONLD, Strategy: "universal", URL: url}, nil
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakePublisher struct {
	mu        sync.Mutex
	summaries []*models.RunSummary
}

func (p *fakePublisher) PublishRun(_ context.Context, s *models.RunSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, s)
	return nil
}

func (p *fakePublisher) Close() error { return nil }
