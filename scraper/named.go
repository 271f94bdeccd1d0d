package scraper

import (
	"context"
	"fmt"
	"regexp"

	"buildbank/browser"
	"buildbank/config"
	"buildbank/models"
)

// NameMatched is a vendor-specific strategy picked by vendor name or base URL.
type NameMatched struct {
	*Engine
	name      string
	namePat   *regexp.Regexp
	urlPat    *regexp.Regexp
	selectors []string
}

// NewNameMatched compiles a declared vendor strategy.
func NewNameMatched(e *Engine, def config.NamedStrategy) (*NameMatched, error) {
	s := &NameMatched{Engine: e, name: def.Name, selectors: def.PriceSelectors}
	var err error
	if def.NamePattern != "" {
		if s.namePat, err = regexp.Compile(def.NamePattern); err != nil {
			return nil, fmt.Errorf("vendor %s name pattern: %w", def.Name, err)
		}
	}
	if def.URLPattern != "" {
		if s.urlPat, err = regexp.Compile(def.URLPattern); err != nil {
			return nil, fmt.Errorf("vendor %s url pattern: %w", def.Name, err)
		}
	}
	return s, nil
}

func (s *NameMatched) Name() string { return s.name }

func (s *NameMatched) CanHandle(v models.Vendor, _ *models.VendorConfig) bool {
	if s.namePat != nil && s.namePat.MatchString(v.Name) {
		return true
	}
	return s.urlPat != nil && v.BaseURL != "" && s.urlPat.MatchString(v.BaseURL)
}

func (s *NameMatched) FetchPrice(ctx context.Context, req Request) (*Result, error) {
	if err := checkProductURL(req.Link); err != nil {
		return nil, err
	}

	return s.withPage(ctx, func(page browser.Page) (*Result, error) {
		if err := s.navigate(ctx, page, req.Link.ProductURL, browser.WaitDOMContentLoaded, s.Timings.NamedNavigation); err != nil {
			return nil, err
		}

		// the material's own unit applies, these pages carry no usable one
		result := func(price float64, method Method) *Result {
			return &Result{Price: price, Method: method, Strategy: s.Name(), URL: req.Link.ProductURL}
		}

		snap := TakeSnapshot(ctx, page)
		if price, method, ok := firstPrice(ctx, jsonLDProbe(snap)); ok {
			return result(price, method), nil
		}

		candidates := candidateSelectors(req.Link, s.selectors)
		price, ok, err := s.selectorText(ctx, page, candidates)
		if err != nil {
			return nil, err
		}
		if ok {
			return result(price, MethodSelector), nil
		}

		snap = TakeSnapshot(ctx, page)
		if price, method, ok := firstPrice(ctx, fallbackProbes(snap, s.Policy)...); ok {
			return result(price, method), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, s.notFound(snap, &NotFoundError{Strategy: s.Name(), Tried: candidates})
	})
}
