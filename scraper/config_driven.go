package scraper

import (
	"context"

	"buildbank/browser"
	"buildbank/models"
)

// ConfigDriven follows a vendor's stored selector config.
type ConfigDriven struct {
	*Engine
}

func NewConfigDriven(e *Engine) *ConfigDriven {
	return &ConfigDriven{Engine: e}
}

func (s *ConfigDriven) Name() string { return "config" }

func (s *ConfigDriven) CanHandle(_ models.Vendor, cfg *models.VendorConfig) bool {
	return cfg != nil
}

func (s *ConfigDriven) FetchPrice(ctx context.Context, req Request) (*Result, error) {
	if req.Config == nil {
		return nil, ErrConfiguration
	}
	if err := checkProductURL(req.Link); err != nil {
		return nil, err
	}
	cfg := req.Config
	t := s.Timings

	return s.withPage(ctx, func(page browser.Page) (*Result, error) {
		var steering *SteeringReport
		if cfg.HasLocationFlow() {
			base := req.Vendor.BaseURL
			if base == "" {
				base = models.Origin(req.Link.ProductURL)
			}
			if base != "" {
				if err := s.navigate(ctx, page, base, browser.WaitDOMContentLoaded, t.BaseNavigation); err != nil {
					return nil, err
				}
			}
			report := SteerLocation(ctx, page, req.PostalCode, LocationSelectors{
				Triggers:     cfg.LocationTriggerList(),
				PostalInputs: cfg.PostalInputList(),
				StoreButtons: cfg.StoreResultList(),
			}, StepTimeouts{
				Trigger:     t.SteeringStep,
				PostalInput: t.SteeringStep,
				StoreButton: t.SteeringStep,
			}, s.Log)
			steering = &report
		}

		if err := s.navigate(ctx, page, req.Link.ProductURL, browser.WaitNetworkIdle, t.ProductNavigation); err != nil {
			return nil, err
		}

		result := func(price float64, method Method) *Result {
			return &Result{
				Price:    price,
				Unit:     req.Link.SKU,
				Method:   method,
				Strategy: s.Name(),
				URL:      req.Link.ProductURL,
				Steering: steering,
			}
		}

		snap := TakeSnapshot(ctx, page)
		if price, method, ok := firstPrice(ctx, jsonLDProbe(snap), metaProbe(snap)); ok {
			return result(price, method), nil
		}

		settle(ctx, t.ConfigSettle)

		selectors := cfg.PriceSelectorList()
		price, ok, err := s.selectorText(ctx, page, selectors)
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
		return nil, s.notFound(snap, &NotFoundError{Strategy: s.Name(), Tried: selectors})
	})
}
