package scraper

import (
	"context"

	"buildbank/browser"
	"buildbank/models"
)

// Universal handles vendors without config: generic store steering on the
// site origin, then the full extractor chain on the product page.
type Universal struct {
	*Engine
	Location LocationSelectors
}

func NewUniversal(e *Engine, location LocationSelectors) *Universal {
	return &Universal{Engine: e, Location: location}
}

func (s *Universal) Name() string { return "universal" }

func (s *Universal) CanHandle(models.Vendor, *models.VendorConfig) bool { return true }

func (s *Universal) FetchPrice(ctx context.Context, req Request) (*Result, error) {
	if err := checkProductURL(req.Link); err != nil {
		return nil, err
	}
	t := s.Timings

	return s.withPage(ctx, func(page browser.Page) (*Result, error) {
		var steering *SteeringReport
		if origin := models.Origin(req.Link.ProductURL); origin != "" && s.Launcher.Interactive() {
			// a failed origin load only costs us the store context
			if err := s.navigate(ctx, page, origin, browser.WaitDOMContentLoaded, t.BaseNavigation); err != nil {
				s.Log.Debug().Err(err).Str("origin", origin).Msg("origin navigation failed, skipping steering")
			} else {
				report := SteerLocation(ctx, page, req.PostalCode, s.Location, StepTimeouts{
					Trigger:     t.TriggerWait,
					PostalInput: t.PostalInputWait,
					StoreButton: t.StoreButtonWait,
				}, s.Log)
				steering = &report
				settle(ctx, t.SteeringSettle)
			}
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
		if price, method, ok := firstPrice(ctx, jsonLDProbe(snap), metaProbe(snap), nodesProbe(snap, s.Policy)); ok {
			return result(price, method), nil
		}

		settle(ctx, t.UniversalSettle)

		snap = TakeSnapshot(ctx, page)
		if price, method, ok := firstPrice(ctx, visibleTextProbe(snap), rawHTMLProbe(snap)); ok {
			return result(price, method), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, s.notFound(snap, &NotFoundError{Strategy: "generic"})
	})
}
