package scraper

import (
	"context"
	"strings"

	"buildbank/browser"
	"buildbank/models"
)

// commonPriceSelectors are price containers seen across big-box retailers.
var commonPriceSelectors = []string{
	`[data-automation-id='price']`,
	`[data-automation-id='pricingPrice']`,
	`[data-testid='main-price']`,
	`.price`,
	`.price__dollars`,
	`.price__wrapper`,
	`.price-info__price`,
	`.item-price-dollar`,
}

// GenericHTML loads the product page directly, with no store steering. It
// is the fallback when the page driver cannot interact.
type GenericHTML struct {
	*Engine
}

func NewGenericHTML(e *Engine) *GenericHTML {
	return &GenericHTML{Engine: e}
}

func (s *GenericHTML) Name() string { return "generic-html" }

func (s *GenericHTML) CanHandle(models.Vendor, *models.VendorConfig) bool { return true }

// candidateSelectors puts the link's notes selector ahead of the common list.
func candidateSelectors(link models.VendorLink, rest []string) []string {
	out := make([]string, 0, len(rest)+1)
	if notes := strings.TrimSpace(link.Notes); notes != "" {
		out = append(out, notes)
	}
	return append(out, rest...)
}

func (s *GenericHTML) FetchPrice(ctx context.Context, req Request) (*Result, error) {
	if err := checkProductURL(req.Link); err != nil {
		return nil, err
	}
	t := s.Timings

	return s.withPage(ctx, func(page browser.Page) (*Result, error) {
		if err := s.navigate(ctx, page, req.Link.ProductURL, browser.WaitNetworkIdle, t.ProductNavigation); err != nil {
			return nil, err
		}
		settle(ctx, t.GenericSettle)

		result := func(price float64, method Method) *Result {
			return &Result{
				Price:    price,
				Unit:     req.Link.SKU,
				Method:   method,
				Strategy: s.Name(),
				URL:      req.Link.ProductURL,
			}
		}

		snap := TakeSnapshot(ctx, page)
		if price, method, ok := firstPrice(ctx, jsonLDProbe(snap), metaProbe(snap)); ok {
			return result(price, method), nil
		}

		settle(ctx, t.GenericFieldSettle)

		candidates := candidateSelectors(req.Link, commonPriceSelectors)
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
