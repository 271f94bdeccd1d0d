package scraper

import (
	"context"

	"buildbank/config"
	"buildbank/models"
)

// StrategySelector picks the strategy for a vendor: stored config first, then
// a name or URL match, then the universal fallback. Without an interactive
// page driver steering cannot run, so GenericHTML stands in for Universal.
type StrategySelector struct {
	config    *ConfigDriven
	named     []*NameMatched
	universal *Universal
	generic   *GenericHTML
	engine    *Engine
}

// NewStrategySelector builds every strategy on top of one engine.
func NewStrategySelector(e *Engine, vendors []config.NamedStrategy, location LocationSelectors) (*StrategySelector, error) {
	s := &StrategySelector{
		config:    NewConfigDriven(e),
		universal: NewUniversal(e, location),
		generic:   NewGenericHTML(e),
		engine:    e,
	}
	for _, def := range vendors {
		nm, err := NewNameMatched(e, def)
		if err != nil {
			return nil, err
		}
		s.named = append(s.named, nm)
	}
	return s, nil
}

// Resolve returns the strategy for vendor with its optional config.
func (s *StrategySelector) Resolve(vendor models.Vendor, cfg *models.VendorConfig) Strategy {
	if s.config.CanHandle(vendor, cfg) {
		return s.config
	}
	for _, nm := range s.named {
		if nm.CanHandle(vendor, cfg) {
			return nm
		}
	}
	if !s.engine.Launcher.Interactive() {
		return s.generic
	}
	return s.universal
}

// FetchPrice resolves the strategy for req and runs it.
func (s *StrategySelector) FetchPrice(ctx context.Context, req Request) (*Result, error) {
	strategy := s.Resolve(req.Vendor, req.Config)
	s.engine.Log.Debug().
		Str("vendor", req.Vendor.Name).
		Str("strategy", strategy.Name()).
		Str("url", req.Link.ProductURL).
		Msg("fetching price")
	return strategy.FetchPrice(ctx, req)
}
