package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buildbank/browser"
	"buildbank/logger"
	"buildbank/models"
)

// Request carries everything a strategy needs for one link.
type Request struct {
	Link       models.VendorLink
	Vendor     models.Vendor
	PostalCode string
	Config     *models.VendorConfig
}

// Result is a successful extraction.
type Result struct {
	Price    float64         `json:"price"`
	Unit     string          `json:"unit,omitempty"`
	Method   Method          `json:"method"`
	Strategy string          `json:"strategy"`
	URL      string          `json:"url"`
	Steering *SteeringReport `json:"steering,omitempty"`
}

// Strategy extracts a price for one vendor link.
type Strategy interface {
	Name() string
	// CanHandle reports whether the strategy applies to vendor, given its
	// config (nil when absent).
	CanHandle(vendor models.Vendor, cfg *models.VendorConfig) bool
	FetchPrice(ctx context.Context, req Request) (*Result, error)
}

// Engine is the shared machinery behind every strategy: the page driver,
// timings and price-node policy.
type Engine struct {
	Launcher browser.Launcher
	Timings  Timings
	Policy   NodePolicy
	Detector *BotDetector
	Log      *logger.Logger
}

// NewEngine builds an engine with a bot detector and the default logger
// fallback.
func NewEngine(launcher browser.Launcher, timings Timings, policy NodePolicy, log *logger.Logger) *Engine {
	return &Engine{
		Launcher: launcher,
		Timings:  timings,
		Policy:   policy,
		Detector: NewBotDetector(),
		Log:      logger.OrNop(log),
	}
}

// withPage opens one session and one page for fn and tears both down on
// every exit path, including panics. A page close failure does not skip the
// session close.
func (e *Engine) withPage(ctx context.Context, fn func(page browser.Page) (*Result, error)) (*Result, error) {
	session, err := e.Launcher.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			e.Log.Warn().Err(cerr).Msg("closing browser session")
		}
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			e.Log.Warn().Err(cerr).Msg("closing page")
		}
	}()

	return fn(page)
}

func (e *Engine) navigate(ctx context.Context, page browser.Page, url string, until browser.WaitUntil, timeout time.Duration) error {
	if err := page.Navigate(ctx, url, until, timeout); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

// selectorText returns the first non-empty text among selectors, parsed. A
// matched but unparseable text ends the search as "price not found".
func (e *Engine) selectorText(ctx context.Context, page browser.Page, selectors []string) (float64, bool, error) {
	for _, sel := range selectors {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		text, err := page.Text(ctx, sel, e.Timings.SelectorWait)
		if err != nil || text == "" {
			continue
		}
		price, err := ParsePrice(text)
		if err != nil {
			return 0, false, fmt.Errorf("%w: selector %s: %w", ErrPriceNotFound, sel, err)
		}
		return price, true, nil
	}
	return 0, false, nil
}

// notFound builds the terminal error, flagging challenge pages.
func (e *Engine) notFound(s *Snapshot, nf *NotFoundError) error {
	if blocked, reason := e.Detector.DetectSnapshot(s); blocked {
		e.Log.Warn().Str("strategy", nf.Strategy).Str("reason", reason).Msg("🤖 bot wall detected")
		return fmt.Errorf("%w: %w", ErrBlocked, nf)
	}
	return nf
}

func checkProductURL(link models.VendorLink) error {
	if !link.HasProductURL() {
		return ErrMissingProductURL
	}
	return nil
}

// IsLinkFault reports whether err belongs to the single link rather than the
// run. Cancellation is the only run-level outcome a strategy returns.
func IsLinkFault(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
