package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"buildbank/logger"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// RodOptions configures the Chrome engine.
type RodOptions struct {
	ChromeBin string
	Headless  bool
	UserAgent string
}

// RodLauncher starts Chrome lazily on the first session and hands out one
// incognito context per session.
type RodLauncher struct {
	opts RodOptions
	log  *logger.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodLauncher creates a launcher. Chrome is not started until NewSession.
func NewRodLauncher(opts RodOptions, log *logger.Logger) *RodLauncher {
	return &RodLauncher{opts: opts, log: logger.OrNop(log)}
}

func (l *RodLauncher) Interactive() bool { return true }

func (l *RodLauncher) connect() (*rod.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		return l.browser, nil
	}

	ln := launcher.New().
		Headless(l.opts.Headless).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled")
	if l.opts.ChromeBin != "" {
		ln = ln.Bin(l.opts.ChromeBin)
	}

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	l.launcher = ln
	l.browser = b
	l.log.Info().Str("control_url", controlURL).Msg("🌐 Chrome started")
	return b, nil
}

// NewSession opens a fresh incognito browser context.
func (l *RodLauncher) NewSession(ctx context.Context) (Session, error) {
	b, err := l.connect()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// not bound to ctx so the context can still be disposed after cancellation
	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("open incognito context: %w", err)
	}
	return &rodSession{browser: incognito, userAgent: l.opts.UserAgent}, nil
}

// Close shuts Chrome down.
func (l *RodLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser == nil {
		return nil
	}
	err := l.browser.Close()
	l.launcher.Kill()
	l.browser = nil
	l.launcher = nil
	return err
}

type rodSession struct {
	browser   *rod.Browser
	userAgent string
}

func (s *rodSession) NewPage(ctx context.Context) (Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	if s.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	return &rodPage{page: page}, nil
}

// Close disposes the incognito context and every page in it.
func (s *rodSession) Close() error {
	return s.browser.Close()
}

type rodPage struct {
	page *rod.Page
}

func lifecycleEvent(until WaitUntil) proto.PageLifecycleEventName {
	if until == WaitNetworkIdle {
		return proto.PageLifecycleEventNameNetworkAlmostIdle
	}
	return proto.PageLifecycleEventNameDOMContentLoaded
}

func (p *rodPage) Navigate(ctx context.Context, url string, until WaitUntil, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	defer pg.CancelTimeout()

	wait := pg.WaitNavigation(lifecycleEvent(until))
	if err := pg.Navigate(url); err != nil {
		return err
	}
	wait()
	return pg.GetContext().Err()
}

func (p *rodPage) find(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	sel := ParseSelector(selector)
	pg := p.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	if sel.Text != "" {
		el, err = pg.ElementR(sel.CSS, "/"+regexp.QuoteMeta(sel.Text)+"/i")
	} else {
		el, err = pg.Element(sel.CSS)
	}
	if err != nil {
		pg.CancelTimeout()
		return nil, fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	}
	return el.CancelTimeout(), nil
}

func (p *rodPage) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	el, err := p.find(ctx, selector, timeout)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *rodPage) Click(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := p.find(ctx, selector, timeout)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	el, err := p.find(ctx, selector, timeout)
	if err != nil {
		return err
	}
	// clears any prefilled value
	_ = el.SelectAllText()
	return el.Input(value)
}

func (p *rodPage) PressEnter(ctx context.Context) error {
	return p.page.Context(ctx).Keyboard.Press(input.Enter)
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) VisibleText(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
