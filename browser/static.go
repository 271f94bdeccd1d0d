package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"buildbank/logger"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// StaticOptions configures the HTTP page driver.
type StaticOptions struct {
	UserAgent string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
	// Transport replaces the default round tripper, mainly for tests.
	Transport http.RoundTripper
}

// StaticLauncher fetches pages over plain HTTP and parses them with goquery.
// It cannot run scripts or interact, so it suits server-rendered product
// pages. Fetched documents are cached for CacheTTL.
type StaticLauncher struct {
	client *resty.Client
	cache  *expirable.LRU[string, string]
	log    *logger.Logger
}

// NewStaticLauncher creates the HTTP page driver.
func NewStaticLauncher(opts StaticOptions, log *logger.Logger) *StaticLauncher {
	client := resty.New()
	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	} else {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	if opts.UserAgent != "" {
		client.SetHeader("user-agent", opts.UserAgent)
	}
	client.SetHeader("accept", "text/html,application/xhtml+xml")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = 128
	}

	return &StaticLauncher{
		client: client,
		cache:  expirable.NewLRU[string, string](size, nil, opts.CacheTTL),
		log:    logger.OrNop(log),
	}
}

func (l *StaticLauncher) Interactive() bool { return false }

func (l *StaticLauncher) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticSession{launcher: l}, nil
}

func (l *StaticLauncher) Close() error {
	l.cache.Purge()
	return nil
}

func (l *StaticLauncher) fetch(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if body, ok := l.cache.Get(url); ok {
		l.log.Debug().Str("url", url).Msg("page cache hit")
		return body, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	body := string(resp.Body())
	l.cache.Add(url, body)
	return body, nil
}

type staticSession struct {
	launcher *StaticLauncher
}

func (s *staticSession) NewPage(ctx context.Context) (Page, error) {
	return &staticPage{launcher: s.launcher}, nil
}

func (s *staticSession) Close() error { return nil }

type staticPage struct {
	launcher *StaticLauncher
	html     string
	doc      *goquery.Document
}

func (p *staticPage) Navigate(ctx context.Context, url string, _ WaitUntil, timeout time.Duration) error {
	body, err := p.launcher.fetch(ctx, url, timeout)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	p.html = body
	p.doc = doc
	return nil
}

func (p *staticPage) Text(ctx context.Context, selector string, _ time.Duration) (string, error) {
	if p.doc == nil {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	text, ok := FindText(p.doc.Selection, selector)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return text, nil
}

func (p *staticPage) Click(context.Context, string, time.Duration) error { return ErrNotInteractive }

func (p *staticPage) Fill(context.Context, string, string, time.Duration) error {
	return ErrNotInteractive
}

func (p *staticPage) PressEnter(context.Context) error { return ErrNotInteractive }

func (p *staticPage) HTML(context.Context) (string, error) { return p.html, nil }

func (p *staticPage) VisibleText(context.Context) (string, error) {
	if p.doc == nil {
		return "", nil
	}
	return VisibleText(p.doc), nil
}

func (p *staticPage) Close() error {
	p.doc = nil
	return nil
}

// FindText returns the trimmed text of the first element under root matching
// selector, honouring :has-text filters.
func FindText(root *goquery.Selection, selector string) (string, bool) {
	sel := ParseSelector(selector)
	var (
		found string
		ok    bool
	)
	root.Find(sel.CSS).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if !sel.Matches(text) {
			return true
		}
		found, ok = text, true
		return false
	})
	return found, ok
}

// VisibleText approximates rendered body text: script, style and template
// contents are dropped and whitespace runs collapsed.
func VisibleText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	clone := body.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}
