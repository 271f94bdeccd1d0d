// Package browser drives product pages. Two engines are provided: a headless
// Chrome driven through go-rod, and a plain HTTP fetcher for pages that render
// their price server side.
package browser

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrNotInteractive  = errors.New("page driver cannot interact with elements")
)

// WaitUntil names the lifecycle point a navigation waits for.
type WaitUntil int

const (
	WaitDOMContentLoaded WaitUntil = iota
	WaitNetworkIdle
)

func (w WaitUntil) String() string {
	if w == WaitNetworkIdle {
		return "networkidle"
	}
	return "domcontentloaded"
}

// Page is a single loaded document.
type Page interface {
	Navigate(ctx context.Context, url string, until WaitUntil, timeout time.Duration) error
	// Text waits up to timeout for the first element matching selector and
	// returns its trimmed text.
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	PressEnter(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	VisibleText(ctx context.Context) (string, error)
	Close() error
}

// Session is an isolated browsing context. Closing it releases every page it
// opened.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher hands out sessions.
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
	// Interactive reports whether pages can click and type.
	Interactive() bool
	Close() error
}

var hasTextPattern = regexp.MustCompile(`^(.*?):has-text\((?:'([^']*)'|"([^"]*)")\)(.*)$`)

// Selector is a CSS selector with an optional text filter, the parsed form of
// `button:has-text('Store')`.
type Selector struct {
	CSS  string
	Text string
}

// ParseSelector splits a :has-text(...) pseudo-class off a CSS selector. Only
// a single trailing :has-text is understood; anything else is passed through.
func ParseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)
	m := hasTextPattern.FindStringSubmatch(raw)
	if m == nil || strings.TrimSpace(m[4]) != "" {
		return Selector{CSS: raw}
	}
	css := strings.TrimSpace(m[1])
	if css == "" {
		css = "*"
	}
	text := m[2]
	if text == "" {
		text = m[3]
	}
	return Selector{CSS: css, Text: text}
}

// Matches reports whether element text satisfies the text filter: a
// case-insensitive substring match.
func (s Selector) Matches(text string) bool {
	if s.Text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(s.Text))
}
