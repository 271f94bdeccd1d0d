package scraper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse             = errors.New("unable to parse price")
	ErrPriceNotFound     = errors.New("price not found")
	ErrNavigation        = errors.New("navigation failed")
	ErrConfiguration     = errors.New("vendor configuration missing")
	ErrMissingProductURL = errors.New("missing product URL")
	ErrBlocked           = errors.New("blocked by bot protection")
)

// ParseError is returned when text holds no numeric price.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse price from %q", e.Text)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// NavigationError wraps a page load failure or timeout.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func (e *NavigationError) Is(target error) bool { return target == ErrNavigation }

// NotFoundError reports that every probe of a strategy came up empty.
type NotFoundError struct {
	Strategy string
	Tried    []string
}

func (e *NotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("price not found using %s heuristics", e.Strategy)
	}
	return fmt.Sprintf("price not found; tried selectors: %s", strings.Join(e.Tried, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrPriceNotFound }
