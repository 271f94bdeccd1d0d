package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"buildbank/browser"

	"github.com/PuerkitoBio/goquery"
)

var _ browser.Launcher = (*fakeLauncher)(nil)

// fakeLauncher serves canned HTML per URL and records every interaction.
type fakeLauncher struct {
	mu sync.Mutex

	interactive  bool
	pages        map[string]string
	navErrs      map[string]error
	clickable    map[string]bool
	fillable     map[string]bool
	panicOnClick string
	pageCloseErr error

	sessions       int
	sessionsClosed int
	pagesOpened    int
	pagesClosed    int
	navigations    []string
	clicks         []string
	fills          []string
	enters         int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		interactive: true,
		pages:       map[string]string{},
		navErrs:     map[string]error{},
		clickable:   map[string]bool{},
		fillable:    map[string]bool{},
	}
}

func (l *fakeLauncher) Interactive() bool { return l.interactive }

func (l *fakeLauncher) NewSession(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions++
	return &fakeSession{l: l}, nil
}

func (l *fakeLauncher) Close() error { return nil }

func (l *fakeLauncher) stats() (sessions, closed, pagesOpened, pagesClosed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions, l.sessionsClosed, l.pagesOpened, l.pagesClosed
}

type fakeSession struct {
	l *fakeLauncher
}

func (s *fakeSession) NewPage(context.Context) (browser.Page, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	s.l.pagesOpened++
	return &fakePage{l: s.l}, nil
}

func (s *fakeSession) Close() error {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	s.l.sessionsClosed++
	return nil
}

type fakePage struct {
	l    *fakeLauncher
	html string
	doc  *goquery.Document
}

func (p *fakePage) Navigate(ctx context.Context, url string, _ browser.WaitUntil, _ time.Duration) error {
	p.l.mu.Lock()
	p.l.navigations = append(p.l.navigations, url)
	err, failing := p.l.navErrs[url]
	html, ok := p.l.pages[url]
	p.l.mu.Unlock()

	if failing {
		return err
	}
	if !ok {
		return fmt.Errorf("no fixture for %s", url)
	}
	doc, perr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if perr != nil {
		return perr
	}
	p.html, p.doc = html, doc
	return nil
}

func (p *fakePage) Text(_ context.Context, selector string, _ time.Duration) (string, error) {
	if p.doc == nil {
		return "", browser.ErrElementNotFound
	}
	text, ok := browser.FindText(p.doc.Selection, selector)
	if !ok {
		return "", browser.ErrElementNotFound
	}
	return text, nil
}

func (p *fakePage) Click(_ context.Context, selector string, _ time.Duration) error {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	if p.l.panicOnClick != "" && p.l.panicOnClick == selector {
		panic("detached node")
	}
	if !p.l.interactive {
		return browser.ErrNotInteractive
	}
	if !p.l.clickable[selector] {
		return browser.ErrElementNotFound
	}
	p.l.clicks = append(p.l.clicks, selector)
	return nil
}

func (p *fakePage) Fill(_ context.Context, selector, value string, _ time.Duration) error {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	if !p.l.fillable[selector] {
		return browser.ErrElementNotFound
	}
	p.l.fills = append(p.l.fills, selector+"="+value)
	return nil
}

func (p *fakePage) PressEnter(context.Context) error {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	p.l.enters++
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	if p.doc == nil {
		return "", errors.New("no document")
	}
	return p.html, nil
}

func (p *fakePage) VisibleText(context.Context) (string, error) {
	if p.doc == nil {
		return "", errors.New("no document")
	}
	return browser.VisibleText(p.doc), nil
}

func (p *fakePage) Close() error {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	p.l.pagesClosed++
	return p.l.pageCloseErr
}
