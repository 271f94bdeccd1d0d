package scraper

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"buildbank/browser"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

// Method names the probe that produced a price.
type Method string

const (
	MethodJSONLD      Method = "json-ld"
	MethodMeta        Method = "meta"
	MethodSelector    Method = "selector"
	MethodPriceNodes  Method = "price-nodes"
	MethodVisibleText Method = "text-regex"
	MethodRawHTML     Method = "raw-html"
)

// Snapshot is a parsed copy of a rendered page. Extractors only read from it,
// so they can be exercised without a browser.
type Snapshot struct {
	HTML string
	Text string
	Doc  *goquery.Document
}

// NewSnapshot parses html. When visibleText is empty it is derived from the
// document.
func NewSnapshot(html, visibleText string) *Snapshot {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	if visibleText == "" {
		visibleText = browser.VisibleText(doc)
	}
	return &Snapshot{HTML: html, Text: visibleText, Doc: doc}
}

// TakeSnapshot captures the page. Engine failures yield an empty snapshot,
// which every extractor treats as "no price".
func TakeSnapshot(ctx context.Context, page browser.Page) *Snapshot {
	html, err := page.HTML(ctx)
	if err != nil {
		html = ""
	}
	text, err := page.VisibleText(ctx)
	if err != nil {
		text = ""
	}
	return NewSnapshot(html, text)
}

// ExtractJSONLD returns the first offer price found across the page's
// structured-data blocks, in document order. Malformed blocks are skipped.
func ExtractJSONLD(s *Snapshot) (float64, bool) {
	var (
		price float64
		found bool
	)
	s.Doc.Find(`script[type*="ld+json"]`).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		raw := strings.TrimSpace(node.Text())
		if raw == "" {
			return true
		}
		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			if err := json5.Unmarshal([]byte(raw), &data); err != nil {
				return true
			}
		}
		price, found = jsonLDPrice(data)
		return !found
	})
	return price, found
}

func jsonLDPrice(node interface{}) (float64, bool) {
	switch v := node.(type) {
	case []interface{}:
		for _, item := range v {
			if p, ok := jsonLDPrice(item); ok {
				return p, true
			}
		}
	case map[string]interface{}:
		if offers, ok := v["offers"]; ok {
			if p, ok := offersPrice(offers); ok {
				return p, true
			}
		}
		for _, key := range []string{"@graph", "mainEntity"} {
			if nested, ok := v[key]; ok {
				if p, ok := jsonLDPrice(nested); ok {
					return p, true
				}
			}
		}
	}
	return 0, false
}

func offersPrice(offers interface{}) (float64, bool) {
	list, ok := offers.([]interface{})
	if !ok {
		list = []interface{}{offers}
	}
	for _, item := range list {
		offer, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if p, ok := positiveNumber(offer["price"]); ok {
			return p, true
		}
		spec := offer["priceSpecification"]
		if specs, ok := spec.([]interface{}); ok && len(specs) > 0 {
			spec = specs[0]
		}
		if m, ok := spec.(map[string]interface{}); ok {
			if p, ok := positiveNumber(m["price"]); ok {
				return p, true
			}
		}
	}
	return 0, false
}

// positiveNumber accepts JSON numbers and numeric strings. Zero, which the
// vendors use for "no price", is rejected.
func positiveNumber(v interface{}) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if !validPrice(n) || n == 0 {
		return 0, false
	}
	return n, true
}

var metaSelectors = []struct {
	selector string
	attrs    []string
}{
	{`[itemprop="price"]`, []string{"content", "value"}},
	{`[data-price]`, []string{"data-price"}},
	{`meta[property="product:price:amount"]`, []string{"content"}},
	{`meta[property="og:price:amount"]`, []string{"content"}},
}

// ExtractMeta reads microdata and Open Graph price attributes.
func ExtractMeta(s *Snapshot) (float64, bool) {
	for _, m := range metaSelectors {
		var (
			price float64
			found bool
		)
		s.Doc.Find(m.selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			candidates := make([]string, 0, len(m.attrs)+1)
			for _, attr := range m.attrs {
				if v, ok := el.Attr(attr); ok {
					candidates = append(candidates, v)
				}
			}
			candidates = append(candidates, el.Text())
			for _, c := range candidates {
				if strings.TrimSpace(c) == "" {
					continue
				}
				if p, err := ParsePrice(c); err == nil && p > 0 {
					price, found = p, true
					return false
				}
			}
			return true
		})
		if found {
			return price, true
		}
	}
	return 0, false
}

// NodePolicy decides which candidate wins when several price-flagged
// elements carry numbers.
type NodePolicy int

const (
	// SelectMin keeps the smallest value. Strike-through list prices are
	// usually larger than the sale price shown next to them.
	SelectMin NodePolicy = iota
	// SelectFirst keeps the first value in document order.
	SelectFirst
)

// ParseNodePolicy maps "min" and "first" to a policy, defaulting to SelectMin.
func ParseNodePolicy(s string) NodePolicy {
	if strings.EqualFold(strings.TrimSpace(s), "first") {
		return SelectFirst
	}
	return SelectMin
}

var (
	priceFlagAttrs  = []string{"class", "id", "data-testid", "data-test", "data-automation-id"}
	decimalOrDollar = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?|\d[\d,]*\.\d+`)
	integerRun      = regexp.MustCompile(`\d+`)
	dollarsPart     = regexp.MustCompile(`(?i)dollar|whole|integer`)
	centsPart       = regexp.MustCompile(`(?i)cent|fraction|decimal`)
)

func priceFlagged(el *goquery.Selection) bool {
	for _, attr := range priceFlagAttrs {
		if strings.Contains(strings.ToLower(el.AttrOr(attr, "")), "price") {
			return true
		}
	}
	return false
}

func partMarker(el *goquery.Selection) string {
	return el.AttrOr("class", "") + " " + el.AttrOr("data-testid", "")
}

// integerLeaf returns the digits of an element holding nothing but a whole
// number, optionally with a dollar sign.
func integerLeaf(el *goquery.Selection) (string, bool) {
	if el.Children().Length() > 0 {
		return "", false
	}
	text := strings.TrimSpace(el.Text())
	d := integerRun.FindString(text)
	return d, d != "" && d == strings.Trim(text, "$ ")
}

// unmarkedDollars reports whether el is an integer-only element followed by
// a cents-marked sibling, as in "price-value" + "price-cents" layouts.
func unmarkedDollars(el *goquery.Selection) bool {
	if _, ok := integerLeaf(el); !ok || centsPart.MatchString(partMarker(el)) {
		return false
	}
	return el.NextAllFiltered("*").FilterFunction(func(_ int, sib *goquery.Selection) bool {
		return centsPart.MatchString(partMarker(sib))
	}).Length() > 0
}

// pricePart reports whether el is the whole or fractional half of a split
// price inside another flagged element, which reads it through
// splitDollarsCents instead.
func pricePart(el *goquery.Selection) bool {
	marker := partMarker(el)
	if !dollarsPart.MatchString(marker) && !centsPart.MatchString(marker) && !unmarkedDollars(el) {
		return false
	}
	return el.ParentsFiltered("*").FilterFunction(func(_ int, p *goquery.Selection) bool {
		return priceFlagged(p)
	}).Length() > 0
}

// ExtractPriceNodes scans every element flagged as price-related and picks a
// value according to policy.
func ExtractPriceNodes(s *Snapshot, policy NodePolicy) (float64, bool) {
	var (
		best  float64
		found bool
	)
	s.Doc.Find("body *").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if !priceFlagged(el) || pricePart(el) {
			return true
		}
		v, ok := nodeValue(el)
		if !ok {
			return true
		}
		if !found || (policy == SelectMin && v < best) {
			best, found = v, true
		}
		return policy != SelectFirst
	})
	return best, found
}

func nodeValue(el *goquery.Selection) (float64, bool) {
	if v, ok := splitDollarsCents(el); ok {
		return v, true
	}
	text := strings.TrimSpace(el.Text())
	if text == "" {
		return 0, false
	}
	if m := decimalOrDollar.FindString(text); m != "" {
		if v, err := ParsePrice(m); err == nil && validPrice(v) {
			return v, true
		}
	}
	if m := integerRun.FindString(text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil && validPrice(v) {
			return v, true
		}
	}
	return 0, false
}

// splitDollarsCents handles prices rendered as separate whole and fractional
// parts, e.g. <span class="price__dollars">12</span><span class="price__cents">98</span>.
func splitDollarsCents(el *goquery.Selection) (float64, bool) {
	var dollars, cents, unmarked string
	el.Find("*").Each(func(_ int, child *goquery.Selection) {
		marker := partMarker(child)
		text := strings.TrimSpace(child.Text())
		if d := integerRun.FindString(text); d != "" && d == strings.Trim(text, "$ ") {
			switch {
			case dollars == "" && dollarsPart.MatchString(marker):
				dollars = d
			case cents == "" && centsPart.MatchString(marker):
				cents = d
			case unmarked == "" && cents == "" && unmarkedDollars(child):
				unmarked = d
			}
		}
	})
	if dollars == "" {
		dollars = unmarked
	}
	if dollars == "" || cents == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(dollars+"."+cents, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// only dollar-prefixed amounts or amounts with two-digit cents count, so
// stray integers such as ratings or quantities are not mistaken for prices
var visiblePricePattern = regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d{1,6}(?:[.,]\d{2})?)|\b(\d{1,6}\.\d{2})\b`)

// ExtractVisibleText regex-scans the rendered body text.
func ExtractVisibleText(s *Snapshot) (float64, bool) {
	for _, m := range visiblePricePattern.FindAllStringSubmatch(s.Text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if v, err := ParsePrice(raw); err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}

var rawPricePattern = regexp.MustCompile(
	`"(?:price|salePrice|currentPrice|finalPrice|offerPrice|regularPrice|priceValue)"\s*:\s*"?\$?(\d+(?:\.\d+)?)"?`)

// ExtractRawHTML looks for JSON-embedded price keys anywhere in the markup,
// which catches hydration state that never made it into the DOM.
func ExtractRawHTML(s *Snapshot) (float64, bool) {
	for _, m := range rawPricePattern.FindAllStringSubmatch(s.HTML, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && validPrice(v) && v > 0 {
			return v, true
		}
	}
	return 0, false
}
