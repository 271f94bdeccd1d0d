package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html><head><title>Drywall</title>
<script>var tracking = "$0.01";</script></head>
<body>
  <button class="store">Change Store</button>
  <div class="price">$12.98</div>
  <style>.price{color:red}</style>
</body></html>`

func TestParseSelector(t *testing.T) {
	tests := []struct {
		raw  string
		want Selector
	}{
		{`.price`, Selector{CSS: ".price"}},
		{`button:has-text('Store')`, Selector{CSS: "button", Text: "Store"}},
		{`button:has-text("Select")`, Selector{CSS: "button", Text: "Select"}},
		{`:has-text('Pickup')`, Selector{CSS: "*", Text: "Pickup"}},
		{`a:has-text('x') span`, Selector{CSS: `a:has-text('x') span`}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSelector(tt.raw), tt.raw)
	}

	assert.True(t, Selector{Text: "store"}.Matches("Change STORE"))
	assert.False(t, Selector{Text: "pickup"}.Matches("Delivery"))
}

func TestFindTextAndVisibleText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(productPage))
	require.NoError(t, err)

	text, ok := FindText(doc.Selection, `button:has-text('store')`)
	require.True(t, ok)
	assert.Equal(t, "Change Store", text)

	_, ok = FindText(doc.Selection, `button:has-text('Pickup')`)
	assert.False(t, ok)

	visible := VisibleText(doc)
	assert.Contains(t, visible, "$12.98")
	assert.NotContains(t, visible, "$0.01")
	assert.NotContains(t, visible, "color:red")
}

func newStaticWithMock(t *testing.T) (*StaticLauncher, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	l := NewStaticLauncher(StaticOptions{
		UserAgent: "buildbank-test",
		Timeout:   time.Second,
		CacheTTL:  time.Minute,
		Transport: transport,
	}, nil)
	return l, transport
}

func TestStaticPageNavigateAndQuery(t *testing.T) {
	l, transport := newStaticWithMock(t)
	transport.RegisterResponder("GET", "https://shop.example/p/1", httpmock.NewStringResponder(200, productPage))

	ctx := context.Background()
	session, err := l.NewSession(ctx)
	require.NoError(t, err)
	defer session.Close()

	page, err := session.NewPage(ctx)
	require.NoError(t, err)
	defer page.Close()

	require.NoError(t, page.Navigate(ctx, "https://shop.example/p/1", WaitNetworkIdle, time.Second))

	text, err := page.Text(ctx, ".price", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "$12.98", text)

	_, err = page.Text(ctx, ".missing", time.Second)
	assert.True(t, errors.Is(err, ErrElementNotFound))

	html, err := page.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, `class="price"`)

	assert.True(t, errors.Is(page.Click(ctx, ".store", time.Second), ErrNotInteractive))
	assert.True(t, errors.Is(page.Fill(ctx, "input", "30301", time.Second), ErrNotInteractive))
	assert.True(t, errors.Is(page.PressEnter(ctx), ErrNotInteractive))
	assert.False(t, l.Interactive())
}

func TestStaticPageCachesDocuments(t *testing.T) {
	l, transport := newStaticWithMock(t)
	transport.RegisterResponder("GET", "https://shop.example/p/2", httpmock.NewStringResponder(200, productPage))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		session, err := l.NewSession(ctx)
		require.NoError(t, err)
		page, err := session.NewPage(ctx)
		require.NoError(t, err)
		require.NoError(t, page.Navigate(ctx, "https://shop.example/p/2", WaitDOMContentLoaded, time.Second))
		require.NoError(t, page.Close())
		require.NoError(t, session.Close())
	}

	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestStaticPageErrorStatus(t *testing.T) {
	l, transport := newStaticWithMock(t)
	transport.RegisterResponder("GET", "https://shop.example/gone", httpmock.NewStringResponder(404, "not here"))

	ctx := context.Background()
	session, err := l.NewSession(ctx)
	require.NoError(t, err)
	page, err := session.NewPage(ctx)
	require.NoError(t, err)

	err = page.Navigate(ctx, "https://shop.example/gone", WaitDOMContentLoaded, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestStaticSessionRespectsCancelledContext(t *testing.T) {
	l, _ := newStaticWithMock(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.NewSession(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
