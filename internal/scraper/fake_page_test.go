package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// fakePage serves fixture HTML by URL and records form interaction.
type fakePage struct {
	mu sync.Mutex

	routes  map[string]string
	current string
	history []string

	values  map[string]string
	submits int
	reloads int
	closed  bool

	// onSubmit returns the URL the form submission lands on.
	onSubmit func(p *fakePage) string
	// navFailures makes the next n navigations to a URL fail.
	navFailures map[string]int
	navigations []string
}

func newFakePage(routes map[string]string) *fakePage {
	return &fakePage{
		routes:      routes,
		values:      make(map[string]string),
		navFailures: make(map[string]int),
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigate(ctx, url)
}

func (p *fakePage) navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.navigations = append(p.navigations, url)
	if n := p.navFailures[url]; n > 0 {
		p.navFailures[url] = n - 1
		return fmt.Errorf("net::ERR_CONNECTION_RESET")
	}
	if _, ok := p.routes[url]; !ok {
		return fmt.Errorf("404 for %s", url)
	}
	if p.current != "" {
		p.history = append(p.history, p.current)
	}
	p.current = url
	p.values = make(map[string]string)
	return nil
}

func (p *fakePage) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reloads++
	p.values = make(map[string]string)
	return ctx.Err()
}

func (p *fakePage) Back(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.history) == 0 {
		return fmt.Errorf("no history")
	}
	p.current = p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	return ctx.Err()
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.routes[p.current], nil
}

func (p *fakePage) doc() *goquery.Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(p.routes[p.current]))
	return doc
}

func (p *fakePage) find(selector string) *goquery.Selection {
	return p.doc().Find(selector)
}

func (p *fakePage) Exists(_ context.Context, selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.find(selector).Length() > 0
}

func (p *fakePage) Text(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.find(selector)
	if sel.Length() == 0 {
		return "", ErrElementNotFound
	}
	return sel.First().Text(), nil
}

func (p *fakePage) Options(_ context.Context, selector string) ([]SelectOption, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.find(selector)
	if sel.Length() == 0 {
		return nil, ErrElementNotFound
	}
	var opts []SelectOption
	sel.First().Find("option").Each(func(_ int, o *goquery.Selection) {
		text := strings.TrimSpace(o.Text())
		value, ok := o.Attr("value")
		if !ok {
			value = text
		}
		opts = append(opts, SelectOption{Value: value, Text: text})
	})
	return opts, nil
}

func (p *fakePage) Select(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.find(selector).Length() == 0 {
		return ErrElementNotFound
	}
	p.values[selector] = value
	return nil
}

func (p *fakePage) Input(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.find(selector).Length() == 0 {
		return ErrElementNotFound
	}
	p.values[selector] = text
	return nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.find(selector).Length() == 0 {
		return ErrElementNotFound
	}
	return nil
}

func (p *fakePage) SubmitForm(ctx context.Context, formIndex int, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if formIndex >= p.find("form").Length() {
		return ErrNoSearchForm
	}
	p.submits++
	if p.onSubmit == nil {
		return nil
	}
	values := p.values
	next := p.onSubmit(p)
	if err := p.navigate(ctx, next); err != nil {
		return err
	}
	p.values = values
	return nil
}

func (p *fakePage) Screenshot(_ context.Context, selector string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.find(selector).Length() == 0 {
		return nil, ErrElementNotFound
	}
	return []byte("png:" + selector), nil
}

func (p *fakePage) ScreenshotAround(ctx context.Context, selector string, _ float64) ([]byte, error) {
	return p.Screenshot(ctx, selector)
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[selector]
}

// fakePages hands out one prepared fakePage.
type fakePages struct {
	page *fakePage
	err  error
}

func (f *fakePages) NewPage(context.Context) (Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.page, nil
}
