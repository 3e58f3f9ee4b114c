package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JustJay7/court-case-pipeline/internal/config"
	"github.com/JustJay7/court-case-pipeline/pkg/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Browser owns the Chrome process shared by all queries of a run.
type Browser struct {
	cfg      *config.Config
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *logger.Logger
	mu       sync.Mutex
	closed   bool
}

// NewBrowser launches a local Chrome, or connects to cfg.BrowserRemoteURL.
func NewBrowser(cfg *config.Config, log *logger.Logger) (*Browser, error) {
	b := &Browser{cfg: cfg, logger: log}

	controlURL := cfg.BrowserRemoteURL
	if controlURL == "" {
		// Configure launcher with proper options
		l := launcher.New().
			Headless(cfg.HeadlessMode).
			Set("user-agent", cfg.UserAgent).
			Set("disable-blink-features", "AutomationControlled").
			Delete("enable-automation")

		if cfg.BrowserPath != "" {
			l = l.Bin(cfg.BrowserPath)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
		b.launcher = l
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Cleanup()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	b.browser = browser

	log.Info("Browser ready", "remote", cfg.BrowserRemoteURL != "", "headless", cfg.HeadlessMode)
	return b, nil
}

// NewPage opens a fresh stealth tab.
func (b *Browser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrowserClosed
	}

	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		b.logger.Warn("Failed to set viewport", "error", err)
	}

	// Set extra headers to appear more human-like
	if _, err := page.SetExtraHeaders([]string{"Accept-Language", "en-US,en;q=0.9"}); err != nil {
		b.logger.Warn("Failed to set extra headers", "error", err)
	}

	return &rodPage{
		page:            page,
		selectorTimeout: b.cfg.SelectorTimeout,
	}, nil
}

// Close closes the browser and the launched process.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return err
}

// rodPage implements Page over a rod tab.
type rodPage struct {
	page            *rod.Page
	selectorTimeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return err
	}
	return p.waitLoad(ctx)
}

func (p *rodPage) Reload(ctx context.Context) error {
	if err := p.page.Context(ctx).Reload(); err != nil {
		return err
	}
	return p.waitLoad(ctx)
}

func (p *rodPage) Back(ctx context.Context) error {
	if err := p.page.Context(ctx).NavigateBack(); err != nil {
		return err
	}
	return p.waitLoad(ctx)
}

// waitLoad only fails when ctx is gone; a slow load still leaves a usable DOM.
func (p *rodPage) waitLoad(ctx context.Context) error {
	if err := p.page.Context(ctx).WaitLoad(); err != nil && ctx.Err() != nil {
		return err
	}
	return nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Exists(ctx context.Context, selector string) bool {
	has, _, err := p.page.Context(ctx).Has(selector)
	return err == nil && has
}

// withElement waits up to the selector timeout for selector and runs fn on it.
func (p *rodPage) withElement(ctx context.Context, selector string, fn func(el *rod.Element) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.selectorTimeout)
	defer cancel()

	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	}
	return fn(el)
}

func (p *rodPage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.withElement(ctx, selector, func(el *rod.Element) error {
		t, err := el.Text()
		text = t
		return err
	})
	return text, err
}

func (p *rodPage) Options(ctx context.Context, selector string) ([]SelectOption, error) {
	var opts []SelectOption
	err := p.withElement(ctx, selector, func(el *rod.Element) error {
		items, err := el.Elements("option")
		if err != nil {
			return err
		}
		for _, item := range items {
			text, _ := item.Text()
			value := text
			if v, err := item.Attribute("value"); err == nil && v != nil {
				value = *v
			}
			opts = append(opts, SelectOption{Value: value, Text: text})
		}
		return nil
	})
	return opts, err
}

func (p *rodPage) Select(ctx context.Context, selector, value string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		return el.Select([]string{fmt.Sprintf("[value=%q]", value)}, true, rod.SelectorTypeCSSSector)
	})
}

func (p *rodPage) Input(ctx context.Context, selector, text string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		_ = el.SelectAllText()
		return el.Input(text)
	})
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (p *rodPage) SubmitForm(ctx context.Context, formIndex int, buttonSelector string) error {
	page := p.page.Context(ctx)

	forms, err := page.Elements("form")
	if err != nil {
		return err
	}
	if formIndex < 0 || formIndex >= len(forms) {
		return fmt.Errorf("%w: form %d of %d", ErrNoSearchForm, formIndex, len(forms))
	}
	form := forms[formIndex]

	wait := page.WaitNavigation(proto.PageLifecycleEventNameLoad)

	if buttonSelector != "" {
		if has, btn, err := form.Has(buttonSelector); err == nil && has {
			if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
				return fmt.Errorf("failed to click submit: %w", err)
			}
			wait()
			return nil
		}
	}

	if _, err := form.Eval(`() => this.submit()`); err != nil {
		return fmt.Errorf("failed to submit form: %w", err)
	}
	wait()
	return nil
}

func (p *rodPage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	var data []byte
	err := p.withElement(ctx, selector, func(el *rod.Element) error {
		shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		data = shot
		return err
	})
	return data, err
}

func (p *rodPage) ScreenshotAround(ctx context.Context, selector string, padding float64) ([]byte, error) {
	var data []byte
	err := p.withElement(ctx, selector, func(el *rod.Element) error {
		shape, err := el.Shape()
		if err != nil {
			return err
		}
		box := shape.Box()
		x := box.X - padding
		y := box.Y - padding
		if x < 0 {
			x = 0
		}
		if y < 0 {
			y = 0
		}
		shot, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
			Clip: &proto.PageViewport{
				X:      x,
				Y:      y,
				Width:  box.Width + 2*padding,
				Height: box.Height + 2*padding,
				Scale:  1,
			},
		})
		data = shot
		return err
	})
	return data, err
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
