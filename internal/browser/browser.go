// Package browser drives Chromium through playwright-go for the verification checks.
package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/wealthlog-verify/internal/obs"
	"github.com/kuitang/wealthlog-verify/internal/verify"
)

// Options configures the browser session.
type Options struct {
	Headless         bool
	ExecutablePath   string
	InstallBrowsers  bool
	AssertionTimeout time.Duration
	NavTimeout       time.Duration
}

// Session owns the Playwright driver and one Chromium instance.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options

	closeOnce sync.Once
	closeErr  error
}

const (
	defaultAssertionTimeout = 5 * time.Second
	defaultNavTimeout       = 30 * time.Second
)

// Launch starts the Playwright driver and a Chromium instance.
// Zero timeouts fall back to Playwright's own defaults (5s assertions, 30s navigation).
func Launch(opts Options) (*Session, error) {
	logger := obs.Pkg("browser")
	if opts.AssertionTimeout <= 0 {
		opts.AssertionTimeout = defaultAssertionTimeout
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = defaultNavTimeout
	}

	if opts.InstallBrowsers {
		logger.Info("installing_browsers", "browsers", "chromium")
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	logger.Debug("browser_launched", "headless", opts.Headless, "version", b.Version())
	return &Session{pw: pw, browser: b, opts: opts}, nil
}

// NewPage opens a page with the session's default timeouts applied.
func (s *Session) NewPage() (verify.Page, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	navMS := toMS(s.opts.NavTimeout)
	page.SetDefaultTimeout(navMS)
	page.SetDefaultNavigationTimeout(navMS)
	return &Page{
		page:   page,
		expect: playwright.NewPlaywrightAssertions(toMS(s.opts.AssertionTimeout)),
		navMS:  navMS,
	}, nil
}

// Close closes the browser and stops the driver. Only the first call does work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := s.browser.Close(); err != nil {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		if err := s.pw.Stop(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("stop playwright: %w", err)
		}
	})
	return s.closeErr
}

// Page adapts a playwright.Page to verify.Page.
type Page struct {
	page   playwright.Page
	expect playwright.PlaywrightAssertions
	navMS  float64
}

// Goto navigates and waits for DOMContentLoaded. Client-side redirects that
// happen afterwards are covered by the heading wait in ExpectHeading.
func (p *Page) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(p.navMS),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// ExpectHeading waits until a heading with exactly this accessible name is visible.
func (p *Page) ExpectHeading(name string) error {
	heading := p.page.GetByRole("heading", playwright.PageGetByRoleOptions{
		Name:  name,
		Exact: playwright.Bool(true),
	})
	if err := p.expect.Locator(heading).ToBeVisible(); err != nil {
		return fmt.Errorf("heading %q: %w", name, err)
	}
	return nil
}

// Screenshot writes a full-page PNG to path, creating its directory.
func (p *Page) Screenshot(path string) ([]byte, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create screenshot dir: %w", err)
		}
	}
	png, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", path, err)
	}
	return png, nil
}

func (p *Page) URL() string {
	return p.page.URL()
}

// Snapshot collects URL, title and HTML for failure diagnostics. Errors are ignored.
func (p *Page) Snapshot() verify.Snapshot {
	title, _ := p.page.Title()
	content, _ := p.page.Content()
	return verify.Snapshot{
		URL:   p.page.URL(),
		Title: title,
		HTML:  content,
	}
}

func (p *Page) Close() error {
	return p.page.Close()
}

func toMS(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
