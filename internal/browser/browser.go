// Package browser implements the driver.Session capability on Playwright
// Chromium. One Factory owns the browser process; every scrape run gets its
// own context and page, so cookie jars never leak between retailers.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pricelab/catalog-scraper/internal/driver"
	"github.com/pricelab/catalog-scraper/internal/storage"
)

type Options struct {
	Headless       bool
	SlowMo         time.Duration
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "uk-UA,uk;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Kyiv",
		Locale:         "uk-UA",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

// Factory launches one Chromium process and hands out isolated sessions from
// it. It implements scraper.SessionFactory.
type Factory struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

func NewFactory(opts *Options, logger *slog.Logger) (*Factory, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--start-maximized",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.SlowMo > 0 {
		launchOpts.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Factory{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// NewSession opens a fresh context and page. The caller owns the session and
// must close it.
func (f *Factory) NewSession() (driver.Session, error) {
	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &f.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &f.opts.Locale,
		TimezoneId:        &f.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  f.opts.ViewportWidth,
			Height: f.opts.ViewportHeight,
		},
		ExtraHttpHeaders: f.opts.ExtraHeaders,
	}

	browserCtx, err := f.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(float64(f.opts.Timeout.Milliseconds()))

	return &Session{
		context: browserCtx,
		page:    page,
		logger:  f.logger,
	}, nil
}

func (f *Factory) Close() error {
	var errs []error

	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// Session is one isolated page plus its cookie jar.
type Session struct {
	context playwright.BrowserContext
	page    playwright.Page
	logger  *slog.Logger
}

func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) (driver.NavResult, error) {
	if err := ctx.Err(); err != nil {
		return driver.NavResult{}, err
	}

	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return driver.NavResult{}, s.classify(fmt.Errorf("failed to navigate: %w", err))
	}

	result := driver.NavResult{FinalURL: s.page.URL()}
	// Cached or about: navigations carry no response; status 0 means "none
	// observed", not success.
	if resp != nil {
		result.Status = resp.Status()
	}

	return result, nil
}

func (s *Session) QueryAll(selector string) ([]driver.Node, error) {
	locators, err := s.page.Locator(selector).All()
	if err != nil {
		return nil, s.classify(fmt.Errorf("failed to query %q: %w", selector, err))
	}

	nodes := make([]driver.Node, len(locators))
	for i, loc := range locators {
		nodes[i] = &node{loc: loc}
	}
	return nodes, nil
}

func (s *Session) Count(selector string) (int, error) {
	count, err := s.page.Locator(selector).Count()
	if err != nil {
		return 0, s.classify(fmt.Errorf("failed to count %q: %w", selector, err))
	}
	return count, nil
}

func (s *Session) Body() (string, error) {
	text, err := s.page.Locator("body").InnerText()
	if err != nil {
		return "", s.classify(fmt.Errorf("failed to read body text: %w", err))
	}
	return text, nil
}

func (s *Session) HTML() (string, error) {
	content, err := s.page.Content()
	if err != nil {
		return "", s.classify(fmt.Errorf("failed to read page content: %w", err))
	}
	return content, nil
}

func (s *Session) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return s.classify(fmt.Errorf("failed to take screenshot: %w", err))
	}
	return nil
}

// LoadCookies imports a persisted cookie file into the context. A missing
// file is the normal cold start and imports nothing.
func (s *Session) LoadCookies(path string) error {
	cookies, err := storage.NewCookieStore(path).Load()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}

	imported := make([]playwright.OptionalCookie, len(cookies))
	for i, c := range cookies {
		imported[i] = toPlaywrightCookie(c)
	}

	if err := s.context.AddCookies(imported); err != nil {
		return s.classify(fmt.Errorf("failed to import cookies: %w", err))
	}

	s.logger.Debug("cookies imported", "path", path, "count", len(cookies))
	return nil
}

func (s *Session) SaveCookies(path string) error {
	cookies, err := s.context.Cookies()
	if err != nil {
		return s.classify(fmt.Errorf("failed to export cookies: %w", err))
	}

	stored := make([]storage.Cookie, len(cookies))
	for i, c := range cookies {
		stored[i] = fromPlaywrightCookie(c)
	}

	return storage.NewCookieStore(path).Save(stored)
}

func (s *Session) Close() error {
	if err := s.context.Close(); err != nil {
		return fmt.Errorf("failed to close session context: %w", err)
	}
	return nil
}

// classify folds "target/page/browser has been closed" driver errors into
// driver.ErrSessionClosed so the engine can tell a dead session from a flaky
// page.
func (s *Session) classify(err error) error {
	if err == nil {
		return nil
	}
	if s.page.IsClosed() || strings.Contains(err.Error(), "has been closed") {
		return fmt.Errorf("%w: %v", driver.ErrSessionClosed, err)
	}
	return err
}

type node struct {
	loc playwright.Locator
}

func (n *node) Text() (string, error) {
	return n.loc.InnerText()
}

func (n *node) HTML() (string, error) {
	return n.loc.InnerHTML()
}

func toPlaywrightCookie(c storage.Cookie) playwright.OptionalCookie {
	cookie := playwright.OptionalCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   playwright.String(c.Domain),
		Path:     playwright.String(c.Path),
		HttpOnly: playwright.Bool(c.HTTPOnly),
		Secure:   playwright.Bool(c.Secure),
	}
	if c.Expires != 0 {
		cookie.Expires = playwright.Float(c.Expires)
	}
	if attr := sameSiteAttribute(c.SameSite); attr != nil {
		cookie.SameSite = attr
	}
	return cookie
}

func fromPlaywrightCookie(c playwright.Cookie) storage.Cookie {
	cookie := storage.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		HTTPOnly: c.HttpOnly,
		Secure:   c.Secure,
	}
	if c.SameSite != nil {
		cookie.SameSite = string(*c.SameSite)
	}
	return cookie
}

func sameSiteAttribute(v string) *playwright.SameSiteAttribute {
	switch strings.ToLower(v) {
	case "strict":
		return playwright.SameSiteAttributeStrict
	case "lax":
		return playwright.SameSiteAttributeLax
	case "none":
		return playwright.SameSiteAttributeNone
	}
	return nil
}
