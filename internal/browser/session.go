package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/internal/observability"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// Session owns one browser process and one active page for a single run.
// It is created cold and launched lazily by the first navigation; Close
// releases everything and may be called any number of times. A session is
// never shared across runs, so it carries no locking.
type Session struct {
	engine   models.Engine
	headless bool
	logger   *observability.Logger

	pw         *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
	ready      bool
}

// Options configures a session before launch.
type Options struct {
	Engine   models.Engine
	Headless bool
	Logger   *observability.Logger
}

// NewSession creates an unlaunched session. The engine and headless choice
// are fixed for the session's lifetime.
func NewSession(opts Options) *Session {
	if opts.Engine == "" {
		opts.Engine = models.EngineChromium
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Session{
		engine:   opts.Engine,
		headless: opts.Headless,
		logger:   opts.Logger,
	}
}

// Initialize launches the browser and opens an empty page. Calling it on a
// ready session is a no-op. A session that was closed can be initialized
// again; this relaunches the browser.
func (s *Session) Initialize(ctx context.Context) error {
	if s.ready {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return errdefs.Browser("launch", "", fmt.Errorf("failed to start driver: %w", err))
	}

	browser, err := s.launch(pw)
	if err != nil {
		pw.Stop()
		return errdefs.Browser("launch", "", fmt.Errorf("failed to launch %s: %w", s.engine, err))
	}

	browserCtx, err := browser.NewContext()
	if err != nil {
		browser.Close()
		pw.Stop()
		return errdefs.Browser("launch", "", fmt.Errorf("failed to create browser context: %w", err))
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browser.Close()
		pw.Stop()
		return errdefs.Browser("launch", "", fmt.Errorf("failed to create page: %w", err))
	}

	s.pw = pw
	s.browser = browser
	s.browserCtx = browserCtx
	s.page = page
	s.ready = true

	s.logger.Info(ctx, "launched browser", "engine", string(s.engine), "headless", s.headless)
	return nil
}

func (s *Session) launch(pw *playwright.Playwright) (playwright.Browser, error) {
	family, channel := engineLaunch(s.engine)

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
	}
	if channel != "" {
		opts.Channel = playwright.String(channel)
	}

	switch family {
	case "firefox":
		return pw.Firefox.Launch(opts)
	case "webkit":
		return pw.WebKit.Launch(opts)
	default:
		return pw.Chromium.Launch(opts)
	}
}

// engineLaunch maps an engine variant to a driver family and launch channel.
// Unknown variants fall back to plain chromium.
func engineLaunch(engine models.Engine) (family, channel string) {
	switch engine {
	case models.EngineFirefox:
		return "firefox", ""
	case models.EngineWebKit:
		return "webkit", ""
	case models.EngineEdge:
		return "chromium", "msedge"
	default:
		return "chromium", ""
	}
}

// Ready reports whether the session has a live page.
func (s *Session) Ready() bool {
	return s.ready && s.page != nil
}

// Page returns the active page handle.
func (s *Session) Page() (playwright.Page, error) {
	if !s.Ready() {
		return nil, errdefs.ErrSessionNotReady
	}
	return s.page, nil
}

// Close releases the page, context, browser, and driver, in that order.
// Safe to call repeatedly and on a session that never launched.
func (s *Session) Close(ctx context.Context) error {
	if !s.ready && s.pw == nil {
		return nil
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.page != nil {
		record(s.page.Close())
		s.page = nil
	}
	if s.browserCtx != nil {
		record(s.browserCtx.Close())
		s.browserCtx = nil
	}
	if s.browser != nil {
		record(s.browser.Close())
		s.browser = nil
	}
	if s.pw != nil {
		record(s.pw.Stop())
		s.pw = nil
	}
	s.ready = false

	s.logger.Info(ctx, "closed browser session", "engine", string(s.engine))
	if firstErr != nil {
		return errdefs.Browser("close", "", firstErr)
	}
	return nil
}

// Install downloads the driver and browser binaries if missing. Used by the
// install-browsers command and safe to call when already installed.
func Install(verbose bool) error {
	return playwright.Install(&playwright.RunOptions{Verbose: verbose})
}
