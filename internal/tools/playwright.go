package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/haasonsaas/webpilot/internal/observability"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// Wire names of the catalogue operations.
const (
	NameNavigate        = "playwright_navigate"
	NameClick           = "playwright_click"
	NameType            = "playwright_type"
	NameScreenshot      = "playwright_screenshot"
	NameWaitForSelector = "playwright_wait_for_selector"
	NameWaitForText     = "playwright_wait_for_text"
	NamePageContent     = "playwright_get_page_content"
	NameExecuteJS       = "playwright_execute_javascript"
	NamePageMetadata    = "playwright_get_page_metadata"
	NameCloseBrowser    = "playwright_close_browser"
)

// Session is the browser surface the catalogue drives. *browser.Session
// implements it.
type Session interface {
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
	Ready() bool
	Page() (playwright.Page, error)
}

// notReady is the outcome of every tool except navigate and close when no
// page is live yet. The wording is part of the transcript contract.
var notReady = Outcome{OK: false, Report: "❌ Browser not initialized. Please navigate to a page first."}

// Catalogue binds the ten browser operations to one session.
type Catalogue struct {
	session       Session
	screenshotDir string
	logger        *observability.Logger
}

// CatalogueOptions configures the catalogue.
type CatalogueOptions struct {
	// ScreenshotDir is joined with screenshot filenames. Empty means the
	// process working directory; collision handling is the caller's concern.
	ScreenshotDir string
	Logger        *observability.Logger
}

// NewCatalogue creates the catalogue for one session.
func NewCatalogue(session Session, opts CatalogueOptions) *Catalogue {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Catalogue{
		session:       session,
		screenshotDir: opts.ScreenshotDir,
		logger:        opts.Logger,
	}
}

// Tools returns the ten operations in canonical order, ready to register.
func (c *Catalogue) Tools() []Tool {
	return []Tool{
		&tool{NameNavigate, "Navigate to a website (opens visible browser)", c.navigate},
		&tool{NameClick, "Click elements on the page", c.click},
		&tool{NameType, "Type text into input fields", c.typeText},
		&tool{NameScreenshot, "Take screenshots for documentation", c.screenshot},
		&tool{NameWaitForSelector, "Wait for elements to appear", c.waitForSelector},
		&tool{NameWaitForText, "Wait for text to appear", c.waitForText},
		&tool{NamePageContent, "Get page structure and content", c.pageContent},
		&tool{NameExecuteJS, "Run JavaScript", c.executeJavaScript},
		&tool{NamePageMetadata, "Extract metadata for page or specific element", c.pageMetadata},
		&tool{NameCloseBrowser, "Close browser when done", c.closeBrowser},
	}
}

type tool struct {
	name        string
	description string
	run         func(ctx context.Context, args Args) Outcome
}

func (t *tool) Name() string        { return t.name }
func (t *tool) Description() string { return t.description }

func (t *tool) Execute(ctx context.Context, args Args) Outcome {
	return t.run(ctx, args)
}

// navigate launches the browser on first use, then opens the URL. The 30s
// ceiling covers slow pages without letting a dead host stall the run.
func (c *Catalogue) navigate(ctx context.Context, args Args) Outcome {
	url := args.String("url")

	if err := c.session.Initialize(ctx); err != nil {
		return fail("Failed to navigate to %s: %v", url, err)
	}
	page, err := c.session.Page()
	if err != nil {
		return fail("Failed to navigate to %s: %v", url, err)
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(30000),
	}); err != nil {
		return fail("Failed to navigate to %s: %v", url, err)
	}
	title, err := page.Title()
	if err != nil {
		return fail("Failed to navigate to %s: %v", url, err)
	}

	c.logger.Debug(ctx, "navigated", "url", url, "title", title)
	return ok("Successfully navigated to %s - Page title: '%s'", url, title)
}

func (c *Catalogue) click(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	selector := args.String("selector")
	target := selector
	if strings.HasPrefix(selector, "//") {
		target = "xpath=" + selector
	}

	if err := page.Click(target, playwright.PageClickOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		return fail("Failed to click element %s: %v", selector, err)
	}

	return ok("Successfully clicked element: %s%s", selector, described(args))
}

func (c *Catalogue) typeText(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	selector := args.String("selector")
	text := args.String("text")

	if err := page.Fill(selector, text); err != nil {
		return fail("Failed to type into %s: %v", selector, err)
	}

	return ok("Successfully typed '%s' into %s%s", text, selector, described(args))
}

func (c *Catalogue) screenshot(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	filename := args.String("filename")
	if filename == "" {
		filename = "screenshot.png"
	}
	path := filename
	if c.screenshotDir != "" {
		path = filepath.Join(c.screenshotDir, filename)
	}

	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	}); err != nil {
		return fail("Failed to take screenshot: %v", err)
	}

	return ok("Screenshot saved to: %s", path)
}

func (c *Catalogue) waitForSelector(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	selector := args.String("selector")
	timeout := args.Int("timeout", 10000)

	if _, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout)),
	}); err != nil {
		return fail("Element %s did not appear within %dms: %v", selector, timeout, err)
	}

	return ok("Element %s appeared on page", selector)
}

func (c *Catalogue) waitForText(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	text := args.String("text")
	timeout := args.Int("timeout", 10000)

	if _, err := page.WaitForSelector("text="+text, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout)),
	}); err != nil {
		return fail("Text '%s' did not appear within %dms: %v", text, timeout, err)
	}

	return ok("Text '%s' appeared on page", text)
}

const pageContentJS = `() => {
    const headings = Array.from(document.querySelectorAll('h1, h2, h3')).slice(0, 5).map(h => h.textContent.trim());
    const links = Array.from(document.querySelectorAll('a')).slice(0, 10).map(a => ({text: a.textContent.trim(), href: a.href}));
    const inputs = Array.from(document.querySelectorAll('input, textarea')).slice(0, 5).map(i => ({type: i.type, placeholder: i.placeholder, name: i.name}));
    return { headings, links: links.filter(l => l.text), inputs };
}`

func (c *Catalogue) pageContent(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	title, err := page.Title()
	if err != nil {
		return fail("Failed to get page content: %v", err)
	}
	url := page.URL()

	result, err := page.Evaluate(pageContentJS)
	if err != nil {
		return fail("Failed to get page content: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📄 Page Info:\n  Title: %s\n  URL: %s\n", title, url)

	content, _ := result.(map[string]any)
	if headings := stringSlice(content["headings"]); len(headings) > 0 {
		if len(headings) > 3 {
			headings = headings[:3]
		}
		fmt.Fprintf(&b, "  Headings: %s\n", strings.Join(headings, ", "))
	}
	if links, isSlice := content["links"].([]any); isSlice && len(links) > 0 {
		fmt.Fprintf(&b, "  Links found: %d\n", len(links))
	}
	if inputs, isSlice := content["inputs"].([]any); isSlice && len(inputs) > 0 {
		fmt.Fprintf(&b, "  Input fields: %d\n", len(inputs))
	}

	return Outcome{OK: true, Report: b.String()}
}

func (c *Catalogue) executeJavaScript(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	script := args.String("script")
	result, err := page.Evaluate(script)
	if err != nil {
		return fail("Failed to execute JavaScript: %v", err)
	}

	return ok("JavaScript executed. Result: %v", result)
}

const pageMetadataJS = `(selector) => {
    return Array.from(document.querySelectorAll(selector)).slice(0, 10).map(el => {
        const tag = el.tagName.toLowerCase();
        const text = (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim();
        return {
            tag: tag,
            text: text.slice(0, 200),
            id: el.id || '',
            name: el.getAttribute('name') || '',
            class: el.getAttribute('class') || '',
            href: el.href || el.getAttribute('href') || '',
            input_type: tag === 'input' ? (el.getAttribute('type') || 'text') : ''
        };
    });
}`

// pageMetadata emits the structured block the transcript scanner parses.
// Without a selector only the page header is emitted; with one, up to ten
// matched elements follow.
func (c *Catalogue) pageMetadata(ctx context.Context, args Args) Outcome {
	if !c.session.Ready() {
		return notReady
	}
	page, err := c.session.Page()
	if err != nil {
		return notReady
	}

	title, err := page.Title()
	if err != nil {
		return fail("Failed to get page metadata: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📄 Page Metadata:\n  • URL: %s\n  • Title: %s", page.URL(), title)

	selector := args.String("selector")
	if selector == "" {
		return Outcome{OK: true, Report: b.String()}
	}

	result, err := page.Evaluate(pageMetadataJS, selector)
	if err != nil {
		return fail("Failed to get page metadata: %v", err)
	}
	entries, _ := result.([]any)
	if len(entries) == 0 {
		return fail("No elements found for selector: %s", selector)
	}

	fmt.Fprintf(&b, "\n\n🎯 Element Metadata (Found %d element(s)):", len(entries))
	for i, entry := range entries {
		attrs, _ := entry.(map[string]any)
		tag := str(attrs["tag"])

		elementSelector := selector
		if id := str(attrs["id"]); id != "" {
			elementSelector = "#" + id
		}

		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n  Element %d:", i+1)
		fmt.Fprintf(&b, "\n  • Selector: %s", elementSelector)
		fmt.Fprintf(&b, "\n  • Tag: <%s>", tag)
		fmt.Fprintf(&b, "\n  • Type: %s", models.ElementKind(tag))
		fmt.Fprintf(&b, "\n  • Text: %s", orNone(str(attrs["text"])))
		fmt.Fprintf(&b, "\n  • Href: %s", orNone(str(attrs["href"])))
		fmt.Fprintf(&b, "\n  • ID: %s", orNone(str(attrs["id"])))
		fmt.Fprintf(&b, "\n  • Name: %s", orNone(str(attrs["name"])))
		fmt.Fprintf(&b, "\n  • Class: %s", orNone(str(attrs["class"])))
		fmt.Fprintf(&b, "\n  • Input Type: %s", orNone(str(attrs["input_type"])))
	}

	return Outcome{OK: true, Report: b.String()}
}

func (c *Catalogue) closeBrowser(ctx context.Context, args Args) Outcome {
	if err := c.session.Close(ctx); err != nil {
		return fail("Failed to close browser: %v", err)
	}
	return ok("Browser closed successfully")
}

// described renders the optional element_description argument the way the
// click and type outcomes print it.
func described(args Args) string {
	if desc := args.String("element_description"); desc != "" {
		return fmt.Sprintf(" (%s)", desc)
	}
	return ""
}

// orNone renders absent attribute values the way the scanner expects.
func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func stringSlice(v any) []string {
	items, isSlice := v.([]any)
	if !isSlice {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, isString := item.(string); isString && s != "" {
			out = append(out, s)
		}
	}
	return out
}
