package tool

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/joss/taskagent/internal/domain"
)

const (
	maxPageText   = 50000
	maxEvalOutput = 10000
)

var browserActions = []string{
	"navigate", "click", "input_text", "screenshot", "get_html", "get_text",
	"execute_js", "scroll", "switch_tab", "new_tab", "close_tab", "refresh",
}

// Browser drives a browser through the Chrome DevTools Protocol.
// The browser starts on first use and keeps its tabs between calls.
type Browser struct {
	cfg BrowserConfig

	mu      sync.Mutex
	session *browserSession
	tabs    []*rod.Page
	current int
}

func NewBrowser(cfg BrowserConfig) *Browser {
	return &Browser{cfg: cfg}
}

func (b *Browser) Info() domain.Tool {
	return domain.Tool{
		Name:             NameBrowserUse,
		ShortDescription: "Interact with a web browser to navigate pages, click, type, and extract content.",
		Description: `Interact with a web browser to perform actions such as navigation, element interaction, and content extraction.
Actions:
  navigate    - Go to a URL in the current tab
  click       - Click an element by CSS selector ('text=...' matches by text)
  input_text  - Type text into an element
  screenshot  - Capture the current tab
  get_html    - Return the page HTML
  get_text    - Return the page text
  execute_js  - Run JavaScript and return the result
  scroll      - Scroll the page by a number of pixels (negative scrolls up)
  switch_tab  - Make the tab with the given tab_id current
  new_tab     - Open a URL in a new tab
  close_tab   - Close the current tab
  refresh     - Reload the current tab`,
		Parameters: domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        browserActions,
					"description": "The browser action to perform",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "URL for 'navigate' or 'new_tab'",
				},
				"selector": map[string]any{
					"type":        "string",
					"description": "CSS selector for 'click' or 'input_text'",
				},
				"text": map[string]any{
					"type":        "string",
					"description": "Text for 'input_text'",
				},
				"script": map[string]any{
					"type":        "string",
					"description": "JavaScript for 'execute_js'",
				},
				"scroll_amount": map[string]any{
					"type":        "integer",
					"description": "Pixels to scroll for 'scroll' (positive down, negative up)",
				},
				"tab_id": map[string]any{
					"type":        "integer",
					"description": "Tab index for 'switch_tab'",
				},
			},
			"required": []string{"action"},
		},
	}
}

func (b *Browser) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	action := stringArg(args, "action")

	// argument checks run before the browser is started
	switch action {
	case "navigate", "new_tab":
		if stringArg(args, "url") == "" {
			return nil, fmt.Errorf("url is required for '%s'", action)
		}
	case "click":
		if stringArg(args, "selector") == "" {
			return nil, fmt.Errorf("selector is required for 'click'")
		}
	case "input_text":
		if stringArg(args, "selector") == "" || stringArg(args, "text") == "" {
			return nil, fmt.Errorf("selector and text are required for 'input_text'")
		}
	case "execute_js":
		if stringArg(args, "script") == "" {
			return nil, fmt.Errorf("script is required for 'execute_js'")
		}
	case "scroll":
		if intArg(args, "scroll_amount", 0) == 0 {
			return nil, fmt.Errorf("scroll_amount is required for 'scroll'")
		}
	case "switch_tab":
		if _, ok := args["tab_id"]; !ok {
			return nil, fmt.Errorf("tab_id is required for 'switch_tab'")
		}
	case "screenshot", "get_html", "get_text", "close_tab", "refresh":
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if action == "new_tab" {
		return b.newTab(ctx, stringArg(args, "url"))
	}
	if action == "switch_tab" {
		return b.switchTab(intArg(args, "tab_id", -1))
	}

	page, err := b.currentPage(ctx)
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	switch action {
	case "navigate":
		return b.navigate(page, stringArg(args, "url"))
	case "click":
		return b.click(page, stringArg(args, "selector"))
	case "input_text":
		return b.inputText(page, stringArg(args, "selector"), stringArg(args, "text"))
	case "screenshot":
		return b.screenshot(page)
	case "get_html":
		return b.html(page)
	case "get_text":
		return b.text(page)
	case "execute_js":
		return b.evaluate(page, stringArg(args, "script"))
	case "scroll":
		return b.scroll(page, intArg(args, "scroll_amount", 0))
	case "close_tab":
		return b.closeTab()
	default: // refresh
		if err := page.Reload(); err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
		_ = page.WaitLoad()
		return &Result{Title: "Refreshed", Output: "Refreshed current page"}, nil
	}
}

// start launches the browser if needed. Caller holds b.mu.
func (b *Browser) start(ctx context.Context) error {
	if b.session != nil {
		return nil
	}
	// the browser outlives this call, so it must not inherit ctx cancellation
	session, err := launchBrowser(context.WithoutCancel(ctx), b.cfg)
	if err != nil {
		return err
	}
	b.session = session
	return nil
}

// currentPage returns the current tab, opening one if none exist. Caller holds b.mu.
func (b *Browser) currentPage(ctx context.Context) (*rod.Page, error) {
	if err := b.start(ctx); err != nil {
		return nil, err
	}
	if len(b.tabs) == 0 {
		page, err := b.session.newPage(b.cfg)
		if err != nil {
			return nil, fmt.Errorf("open tab: %w", err)
		}
		b.tabs = append(b.tabs, page)
		b.current = 0
	}
	return b.tabs[b.current], nil
}

func (b *Browser) navigate(page *rod.Page, url string) (*Result, error) {
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	// page may still be usable if it never settles
	_ = page.WaitStable(time.Second)

	title := pageTitle(page)
	return &Result{
		Title:  fmt.Sprintf("Navigated: %s", title),
		Output: fmt.Sprintf("Navigated to %s", url),
		Metadata: map[string]any{
			"url":    url,
			"title":  title,
			"tab_id": b.current,
		},
	}, nil
}

func (b *Browser) findElement(page *rod.Page, selector string) (*rod.Element, error) {
	if strings.HasPrefix(selector, "text=") {
		return page.ElementR("*", strings.TrimPrefix(selector, "text="))
	}
	return page.Element(selector)
}

func (b *Browser) click(page *rod.Page, selector string) (*Result, error) {
	el, err := b.findElement(page, selector)
	if err != nil {
		return nil, fmt.Errorf("element not found: %s", selector)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("click %s: %w", selector, err)
	}
	_ = page.WaitStable(500 * time.Millisecond)

	return &Result{
		Title:  "Clicked",
		Output: fmt.Sprintf("Clicked element: %s", selector),
	}, nil
}

func (b *Browser) inputText(page *rod.Page, selector, text string) (*Result, error) {
	el, err := b.findElement(page, selector)
	if err != nil {
		return nil, fmt.Errorf("element not found: %s", selector)
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return nil, fmt.Errorf("input into %s: %w", selector, err)
	}

	preview := text
	if len(preview) > 30 {
		preview = preview[:30] + "..."
	}
	return &Result{
		Title:  "Typed",
		Output: fmt.Sprintf("Input %q into %s", preview, selector),
	}, nil
}

func (b *Browser) screenshot(page *rod.Page) (*Result, error) {
	img, err := page.Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return &Result{
		Title:  "Page Screenshot",
		Output: fmt.Sprintf("Screenshot captured (%d bytes, tab %d)", len(img), b.current),
		Images: []domain.ImagePart{{
			Base64:    base64.StdEncoding.EncodeToString(img),
			MediaType: "image/png",
		}},
	}, nil
}

func (b *Browser) html(page *rod.Page) (*Result, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("get html: %w", err)
	}
	return &Result{Title: "HTML", Output: truncate(html, maxPageText)}, nil
}

func (b *Browser) text(page *rod.Page) (*Result, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("get text: %w", err)
	}
	return &Result{
		Title:  fmt.Sprintf("Content: %s", pageTitle(page)),
		Output: truncate(htmlToText(html), maxPageText),
	}, nil
}

func (b *Browser) evaluate(page *rod.Page, script string) (*Result, error) {
	res, err := page.Eval(script)
	if err != nil {
		return nil, fmt.Errorf("execute js: %w", err)
	}
	return &Result{
		Title:  "JavaScript Result",
		Output: truncate(fmt.Sprintf("%v", res.Value), maxEvalOutput),
	}, nil
}

func (b *Browser) scroll(page *rod.Page, amount int) (*Result, error) {
	if err := page.Mouse.Scroll(0, float64(amount), 1); err != nil {
		return nil, fmt.Errorf("scroll: %w", err)
	}
	direction := "down"
	if amount < 0 {
		direction = "up"
		amount = -amount
	}
	return &Result{
		Title:  "Scrolled",
		Output: fmt.Sprintf("Scrolled %s by %d pixels", direction, amount),
	}, nil
}

func (b *Browser) newTab(ctx context.Context, url string) (*Result, error) {
	if err := b.start(ctx); err != nil {
		return nil, err
	}
	page, err := b.session.newPage(b.cfg)
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	b.tabs = append(b.tabs, page)
	b.current = len(b.tabs) - 1

	if err := page.Context(ctx).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	_ = page.Context(ctx).WaitStable(time.Second)

	return &Result{
		Title:    "New tab",
		Output:   fmt.Sprintf("Opened new tab %d with %s", b.current, url),
		Metadata: map[string]any{"tab_id": b.current},
	}, nil
}

func (b *Browser) switchTab(id int) (*Result, error) {
	if id < 0 || id >= len(b.tabs) {
		return nil, fmt.Errorf("tab %d does not exist (%d open)", id, len(b.tabs))
	}
	b.current = id
	if _, err := b.tabs[id].Activate(); err != nil {
		return nil, fmt.Errorf("switch to tab %d: %w", id, err)
	}
	return &Result{Title: "Switched tab", Output: fmt.Sprintf("Switched to tab %d", id)}, nil
}

func (b *Browser) closeTab() (*Result, error) {
	if len(b.tabs) == 0 {
		return &Result{Output: "No tab open"}, nil
	}
	closed := b.current
	_ = b.tabs[closed].Close()
	b.tabs = append(b.tabs[:closed], b.tabs[closed+1:]...)
	if b.current >= len(b.tabs) && b.current > 0 {
		b.current = len(b.tabs) - 1
	}
	return &Result{Title: "Closed tab", Output: fmt.Sprintf("Closed tab %d", closed)}, nil
}

// Close shuts down the browser if it was started
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, page := range b.tabs {
		_ = page.Close()
	}
	b.tabs = nil
	b.current = 0
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}
}

func pageTitle(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

var _ Executor = (*Browser)(nil)
