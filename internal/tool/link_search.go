package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"

	"github.com/joss/taskagent/internal/domain"
)

const anyExternalURL = "a[href^='http']"

// searchEngine describes how to drive one engine's result page
type searchEngine struct {
	tool  string
	label string
	// host filters the engine's own links out of the fallback pass
	host string
	// home is opened first; when box is empty resultsURL is navigated instead
	home       string
	box        string
	resultsURL func(query string, n int) string
	// selectors are tried in order until enough links are found
	selectors []string
	noResults string
}

// LinkSearch runs a query in a headless browser and returns result links
type LinkSearch struct {
	engine searchEngine
	cfg    BrowserConfig
}

func (s *LinkSearch) Info() domain.Tool {
	label := s.engine.label
	return domain.Tool{
		Name:             s.engine.tool,
		ShortDescription: fmt.Sprintf("Perform %s search and return a list of relevant links.", label),
		Description: fmt.Sprintf(`Perform %s search and return a list of relevant links.
Use this tool to find information on the web, get the latest data, or research specific topics.
The result is a list of URLs matching the query.`, label),
		Parameters: domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("(required) Search query to submit to %s.", label),
				},
				"num_results": map[string]any{
					"type":        "integer",
					"description": "(optional) Number of search results to return. Default is 10.",
					"default":     10,
					"minimum":     1,
				},
			},
			"required": []string{"query"},
		},
	}
}

func (s *LinkSearch) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, ErrInvalidArgs
	}
	n := intArg(args, "num_results", 10)

	links, err := s.search(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.engine.tool, err)
	}
	if len(links) == 0 {
		return &Result{Title: s.engine.label + " search", Output: s.engine.noResults}, nil
	}
	return &Result{
		Title:  fmt.Sprintf("%s: %s", s.engine.label, query),
		Output: strings.Join(links, "\n"),
		Metadata: map[string]any{
			"query":   query,
			"results": len(links),
		},
	}, nil
}

func (s *LinkSearch) search(ctx context.Context, query string, n int) ([]string, error) {
	session, err := launchBrowser(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	page, err := session.newPage(s.cfg)
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	if err := s.submit(page, query, n); err != nil {
		return nil, err
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait for results: %w", err)
	}
	// results render after load; a timeout here still leaves a usable page
	_ = page.WaitStable(time.Second)

	hrefs := func(selector string) []string {
		els, err := page.Elements(selector)
		if err != nil {
			return nil
		}
		out := make([]string, 0, len(els))
		for _, el := range els {
			if href, err := el.Attribute("href"); err == nil && href != nil {
				out = append(out, *href)
			}
		}
		return out
	}
	return s.engine.collectLinks(hrefs, n), nil
}

func (s *LinkSearch) submit(page *rod.Page, query string, n int) error {
	e := s.engine
	if e.box == "" {
		if err := page.Navigate(e.resultsURL(query, n)); err != nil {
			return fmt.Errorf("open %s: %w", e.label, err)
		}
		return nil
	}

	if err := page.Navigate(e.home); err != nil {
		return fmt.Errorf("open %s: %w", e.label, err)
	}
	box, err := page.Element(e.box)
	if err != nil {
		return fmt.Errorf("find search box: %w", err)
	}
	if err := box.Input(query); err != nil {
		return fmt.Errorf("type query: %w", err)
	}
	if err := box.Type(input.Enter); err != nil {
		return fmt.Errorf("submit query: %w", err)
	}
	return nil
}

// collectLinks gathers up to n distinct http links, trying each selector in
// order. When none match it falls back to any external link off the engine's host.
func (e searchEngine) collectLinks(hrefs func(selector string) []string, n int) []string {
	var links []string
	seen := make(map[string]bool)
	add := func(href string) bool {
		if !strings.HasPrefix(href, "http") || seen[href] {
			return false
		}
		seen[href] = true
		links = append(links, href)
		return len(links) >= n
	}

	for _, selector := range e.selectors {
		for _, href := range hrefs(selector) {
			if add(href) {
				return links
			}
		}
	}
	if len(links) > 0 {
		return links
	}

	for _, href := range hrefs(anyExternalURL) {
		if strings.Contains(href, e.host) {
			continue
		}
		if add(href) {
			break
		}
	}
	return links
}

var _ Executor = (*LinkSearch)(nil)
