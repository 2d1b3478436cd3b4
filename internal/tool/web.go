package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/joss/taskagent/internal/domain"
)

const (
	defaultSearchEndpoint = "https://api.duckduckgo.com/"
	maxSearchResults      = 20
)

// WebSearch queries the DuckDuckGo instant answer API
type WebSearch struct {
	client   *http.Client
	endpoint string
}

func NewWebSearch() *WebSearch {
	return &WebSearch{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: defaultSearchEndpoint,
	}
}

// WithEndpoint points the tool at a different API root
func (w *WebSearch) WithEndpoint(endpoint string) *WebSearch {
	w.endpoint = endpoint
	return w
}

func (w *WebSearch) Info() domain.Tool {
	return domain.Tool{
		Name:             NameWebSearch,
		ShortDescription: "Search the web with DuckDuckGo and return titles, links and snippets.",
		Description: `Search the web using DuckDuckGo instant answers.
Returns a numbered list of results with title, URL and a short snippet.
Use it for quick facts and to find pages worth opening with the browser.`,
		Parameters: domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "(required) The search query.",
				},
				"num_results": map[string]any{
					"type":        "integer",
					"description": "(optional) Maximum number of results, up to 20. Default is 10.",
					"default":     10,
					"minimum":     1,
				},
			},
			"required": []string{"query"},
		},
	}
}

func (w *WebSearch) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, ErrInvalidArgs
	}
	n := intArg(args, "num_results", 10)
	if n > maxSearchResults {
		n = maxSearchResults
	}

	results, err := w.search(ctx, query, n)
	if err != nil {
		return &Result{
			Title:  "WebSearch",
			Output: fmt.Sprintf("Search failed: %s", err),
			Error:  err,
		}, nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&sb, "   %s\n", r.URL)
		if r.Snippet != "" && r.Snippet != r.Title {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		sb.WriteString("No results found")
	}

	return &Result{
		Title:  fmt.Sprintf("Search: %s", query),
		Output: strings.TrimRight(sb.String(), "\n"),
		Metadata: map[string]any{
			"query":   query,
			"results": len(results),
		},
	}, nil
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Abstract       string     `json:"Abstract"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	Results        []ddgTopic `json:"Results"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

func (w *WebSearch) search(ctx context.Context, query string, max int) ([]searchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "taskagent/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var body ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return flattenResults(body, max), nil
}

// flattenResults orders the abstract first, then direct results, then
// related topics (including grouped sub-topics).
func flattenResults(body ddgResponse, max int) []searchResult {
	var results []searchResult
	seen := make(map[string]bool)
	add := func(title, link, snippet string) {
		if link == "" || seen[link] || len(results) >= max {
			return
		}
		seen[link] = true
		results = append(results, searchResult{Title: title, URL: link, Snippet: snippet})
	}

	if body.Abstract != "" {
		add(body.AbstractSource, body.AbstractURL, body.Abstract)
	}
	var walk func([]ddgTopic)
	walk = func(topics []ddgTopic) {
		for _, t := range topics {
			if len(t.Topics) > 0 {
				walk(t.Topics)
				continue
			}
			add(extractTitle(t.Text), t.FirstURL, t.Text)
		}
	}
	walk(body.Results)
	walk(body.RelatedTopics)
	return results
}

func extractTitle(text string) string {
	// DuckDuckGo often returns "Title - Description"
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	if len(text) > 60 {
		return text[:60] + "..."
	}
	return text
}

var (
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockRe   = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>|</tr>|</h[1-6]>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	blankRe   = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// htmlToText strips markup from a page for text extraction
func htmlToText(html string) string {
	html = scriptRe.ReplaceAllString(html, "")
	html = styleRe.ReplaceAllString(html, "")
	html = commentRe.ReplaceAllString(html, "")
	html = blockRe.ReplaceAllString(html, "\n")
	html = tagRe.ReplaceAllString(html, "")
	html = entityReplacer.Replace(html)
	html = spaceRe.ReplaceAllString(html, " ")
	html = blankRe.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}

var _ Executor = (*WebSearch)(nil)
