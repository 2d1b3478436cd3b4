package tool

import (
	"net/url"
	"strconv"
)

var googleEngine = searchEngine{
	tool:  NameGoogleSearch,
	label: "Google",
	host:  "google.",
	resultsURL: func(query string, n int) string {
		q := url.Values{}
		q.Set("q", query)
		q.Set("num", strconv.Itoa(n))
		q.Set("hl", "en")
		return "https://www.google.com/search?" + q.Encode()
	},
	selectors: []string{
		"div.yuRUbf a",
		"#search a:has(h3)",
		"div.g a",
	},
	noResults: "No search results found. Google may have asked for a captcha; try bing_search instead.",
}

// NewGoogleSearch returns the google_search tool. Traffic follows the
// browser proxy settings like the other browser-backed tools.
func NewGoogleSearch(cfg BrowserConfig) *LinkSearch {
	return &LinkSearch{engine: googleEngine, cfg: cfg}
}
