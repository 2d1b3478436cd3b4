package tool

var bingEngine = searchEngine{
	tool:  NameBingSearch,
	label: "Bing",
	host:  "bing.com",
	home:  "https://www.bing.com/?setlang=en-US&cc=US",
	box:   "#sb_form_q",
	selectors: []string{
		"li.b_algo h2 a",
		"h2 a",
		".b_title a",
		".b_algo a",
	},
	noResults: "No search results found. Please try using different search terms or check your network connection.",
}

// NewBingSearch returns the bing_search tool
func NewBingSearch(cfg BrowserConfig) *LinkSearch {
	return &LinkSearch{engine: bingEngine, cfg: cfg}
}
