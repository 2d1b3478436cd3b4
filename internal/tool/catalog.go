package tool

import (
	"fmt"
	"sort"

	"github.com/joss/taskagent/pkg/llm"
)

// Tool names known to the default catalog
const (
	NameBingSearch   = "bing_search"
	NameGoogleSearch = "google_search"
	NameWebSearch    = "web_search"
	NameBrowserUse   = "browser_use"
	NameFileSaver    = "file_saver"
	NameStoryCreator = "story_creator"
	NameEndGame      = "end_game"
)

// DefaultToolNames is the tool set used when the configured list yields nothing
var DefaultToolNames = []string{NameBingSearch, NameBrowserUse, NameFileSaver}

// Catalog maps tool names to constructors and carries the build policy:
// which tools to fall back to and which tool terminates a run.
type Catalog struct {
	constructors map[string]Constructor
	Defaults     []string
	Terminator   string
}

// NewCatalog creates an empty catalog with the given fallback set and termination tool
func NewCatalog(defaults []string, terminator string) *Catalog {
	return &Catalog{
		constructors: make(map[string]Constructor),
		Defaults:     defaults,
		Terminator:   terminator,
	}
}

// Add registers a constructor under name, replacing any previous one
func (c *Catalog) Add(name string, ctor Constructor) {
	c.constructors[name] = ctor
}

// Has checks if the catalog knows name
func (c *Catalog) Has(name string) bool {
	_, ok := c.constructors[name]
	return ok
}

// Names returns the known tool names, sorted
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.constructors))
	for name := range c.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the configured tools in order.
//
// Unknown or repeated names are skipped. If nothing could be instantiated
// the Defaults are used instead. The termination tool is always present
// exactly once, appended last unless it was configured explicitly.
// The returned errors are diagnostics (*ConfigurationError); the registry
// is always usable.
func (c *Catalog) Build(names []string) (*Registry, []error) {
	var diags []error

	if c.Terminator == "" || !c.Has(c.Terminator) {
		diags = append(diags, &ConfigurationError{Name: c.Terminator, Reason: "termination tool missing from catalog", Err: ErrNoTerminator})
	}

	reg, skipped := c.instantiate(names, false)
	diags = append(diags, skipped...)

	if reg.Len() == 0 {
		if len(names) == 0 {
			diags = append(diags, &ConfigurationError{Reason: "no tools configured, using defaults"})
		} else {
			diags = append(diags, &ConfigurationError{Reason: "no configured tool is available, using defaults"})
		}
		var defaultDiags []error
		reg, defaultDiags = c.instantiate(c.Defaults, true)
		diags = append(diags, defaultDiags...)
	}

	if c.Has(c.Terminator) && !reg.Has(c.Terminator) {
		if err := reg.Register(c.constructors[c.Terminator]()); err != nil {
			diags = append(diags, &ConfigurationError{Name: c.Terminator, Reason: err.Error()})
		}
	}
	return reg, diags
}

// instantiate builds a registry from names. A termination tool listed in
// names keeps its configured position.
func (c *Catalog) instantiate(names []string, fallback bool) (*Registry, []error) {
	reg := NewRegistry()
	var diags []error
	for _, name := range names {
		ctor, ok := c.constructors[name]
		if !ok {
			diags = append(diags, &ConfigurationError{Name: name, Reason: "unknown tool, skipped"})
			continue
		}
		if reg.Has(name) {
			diags = append(diags, &ConfigurationError{Name: name, Reason: "listed more than once, skipped"})
			continue
		}
		if err := reg.Register(ctor()); err != nil {
			reason := err.Error()
			if fallback {
				reason = fmt.Sprintf("default tool unusable: %v", err)
			}
			diags = append(diags, &ConfigurationError{Name: name, Reason: reason})
		}
	}
	return reg, diags
}

// CatalogOptions configures the built-in tools
type CatalogOptions struct {
	SandboxDir     string
	Deny           []string
	Browser        BrowserConfig
	SearchEndpoint string
	// Provider backs story_creator; without it the tool is not offered
	Provider  llm.Provider
	Model     string
	MaxTokens int
}

// DefaultCatalog returns a catalog of the built-in tools with end_game as
// the termination tool.
func DefaultCatalog(opts CatalogOptions) *Catalog {
	c := NewCatalog(DefaultToolNames, NameEndGame)
	c.Add(NameBingSearch, func() Executor { return NewBingSearch(opts.Browser) })
	c.Add(NameGoogleSearch, func() Executor { return NewGoogleSearch(opts.Browser) })
	c.Add(NameWebSearch, func() Executor {
		ws := NewWebSearch()
		if opts.SearchEndpoint != "" {
			ws.WithEndpoint(opts.SearchEndpoint)
		}
		return ws
	})
	c.Add(NameBrowserUse, func() Executor { return NewBrowser(opts.Browser) })
	c.Add(NameFileSaver, func() Executor { return NewFileSaver(opts.SandboxDir, opts.Deny) })
	if opts.Provider != nil {
		c.Add(NameStoryCreator, func() Executor {
			return NewStoryCreator(opts.Provider, opts.Model, opts.MaxTokens)
		})
	}
	c.Add(NameEndGame, func() Executor { return NewEndGame() })
	return c
}
