package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	c := NewCatalog([]string{"alpha", "beta"}, NameEndGame)
	for _, name := range []string{"alpha", "beta", "gamma"} {
		name := name
		c.Add(name, func() Executor { return &fakeTool{name: name} })
	}
	c.Add(NameEndGame, func() Executor { return NewEndGame() })
	return c
}

func configErrorNames(errs []error) []string {
	var names []string
	for _, err := range errs {
		if ce, ok := err.(*ConfigurationError); ok {
			names = append(names, ce.Name)
		}
	}
	return names
}

func TestCatalogBuild(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		wantNames  []string
		wantDiags  []string
	}{
		{
			name:       "configured order kept, terminator appended",
			configured: []string{"gamma", "alpha"},
			wantNames:  []string{"gamma", "alpha", NameEndGame},
		},
		{
			name:       "unknown names skipped",
			configured: []string{"alpha", "missing", "beta"},
			wantNames:  []string{"alpha", "beta", NameEndGame},
			wantDiags:  []string{"missing"},
		},
		{
			name:       "duplicates skipped",
			configured: []string{"beta", "beta", "alpha"},
			wantNames:  []string{"beta", "alpha", NameEndGame},
			wantDiags:  []string{"beta"},
		},
		{
			name:       "nothing configured falls back to defaults",
			configured: nil,
			wantNames:  []string{"alpha", "beta", NameEndGame},
			wantDiags:  []string{""},
		},
		{
			name:       "all unknown falls back to defaults",
			configured: []string{"x", "y"},
			wantNames:  []string{"alpha", "beta", NameEndGame},
			wantDiags:  []string{"x", "y", ""},
		},
		{
			name:       "configured terminator keeps its position",
			configured: []string{NameEndGame, "gamma"},
			wantNames:  []string{NameEndGame, "gamma"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, diags := testCatalog().Build(tt.configured)
			require.NotNil(t, reg)
			assert.Equal(t, tt.wantNames, reg.Names())
			assert.Equal(t, tt.wantDiags, configErrorNames(diags))
			assert.Equal(t, NameEndGame, reg.Terminator())
		})
	}
}

func TestCatalogBuildTerminatorExactlyOnce(t *testing.T) {
	reg, _ := testCatalog().Build([]string{NameEndGame, "alpha", NameEndGame})

	count := 0
	for _, name := range reg.Names() {
		if name == NameEndGame {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCatalogBuildMissingTerminator(t *testing.T) {
	c := NewCatalog([]string{"alpha"}, "stop")
	c.Add("alpha", func() Executor { return &fakeTool{name: "alpha"} })

	reg, diags := c.Build([]string{"alpha"})
	assert.Equal(t, []string{"alpha"}, reg.Names())
	assert.Empty(t, reg.Terminator())
	require.NotEmpty(t, diags)
	assert.Contains(t, diags[0].Error(), "termination tool")
	assert.ErrorIs(t, diags[0], ErrNoTerminator)
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog(CatalogOptions{SandboxDir: t.TempDir()})
	assert.Equal(t, []string{NameBingSearch, NameBrowserUse, NameEndGame, NameFileSaver, NameGoogleSearch, NameWebSearch}, c.Names())
	assert.False(t, c.Has(NameStoryCreator), "story_creator needs a provider")

	reg, diags := c.Build(nil)
	assert.Equal(t, []string{NameBingSearch, NameBrowserUse, NameFileSaver, NameEndGame}, reg.Names())
	require.Len(t, diags, 1)

	c = DefaultCatalog(CatalogOptions{Provider: &storyProvider{}})
	assert.True(t, c.Has(NameStoryCreator))
}
