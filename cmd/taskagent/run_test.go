package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/config"
	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/internal/render"
)

func TestReadPrompt(t *testing.T) {
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader("  summarize go news \nsecond\n"))

	got, err := readPrompt(in, &out, true)
	require.NoError(t, err)
	assert.Equal(t, "summarize go news", got)
	assert.Equal(t, "Enter your prompt: ", out.String())

	out.Reset()
	got, err = readPrompt(in, &out, false)
	require.NoError(t, err)
	assert.Equal(t, "second", got)
	assert.Empty(t, out.String())

	got, err = readPrompt(in, &out, false)
	require.NoError(t, err)
	assert.Empty(t, got, "EOF yields an empty prompt")
}

func TestApplyRunFlags(t *testing.T) {
	cfg := &config.Config{
		LLM:   config.LLMConfig{Model: "gpt-4o"},
		Agent: config.AgentConfig{MaxSteps: 20},
		Tools: config.ToolsConfig{ToolList: []string{"bing_search"}},
		Store: config.StoreConfig{Enabled: true},
	}

	applyRunFlags(cfg, runFlags{})
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 20, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Store.Enabled)

	applyRunFlags(cfg, runFlags{maxSteps: 3, tools: []string{"web_search"}, model: "llama3", noStore: true})
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	assert.Equal(t, []string{"web_search"}, cfg.Tools.ToolList)
	assert.False(t, cfg.Store.Enabled)
}

type countingRecorder struct {
	started, appended, finished int
}

func (c *countingRecorder) RunStarted(context.Context, agent.RunRecord) error { c.started++; return nil }
func (c *countingRecorder) MessageAppended(context.Context, domain.Message) error {
	c.appended++
	return nil
}
func (c *countingRecorder) RunFinished(context.Context, agent.RunRecord) error { c.finished++; return nil }

func TestLiveRecorder(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	next := &countingRecorder{}
	live := &liveRecorder{next: next, out: render.NewWriter(&buf), render: render.New(false)}

	ctx := context.Background()
	require.NoError(t, live.RunStarted(ctx, agent.RunRecord{ID: "r"}))
	require.NoError(t, live.MessageAppended(ctx, domain.Message{Role: domain.RoleUser,
		Parts: []domain.Part{domain.TextPart{Text: "the prompt"}}}))
	require.NoError(t, live.MessageAppended(ctx, domain.Message{Role: domain.RoleAssistant,
		Parts: []domain.Part{domain.TextPart{Text: "on it"}}}))
	require.NoError(t, live.RunFinished(ctx, agent.RunRecord{ID: "r"}))

	assert.Equal(t, "[assistant] on it\n", buf.String())
	assert.Equal(t, 1, next.started)
	assert.Equal(t, 2, next.appended)
	assert.Equal(t, 1, next.finished)

	bare := &liveRecorder{out: render.NewWriter(&buf), render: render.New(false)}
	assert.NoError(t, bare.RunStarted(ctx, agent.RunRecord{}))
	assert.NoError(t, bare.RunFinished(ctx, agent.RunRecord{}))
}
