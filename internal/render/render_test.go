package render

import (
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/domain"
)

func init() {
	color.NoColor = true
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.max), tt.in)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
}

func TestPlainTranscript(t *testing.T) {
	r := New(false)
	msgs := []domain.Message{
		{Role: domain.RoleUser, Parts: []domain.Part{domain.TextPart{Text: "find\ngo news"}}},
		{Role: domain.RoleAssistant, Parts: []domain.Part{
			domain.TextPart{Text: "Searching."},
			domain.ToolCallPart{ToolID: "c1", Name: "web_search", Args: map[string]any{"query": "go", "num_results": 3}},
		}},
		{Role: domain.RoleTool, Parts: []domain.Part{
			domain.ToolResultPart{ToolID: "c1", Name: "web_search", Output: "Error: timeout", Error: "timeout", Duration: 2 * time.Second},
		}},
	}

	want := "[user] find go news\n" +
		"[assistant] Searching.\n" +
		"[call] web_search(num_results=3, query=\"go\")\n" +
		"[result] web_search error (2.0s): Error: timeout\n"
	assert.Equal(t, want, r.Transcript(msgs))
	assert.Equal(t, "No messages recorded", r.Transcript(nil))
}

func TestPrettyResultTruncatesOutput(t *testing.T) {
	r := New(true)
	r.MaxOutput = 10
	out := r.Message(domain.Message{Role: domain.RoleTool, Parts: []domain.Part{
		domain.ToolResultPart{ToolID: "c1", Name: "browser_use", Output: "0123456789abcdef"},
	}})
	assert.Contains(t, out, "✓ browser_use")
	assert.Contains(t, out, "0123456...")
	assert.NotContains(t, out, "abcdef")
}

func TestResult(t *testing.T) {
	res := &agent.Result{RunID: "r1", State: agent.StateTerminated, Steps: 3, Message: "saved"}
	assert.Equal(t, "run=r1 state=terminated steps=3 message=\"saved\"\n", New(false).Result(res))

	failed := &agent.Result{RunID: "r2", State: agent.StateFailed, Steps: 1, Err: errors.New("model down")}
	pretty := New(true).Result(failed)
	assert.Contains(t, pretty, "✗ failed after 1 step(s)")
	assert.Contains(t, pretty, "model down")
}

func TestRuns(t *testing.T) {
	r := New(false)
	assert.Equal(t, "No runs found", r.Runs(nil))

	started := time.Date(2026, 3, 1, 10, 30, 0, 0, time.Local)
	out := r.Runs([]agent.RunRecord{
		{ID: "abc", Prompt: "write\na story", State: agent.StateExhaustedSteps, Steps: 20, StartedAt: started},
	})
	assert.Equal(t, "abc\t2026-03-01 10:30\texhausted_steps\t20\twrite a story\n", out)

	pretty := New(true).Runs([]agent.RunRecord{
		{ID: "0123456789", Prompt: "p", State: agent.StateTerminated, StartedAt: started},
	})
	assert.Contains(t, pretty, "✓")
	assert.Contains(t, pretty, "01234567 p")
}

func TestRunDetail(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	out := New(true).RunDetail(agent.RunRecord{
		ID: "r1", Model: "gpt-4o", State: agent.StateFailed, Steps: 2,
		StartedAt: start, EndedAt: start.Add(90 * time.Second), Error: "boom", Prompt: "do it",
	})
	assert.Contains(t, out, "State:   failed")
	assert.Contains(t, out, "Took:    1m30s")
	assert.Contains(t, out, "Error:   boom")
	assert.NotContains(t, out, "Message:")
}

func TestTools(t *testing.T) {
	tools := []domain.Tool{
		{Name: "web_search", ShortDescription: "Search the web"},
		{Name: "end_game", Description: "Finish the task.\nMore details."},
	}
	out := New(false).Tools(tools, "end_game")
	assert.Equal(t, "web_search\tSearch the web\nend_game (ends the run)\tFinish the task.\n", out)
	assert.Equal(t, "No tools enabled", New(false).Tools(nil, ""))
}

func TestStateIcon(t *testing.T) {
	assert.Equal(t, "✓", StateIcon(agent.StateTerminated.String()))
	assert.Equal(t, "✗", StateIcon(agent.StateFailed.String()))
	assert.Equal(t, "⏱", StateIcon(agent.StateExhaustedSteps.String()))
	assert.Equal(t, "•", StateIcon("idle"))
}
