package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joss/taskagent/internal/domain"
)

func TestRenderInstructions(t *testing.T) {
	tools := []domain.Tool{
		{Name: "bing_search", ShortDescription: "Perform Bing search."},
		{Name: "file_saver", ShortDescription: "  Save files locally.  "},
		{Name: "end_game", ShortDescription: "Ends the task."},
	}

	got := RenderInstructions(tools, "end_game")

	assert.True(t, strings.HasPrefix(got,
		"You can interact with the computer using the following tools: bing_search, file_saver.\n\n"))
	assert.Contains(t, got, "bing_search: Perform Bing search.\n\nfile_saver: Save files locally.\n\n")
	assert.NotContains(t, got, "end_game: Ends the task.")
	assert.Contains(t, got, "Check whether the tool end_game should be used to end the conversation.")
	assert.Contains(t, got, "step by step")
}

func TestRenderInstructionsDeterministic(t *testing.T) {
	tools := []domain.Tool{
		{Name: "a", ShortDescription: "first"},
		{Name: "b", ShortDescription: "second"},
		{Name: "stop", ShortDescription: "end"},
	}
	assert.Equal(t, RenderInstructions(tools, "stop"), RenderInstructions(tools, "stop"))

	reordered := []domain.Tool{tools[1], tools[0], tools[2]}
	assert.NotEqual(t, RenderInstructions(tools, "stop"), RenderInstructions(reordered, "stop"),
		"order of advertisement follows registry order")
}

func TestRenderInstructionsFallback(t *testing.T) {
	assert.Equal(t, DefaultNextStepPrompt, RenderInstructions(nil, "end_game"))
	assert.Equal(t, DefaultNextStepPrompt,
		RenderInstructions([]domain.Tool{{Name: "end_game"}}, "end_game"))
}
