package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/pkg/llm"
)

var storyWordCounts = map[string]string{
	"short":  "500-1000",
	"medium": "1500-2500",
	"long":   "3000-5000",
}

// StoryCreator asks a language model for a story
type StoryCreator struct {
	provider  llm.Provider
	model     string
	maxTokens int
}

func NewStoryCreator(provider llm.Provider, model string, maxTokens int) *StoryCreator {
	return &StoryCreator{provider: provider, model: model, maxTokens: maxTokens}
}

func (s *StoryCreator) Info() domain.Tool {
	return domain.Tool{
		Name:             NameStoryCreator,
		ShortDescription: "Creates a story based on user prompt.",
		Description: "Creates a creative story based on the user's prompt. " +
			"You can specify genre, length, and other parameters to customize the story.",
		Parameters: domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "The main prompt or idea for the story.",
				},
				"genre": map[string]any{
					"type":        "string",
					"description": "The genre of the story (e.g., fantasy, sci-fi, romance, horror, etc.).",
				},
				"length": map[string]any{
					"type":        "string",
					"description": "The desired length of the story (short, medium, long).",
					"enum":        []string{"short", "medium", "long"},
					"default":     "medium",
				},
				"style": map[string]any{
					"type":        "string",
					"description": "The writing style for the story (e.g., descriptive, concise, poetic, etc.).",
				},
				"characters": map[string]any{
					"type":        "string",
					"description": "Description of main characters to include in the story.",
				},
			},
			"required": []string{"prompt"},
		},
	}
}

func (s *StoryCreator) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	if s.provider == nil {
		return nil, errors.New("no language model available for story creation")
	}
	prompt := stringArg(args, "prompt")
	if prompt == "" {
		return nil, ErrInvalidArgs
	}

	req := &llm.ChatRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []domain.Message{{
			ID:        ulid.Make().String(),
			Role:      domain.RoleUser,
			Parts:     []domain.Part{domain.TextPart{Text: prompt}},
			Timestamp: time.Now(),
		}},
		SystemPrompt: storyInstructions(
			stringArg(args, "genre"),
			stringArg(args, "length"),
			stringArg(args, "style"),
			stringArg(args, "characters"),
		),
		DisableTools: true,
	}

	decision, err := llm.Decide(ctx, s.provider, req)
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}

	var story string
	switch d := decision.(type) {
	case domain.TextDecision:
		story = d.Text
	case domain.ToolCallsDecision:
		story = d.Text
	}
	if strings.TrimSpace(story) == "" {
		return nil, errors.New("create story: model returned no text")
	}

	return &Result{
		Title:  "Story",
		Output: story,
		Metadata: map[string]any{
			"characters": len(story),
		},
	}, nil
}

func storyInstructions(genre, length, style, characters string) string {
	lines := []string{
		"You are a creative storyteller. Create an engaging and original story based on the user's prompt.",
	}
	if genre != "" {
		lines = append(lines, fmt.Sprintf("The story should be in the %s genre.", genre))
	}
	words, ok := storyWordCounts[length]
	if !ok {
		words = storyWordCounts["medium"]
	}
	lines = append(lines, fmt.Sprintf("The story should be approximately %s words long.", words))
	if style != "" {
		lines = append(lines, fmt.Sprintf("Write in a %s style.", style))
	}
	if characters != "" {
		lines = append(lines, fmt.Sprintf("Include these characters: %s", characters))
	}
	lines = append(lines,
		"Format the story with proper paragraphs, dialogue, and structure.",
		"Be creative, original, and engaging.",
	)
	return strings.Join(lines, "\n")
}

var _ Executor = (*StoryCreator)(nil)
