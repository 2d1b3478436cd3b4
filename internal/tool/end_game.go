package tool

import (
	"context"

	"github.com/joss/taskagent/internal/domain"
)

const endGameOutput = "Task completed, no further communication with AI is needed."

// EndGame marks a task as finished. It performs no work; invoking it
// ends the run.
type EndGame struct{}

func NewEndGame() *EndGame { return &EndGame{} }

func (e *EndGame) Info() domain.Tool {
	return domain.Tool{
		Name:             NameEndGame,
		ShortDescription: "Indicates that the task is completed and no further communication with AI is needed.",
		Description: `Indicates that the task is completed and no further communication with AI is needed.
Use this tool once the current task is done and the user needs no further interaction.
It performs no operation and only marks the end of the conversation.`,
		Parameters: domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "(Optional) Additional message when ending the task.",
				},
			},
		},
	}
}

func (e *EndGame) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	msg := stringArg(args, "message")
	out := endGameOutput
	if msg != "" {
		out += " " + msg
	}
	return &Result{
		Title:    "Task completed",
		Output:   out,
		Metadata: map[string]any{"message": msg},
	}, nil
}

func (e *EndGame) Terminal() bool { return true }

var _ Terminator = (*EndGame)(nil)
