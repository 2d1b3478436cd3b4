// Package agent runs the tool-calling loop: it asks the model for a decision,
// invokes the requested tools and feeds their results back until the task ends.
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// AgentLogger writes one structured event per run milestone, model call and
// tool call. The zero configuration discards everything.
type AgentLogger struct {
	logger zerolog.Logger
}

// LoggerOption configures the AgentLogger
type LoggerOption func(*loggerConfig)

type loggerConfig struct {
	level  zerolog.Level
	output io.Writer
}

// NewAgentLogger creates a new structured logger
func NewAgentLogger(opts ...LoggerOption) *AgentLogger {
	cfg := &loggerConfig{level: zerolog.InfoLevel}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.output == nil {
		return &AgentLogger{logger: zerolog.Nop()}
	}
	return &AgentLogger{
		logger: zerolog.New(cfg.output).Level(cfg.level).With().Timestamp().Logger(),
	}
}

// WithLogLevel sets the logging level
func WithLogLevel(level zerolog.Level) LoggerOption {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithLogOutput sets the output destination
func WithLogOutput(w io.Writer) LoggerOption {
	return func(c *loggerConfig) {
		c.output = w
	}
}

// WithLogFile appends to a file, creating it if needed
func WithLogFile(path string) LoggerOption {
	return func(c *loggerConfig) {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "agent logger: failed to open log file: %v\n", err)
			return
		}
		c.output = f
	}
}

// Zerolog exposes the underlying logger for callers that log outside a run
func (l *AgentLogger) Zerolog() zerolog.Logger {
	return l.logger
}

// RunStart logs the beginning of a run
func (l *AgentLogger) RunStart(ctx context.Context, runID, model, prompt string) {
	l.logger.Info().
		Str("type", "run_start").
		Str("run_id", runID).
		Str("model", model).
		Str("prompt", truncateForLog(prompt, 200)).
		Send()
}

// RunEnd logs the final state of a run
func (l *AgentLogger) RunEnd(ctx context.Context, runID string, state State, steps int, elapsed time.Duration, err error) {
	event := l.logger.Info()
	if err != nil {
		event = l.logger.Error().Err(err)
	}
	event.
		Str("type", "run_end").
		Str("run_id", runID).
		Str("state", state.String()).
		Int("steps", steps).
		Int64("duration_ms", elapsed.Milliseconds()).
		Send()
}

// LLMCall logs a model request with usage stats
func (l *AgentLogger) LLMCall(ctx context.Context, runID, model string, step int, elapsed time.Duration, inputTokens, outputTokens int, err error) {
	event := l.logger.Info()
	if err != nil {
		event = l.logger.Error().Err(err)
	}
	event.
		Str("type", "llm_call").
		Str("run_id", runID).
		Str("model", model).
		Int("step", step).
		Int64("duration_ms", elapsed.Milliseconds()).
		Int("input_tokens", inputTokens).
		Int("output_tokens", outputTokens).
		Send()
}

// ToolCall logs a tool execution
func (l *AgentLogger) ToolCall(ctx context.Context, runID, toolName string, args map[string]any, elapsed time.Duration, result string, failure string) {
	event := l.logger.Info()
	if failure != "" {
		event = l.logger.Warn().Str("error", failure)
	}
	event.
		Str("type", "tool_call").
		Str("run_id", runID).
		Str("tool_name", toolName).
		Interface("tool_args", sanitizeArgs(args)).
		Int64("duration_ms", elapsed.Milliseconds()).
		Str("tool_result", truncateForLog(result, 500)).
		Send()
}

// Error logs an error event
func (l *AgentLogger) Error(ctx context.Context, eventType string, err error, extra map[string]any) {
	l.logger.Error().Err(err).Str("type", eventType).Fields(extra).Send()
}

// Warn logs a warning event
func (l *AgentLogger) Warn(ctx context.Context, eventType string, msg string, extra map[string]any) {
	l.logger.Warn().Str("type", eventType).Fields(extra).Msg(msg)
}

// Debug logs a debug event
func (l *AgentLogger) Debug(ctx context.Context, eventType string, extra map[string]any) {
	l.logger.Debug().Str("type", eventType).Fields(extra).Send()
}

func truncateForLog(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// sanitizeArgs removes sensitive data from tool arguments
func sanitizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	safe := make(map[string]any, len(args))
	for k, v := range args {
		switch k {
		case "content", "text", "body", "script", "prompt":
			if s, ok := v.(string); ok {
				safe[k] = truncateForLog(s, 200)
			} else {
				safe[k] = v
			}
		case "password", "secret", "token", "key", "api_key":
			safe[k] = "[REDACTED]"
		default:
			safe[k] = v
		}
	}
	return safe
}
