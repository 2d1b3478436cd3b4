package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/internal/hook"
	"github.com/joss/taskagent/internal/tool"
	"github.com/joss/taskagent/pkg/llm"
)

// DefaultMaxSteps bounds the number of model requests per run
const DefaultMaxSteps = 20

// skippedOutput is recorded for calls that follow the termination call in one turn
const skippedOutput = "Skipped: the task was completed by an earlier call in this turn."

// Config holds the model settings used for every run
type Config struct {
	Model        string
	MaxSteps     int
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Recorder receives run milestones for persistence. Recorder errors are
// logged and never affect the run.
type Recorder interface {
	RunStarted(ctx context.Context, run RunRecord) error
	MessageAppended(ctx context.Context, msg domain.Message) error
	RunFinished(ctx context.Context, run RunRecord) error
}

// RunRecord summarizes a run for a Recorder
type RunRecord struct {
	ID        string
	Prompt    string
	Model     string
	State     State
	Message   string
	Steps     int
	Error     string
	StartedAt time.Time
	EndedAt   time.Time
}

// Agent drives runs against one provider and one tool registry.
// Its configuration is fixed at construction; one Agent can serve many
// runs, sequentially or concurrently.
type Agent struct {
	provider     llm.Provider
	tools        *tool.Registry
	config       Config
	instructions string
	hooks        *hook.Registry
	logger       *AgentLogger
	recorder     Recorder
	invoker      *Invoker
}

// Option configures an Agent
type Option func(*Agent)

func WithModel(model string) Option {
	return func(a *Agent) { a.config.Model = model }
}

// WithMaxSteps sets the step budget; values below 1 keep the default
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.config.MaxSteps = n
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(prompt) != "" {
			a.config.SystemPrompt = prompt
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(a *Agent) { a.config.MaxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(a *Agent) { a.config.Temperature = t }
}

func WithHooks(hooks *hook.Registry) Option {
	return func(a *Agent) { a.hooks = hooks }
}

func WithLogger(logger *AgentLogger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// New creates an agent. The next-step instructions are rendered here once
// from the registry.
func New(provider llm.Provider, tools *tool.Registry, opts ...Option) *Agent {
	a := &Agent{
		provider: provider,
		tools:    tools,
		config: Config{
			MaxSteps:     DefaultMaxSteps,
			SystemPrompt: DefaultSystemPrompt,
		},
		logger: NewAgentLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.instructions = RenderInstructions(tools.List(), tools.Terminator())
	a.invoker = NewInvoker(tools, a.hooks, a.logger)
	return a
}

// Instructions returns the next-step guidance sent with every request
func (a *Agent) Instructions() string {
	return a.instructions
}

// Config returns the agent's configuration
func (a *Agent) Config() Config {
	return a.config
}

// Tools returns the agent's registry
func (a *Agent) Tools() *tool.Registry {
	return a.tools
}

// NewRun creates an idle run with its own conversation
func (a *Agent) NewRun() *Run {
	return &Run{
		ID:    uuid.NewString(),
		agent: a,
		conv:  NewConversation(),
		state: StateIdle,
	}
}

// Run starts a fresh run with prompt and waits for it to finish
func (a *Agent) Run(ctx context.Context, prompt string) (*Result, error) {
	return a.NewRun().Start(ctx, prompt)
}

// Result is the outcome of a finished run
type Result struct {
	RunID string
	State State
	// Message is the termination message when State is StateTerminated
	Message    string
	Steps      int
	Transcript []domain.Message
	Err        error
}

// Run is a single task execution. It is started at most once.
type Run struct {
	ID string

	agent *Agent
	conv  *Conversation

	mu    sync.Mutex
	state State
	steps int
}

// State returns the run's current state
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Messages returns a copy of the conversation so far
func (r *Run) Messages() []domain.Message {
	return r.conv.Messages()
}

// Start runs the loop until the termination tool is invoked, the step budget
// is used up, the model fails or ctx is cancelled. Only the Failed state
// returns a non-nil error; the Result is returned in every case where the
// run left Idle.
func (r *Run) Start(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return nil, ErrRunStarted
	}
	r.state = StateRunning
	r.mu.Unlock()

	a := r.agent
	record := RunRecord{
		ID:        r.ID,
		Prompt:    prompt,
		Model:     a.config.Model,
		State:     StateRunning,
		StartedAt: time.Now(),
	}
	if a.recorder != nil {
		if err := a.recorder.RunStarted(ctx, record); err != nil {
			a.logger.Warn(ctx, "recorder", err.Error(), map[string]any{"run_id": r.ID})
		}
		r.conv.OnAppend(func(ctx context.Context, msg domain.Message) {
			// a cancelled step still owes the transcript its tool results
			ctx = context.WithoutCancel(ctx)
			if err := a.recorder.MessageAppended(ctx, msg); err != nil {
				a.logger.Warn(ctx, "recorder", err.Error(), map[string]any{"run_id": r.ID})
			}
		})
	}
	a.logger.RunStart(ctx, r.ID, a.config.Model, prompt)
	a.hooks.Run(ctx, &hook.Context{Type: hook.HookRunStart, RunID: r.ID})

	r.appendMessage(ctx, domain.RoleUser, domain.TextPart{Text: prompt})

	outcome := r.loop(ctx)
	return r.finish(ctx, record, outcome)
}

func (r *Run) loop(ctx context.Context) StepOutcome {
	max := r.agent.config.MaxSteps
	for r.steps < max {
		if err := ctx.Err(); err != nil {
			return failed(fmt.Errorf("run cancelled before step %d: %w", r.steps+1, err))
		}
		outcome := r.step(ctx)
		if outcome.Kind != OutcomeContinued {
			return outcome
		}
	}
	return StepOutcome{Kind: OutcomeExhausted, Err: ErrStepBudgetExceeded}
}

// step performs one model request and the tool calls it asks for
func (r *Run) step(ctx context.Context) StepOutcome {
	a := r.agent
	r.steps++

	req := &llm.ChatRequest{
		Model:          a.config.Model,
		Messages:       r.conv.Messages(),
		Tools:          a.tools.List(),
		SystemPrompt:   a.config.SystemPrompt,
		NextStepPrompt: a.instructions,
		MaxTokens:      a.config.MaxTokens,
		Temperature:    a.config.Temperature,
	}

	start := time.Now()
	resp, err := llm.Collect(ctx, a.provider, req)
	var in, out int
	if resp != nil && resp.Usage != nil {
		in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
	}
	a.logger.LLMCall(ctx, r.ID, a.config.Model, r.steps, time.Since(start), in, out, err)
	if err != nil {
		return failed(&ModelUnavailableError{Provider: a.provider.ID(), Model: a.config.Model, Err: err})
	}

	switch d := resp.Decision.(type) {
	case domain.TextDecision:
		r.appendMessage(ctx, domain.RoleAssistant, domain.DecisionParts(d)...)
		return continued()

	case domain.ToolCallsDecision:
		for i := range d.Calls {
			if d.Calls[i].ToolID == "" {
				d.Calls[i].ToolID = "call_" + ulid.Make().String()
			}
		}
		r.appendMessage(ctx, domain.RoleAssistant, domain.DecisionParts(d)...)

		for i, call := range d.Calls {
			inv := a.invoker.Invoke(ctx, r.ID, r.steps, call)
			r.appendToolResult(ctx, inv)
			if inv.Terminated {
				r.skip(ctx, d.Calls[i+1:])
				return terminated(inv.Message)
			}
		}
		return continued()

	default:
		return failed(&ModelUnavailableError{
			Provider: a.provider.ID(),
			Model:    a.config.Model,
			Err:      fmt.Errorf("unsupported decision %T", resp.Decision),
		})
	}
}

// skip answers calls that were not executed so every call keeps a result
func (r *Run) skip(ctx context.Context, calls []domain.ToolCallPart) {
	for _, call := range calls {
		r.appendToolResult(ctx, Invocation{Part: domain.ToolResultPart{
			ToolID: call.ToolID,
			Name:   call.Name,
			Output: skippedOutput,
		}})
	}
}

func (r *Run) appendToolResult(ctx context.Context, inv Invocation) {
	parts := []domain.Part{inv.Part}
	for _, img := range inv.Images {
		parts = append(parts, img)
	}
	r.appendMessage(ctx, domain.RoleTool, parts...)
}

func (r *Run) appendMessage(ctx context.Context, role domain.Role, parts ...domain.Part) {
	r.conv.append(ctx, domain.Message{
		ID:        ulid.Make().String(),
		RunID:     r.ID,
		Role:      role,
		Parts:     parts,
		Timestamp: time.Now(),
	})
}

func (r *Run) finish(ctx context.Context, record RunRecord, outcome StepOutcome) (*Result, error) {
	a := r.agent

	var state State
	switch outcome.Kind {
	case OutcomeTerminated:
		state = StateTerminated
	case OutcomeExhausted:
		state = StateExhaustedSteps
	default:
		state = StateFailed
	}

	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	result := &Result{
		RunID:      r.ID,
		State:      state,
		Message:    outcome.Message,
		Steps:      r.steps,
		Transcript: r.conv.Messages(),
		Err:        outcome.Err,
	}

	record.State = state
	record.Message = outcome.Message
	record.Steps = r.steps
	record.EndedAt = time.Now()
	if outcome.Err != nil {
		record.Error = outcome.Err.Error()
	}

	// the run context may already be cancelled; bookkeeping still has to land
	bookkeeping := context.WithoutCancel(ctx)
	if a.recorder != nil {
		if err := a.recorder.RunFinished(bookkeeping, record); err != nil {
			a.logger.Warn(bookkeeping, "recorder", err.Error(), map[string]any{"run_id": r.ID})
		}
	}
	var fatal error
	if state == StateFailed {
		fatal = outcome.Err
	}
	a.logger.RunEnd(bookkeeping, r.ID, state, r.steps, record.EndedAt.Sub(record.StartedAt), fatal)
	a.hooks.Run(bookkeeping, &hook.Context{
		Type:  hook.HookRunEnd,
		RunID: r.ID,
		State: state.String(),
		Error: fatal,
	})

	if fatal != nil {
		return result, fatal
	}
	return result, nil
}

// IsCancelled reports whether err stems from context cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
