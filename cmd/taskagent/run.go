package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/config"
	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/internal/hook"
	"github.com/joss/taskagent/internal/provider"
	"github.com/joss/taskagent/internal/render"
	"github.com/joss/taskagent/internal/store"
	"github.com/joss/taskagent/internal/tool"
	"github.com/joss/taskagent/pkg/llm"
)

type runFlags struct {
	interactive bool
	maxSteps    int
	tools       []string
	model       string
	denyTools   []string
	noStore     bool
}

func runCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run the agent on a task",
		Long: `Run the agent on a task until it calls end_game or exhausts its steps.

Without a prompt argument the prompt is read from the terminal, or from
stdin when it is not a terminal. --interactive keeps asking for new tasks
until an empty line or "exit".`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), flags, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "Keep prompting for tasks")
	cmd.Flags().IntVar(&flags.maxSteps, "max-steps", 0, "Step budget per run (default from config)")
	cmd.Flags().StringSliceVar(&flags.tools, "tools", nil, "Tools to enable (default from config)")
	cmd.Flags().StringVar(&flags.model, "model", "", "Model to use (default from config)")
	cmd.Flags().StringSliceVar(&flags.denyTools, "deny-tool", nil, "Block calls to these tools")
	cmd.Flags().BoolVar(&flags.noStore, "no-store", false, "Do not record the run")

	return cmd
}

func runAgent(parent context.Context, flags runFlags, prompt string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := newSession(cfg, logger, flags)
	if err != nil {
		return err
	}
	defer sess.Close()

	in := bufio.NewReader(os.Stdin)
	tty := term.IsTerminal(int(os.Stdin.Fd()))

	for {
		if prompt == "" {
			prompt, err = readPrompt(in, os.Stdout, tty)
			if err != nil {
				return err
			}
		}
		if strings.TrimSpace(prompt) == "" || (flags.interactive && prompt == "exit") {
			if !flags.interactive {
				logger.Warn(ctx, "prompt", "empty prompt provided", nil)
				return agent.ErrEmptyPrompt
			}
			return nil
		}

		zl := logger.Zerolog()
		zl.Info().Str("prompt", prompt).Msg("Received prompt")
		res, runErr := sess.agent.Run(ctx, prompt)
		if res != nil {
			sess.out.Print(sess.render.Result(res))
		}
		if runErr != nil && !flags.interactive {
			return runErr
		}
		if agent.IsCancelled(ctx.Err()) {
			return nil
		}
		if !flags.interactive {
			return nil
		}
		prompt = ""
	}
}

// applyRunFlags lets command line flags override the loaded config
func applyRunFlags(cfg *config.Config, flags runFlags) {
	if flags.maxSteps > 0 {
		cfg.Agent.MaxSteps = flags.maxSteps
	}
	if len(flags.tools) > 0 {
		cfg.Tools.ToolList = flags.tools
	}
	if flags.model != "" {
		cfg.LLM.Model = flags.model
	}
	if flags.noStore {
		cfg.Store.Enabled = false
	}
}

// readPrompt asks for one task. On a terminal the question is shown first.
func readPrompt(in *bufio.Reader, out io.Writer, tty bool) (string, error) {
	if tty {
		fmt.Fprint(out, "Enter your prompt: ")
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// session bundles what one CLI invocation needs to run the agent
type session struct {
	agent  *agent.Agent
	tools  *tool.Registry
	store  *store.SQLite
	out    *render.Writer
	render *render.Renderer
}

func newSession(cfg *config.Config, logger *agent.AgentLogger, flags runFlags) (*session, error) {
	llmProvider, err := provider.Default.CreateByID(cfg.LLM.Provider,
		provider.WithAPIKey(cfg.LLM.APIKey),
		provider.WithBaseURL(cfg.LLM.BaseURL),
	)
	if err != nil {
		return nil, err
	}

	registry, diags := tool.DefaultCatalog(catalogOptions(cfg, llmProvider)).Build(cfg.Tools.ToolList)
	for _, d := range diags {
		zl := logger.Zerolog()
		zl.Warn().Err(d).Msg("tool configuration")
	}

	s := &session{
		tools:  registry,
		out:    render.Stdout(),
		render: renderer(),
	}

	var recorder agent.Recorder
	if cfg.Store.Enabled {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			zl := logger.Zerolog()
			zl.Warn().Err(err).Str("path", cfg.Store.Path).Msg("run history disabled")
		} else {
			s.store = db
			recorder = db
		}
	}

	hooks := hook.NewRegistry()
	if len(flags.denyTools) > 0 {
		hooks.Register(hook.HookPreToolExec, hook.DenyTools(flags.denyTools...))
	}
	if debug {
		zl := logger.Zerolog()
		logf := func(format string, args ...any) { zl.Debug().Msgf(format, args...) }
		for _, ht := range []hook.HookType{hook.HookPreToolExec, hook.HookPostToolExec, hook.HookRunStart, hook.HookRunEnd} {
			hooks.Register(ht, hook.LoggingHook(logf))
		}
	}

	s.agent = agent.New(llmProvider, registry,
		agent.WithModel(cfg.LLM.Model),
		agent.WithMaxSteps(cfg.Agent.MaxSteps),
		agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
		agent.WithMaxTokens(cfg.LLM.MaxTokens),
		agent.WithTemperature(cfg.LLM.Temperature),
		agent.WithHooks(hooks),
		agent.WithLogger(logger),
		agent.WithRecorder(&liveRecorder{next: recorder, out: s.out, render: s.render}),
	)
	return s, nil
}

func catalogOptions(cfg *config.Config, p llm.Provider) tool.CatalogOptions {
	browser := tool.DefaultBrowserConfig()
	browser.Headless = cfg.Browser.Headless
	browser.Bin = cfg.Browser.Bin
	if cfg.Browser.UserAgent != "" {
		browser.UserAgent = cfg.Browser.UserAgent
	}
	browser.Proxy = tool.ProxyConfig{
		Server:   cfg.Browser.Proxy.Server,
		Username: cfg.Browser.Proxy.Username,
		Password: cfg.Browser.Proxy.Password,
	}

	return tool.CatalogOptions{
		SandboxDir: cfg.Sandbox.Dir,
		Deny:       cfg.Sandbox.Deny,
		Browser:    browser,
		Provider:   p,
		Model:      cfg.LLM.Model,
		MaxTokens:  cfg.LLM.MaxTokens,
	}
}

func (s *session) Close() {
	s.tools.Close()
	if s.store != nil {
		s.store.Close()
	}
}

// liveRecorder prints each message as the run appends it and forwards to
// the persistent recorder, if any.
type liveRecorder struct {
	next   agent.Recorder
	out    *render.Writer
	render *render.Renderer
}

func (l *liveRecorder) RunStarted(ctx context.Context, run agent.RunRecord) error {
	if l.next == nil {
		return nil
	}
	return l.next.RunStarted(ctx, run)
}

func (l *liveRecorder) MessageAppended(ctx context.Context, msg domain.Message) error {
	// the prompt was typed or passed by the user; echoing it adds nothing
	if msg.Role != domain.RoleUser {
		l.out.Print(l.render.Message(msg))
	}
	if l.next == nil {
		return nil
	}
	return l.next.MessageAppended(ctx, msg)
}

func (l *liveRecorder) RunFinished(ctx context.Context, run agent.RunRecord) error {
	if l.next == nil {
		return nil
	}
	return l.next.RunFinished(ctx, run)
}
