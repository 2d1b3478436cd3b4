// Package main provides the taskagent CLI entrypoint.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/config"
	"github.com/joss/taskagent/internal/render"
)

var (
	version    = "0.1.0"
	configPath string
	debug      bool
	noColor    bool
	pretty     = true
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskagent",
		Short: "Tool-calling LLM agent",
		Long: `taskagent hands a task to a language model and lets it call tools
(web search, a browser, a sandboxed file writer) step by step until it
calls end_game or runs out of steps.

Configuration is read from taskagent.{toml,yaml,json} in the current
directory or ~/.taskagent, then from TASKAGENT_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
				color.NoColor = true
				pretty = false
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./taskagent.* or ~/.taskagent/taskagent.*)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log debug events to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Plain output without colors or icons")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show taskagent version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskagent version %s\n", version)
		},
	}
}

// loadConfig reads the config and builds the logger every command shares.
// Logging goes to log.file when set, stderr under --debug, nowhere otherwise.
func loadConfig() (*config.Config, *agent.AgentLogger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel()
	var opts []agent.LoggerOption
	switch {
	case cfg.Log.File != "":
		opts = append(opts, agent.WithLogFile(cfg.Log.File))
	case debug:
		opts = append(opts, agent.WithLogOutput(consoleWriter(os.Stderr)))
	}
	if debug {
		level = zerolog.DebugLevel
	}
	opts = append(opts, agent.WithLogLevel(level))

	logger := agent.NewAgentLogger(opts...)
	cfg.LogInfo(logger.Zerolog())
	return cfg, logger, nil
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, NoColor: color.NoColor, TimeFormat: "15:04:05"}
}

func renderer() *render.Renderer {
	return render.New(pretty)
}
