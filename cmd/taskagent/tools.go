package main

import (
	"github.com/spf13/cobra"

	"github.com/joss/taskagent/internal/agent"
	"github.com/joss/taskagent/internal/provider"
	"github.com/joss/taskagent/internal/render"
	"github.com/joss/taskagent/internal/tool"
)

func toolsCmd() *cobra.Command {
	var (
		showPrompt bool
		names      []string
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools a run would offer the model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if len(names) > 0 {
				cfg.Tools.ToolList = names
			}

			// story_creator is only offered with a provider; no request is sent here
			p, err := provider.Default.CreateByID(cfg.LLM.Provider,
				provider.WithAPIKey(cfg.LLM.APIKey),
				provider.WithBaseURL(cfg.LLM.BaseURL),
			)
			if err != nil {
				zl := logger.Zerolog()
				zl.Warn().Err(err).Msg("provider unavailable, story_creator disabled")
				p = nil
			}

			catalog := tool.DefaultCatalog(catalogOptions(cfg, p))
			registry, diags := catalog.Build(cfg.Tools.ToolList)
			defer registry.Close()

			out := render.Stdout()
			for _, d := range diags {
				out.Println("warning: %v", d)
			}

			r := renderer()
			out.Print(r.Tools(registry.List(), registry.Terminator()))

			out.Section("Available")
			for _, name := range catalog.Names() {
				out.Item("%s", name)
			}

			if showPrompt {
				out.Section("System prompt")
				system := cfg.Agent.SystemPrompt
				if system == "" {
					system = agent.DefaultSystemPrompt
				}
				out.Println("%s", system)
				out.Section("Next step prompt")
				out.Println("%s", agent.RenderInstructions(registry.List(), registry.Terminator()))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "Also show the synthesized instructions")
	cmd.Flags().StringSliceVar(&names, "tools", nil, "Tools to enable (default from config)")
	return cmd
}
