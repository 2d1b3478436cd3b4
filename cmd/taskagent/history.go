package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/taskagent/internal/render"
	"github.com/joss/taskagent/internal/store"
)

func openStore() (*store.SQLite, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Store.Enabled {
		return nil, fmt.Errorf("run history is disabled (store.enabled=false)")
	}
	return store.Open(cfg.Store.Path)
}

func historyCmd() *cobra.Command {
	var (
		limit int
		state string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(cmdContext(cmd), store.DefaultFilter().WithLimit(limit).WithState(state))
			if err != nil {
				return err
			}
			render.Stdout().Print(renderer().Runs(runs))
			if len(runs) == 0 {
				render.Stdout().Line()
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&state, "state", "", "Only runs in this state (terminated, failed, exhausted_steps, running)")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run and its transcript",
		Long:  "Show a recorded run. A unique prefix of the run id is enough.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmdContext(cmd)
			run, err := db.FindRun(ctx, args[0])
			if err != nil {
				return err
			}
			msgs, err := db.Messages(ctx, run.ID)
			if err != nil {
				return err
			}

			r := renderer()
			out := render.Stdout()
			out.Print(r.RunDetail(*run))
			out.Line()
			out.Print(r.Transcript(msgs))
			return nil
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
