package main

import (
	"context"

	"github.com/spf13/cobra"

	"driftwatch/internal/daemon"
	"driftwatch/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive shell with a live daemon",
	Long: `Start the daemon and drop into an interactive shell. Monitors run in the
background while you query status, events, rules, and decisions; 'watch'
streams events live. Exiting the shell stops the daemon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := daemon.New(cfg)
		if err := d.Start(context.Background()); err != nil {
			return err
		}
		defer d.Stop()

		shell, err := repl.New(&repl.Config{
			Daemon:      d,
			DecisionLog: cfg.Governance.DecisionLog,
		})
		if err != nil {
			return err
		}
		return shell.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
