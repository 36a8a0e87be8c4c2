package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the monitoring daemon",
	Long: `Start the driftwatch daemon in the foreground.

The daemon watches governance files, polls git activity, records validation
runs, and flags governance changes that lack decision log coverage. Stop it
with Ctrl+C or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d := daemon.New(cfg)
		if err := d.Start(context.Background()); err != nil {
			return err
		}

		printStartupBanner(d)

		// Start already succeeded; Run's Start call is a no-op and it
		// blocks until a signal arrives.
		return d.Run(cmd.Context())
	},
}

func printStartupBanner(d *daemon.Daemon) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("%s monitoring started\n", cyan("driftwatch"))

	st := d.Status()
	names := make([]string, 0, len(st.Components))
	for name := range st.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		marker := color.GreenString("●")
		if !st.Components[name] {
			marker = color.RedString("●")
		}
		fmt.Printf("  %s %s\n", marker, name)
	}
	fmt.Println("Press Ctrl+C to stop")
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
