package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/storage"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Watch driftwatch activity in real-time",
	Long: `Display recent archived events and, with --follow, keep printing new
events as the daemon records them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		limit, _ := cmd.Flags().GetInt("limit")

		archive, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening event archive: %w", err)
		}
		defer archive.Close()

		recent, err := archive.Recent(limit, "")
		if err != nil {
			return err
		}
		// Recent is newest first; a tail reads oldest first.
		last := time.Time{}
		for i := len(recent) - 1; i >= 0; i-- {
			fmt.Println(displayEvent(recent[i]))
			if recent[i].Timestamp.After(last) {
				last = recent[i].Timestamp
			}
		}

		if !follow {
			return nil
		}
		fmt.Println(color.New(color.Faint).Sprint("Following (Ctrl+C to stop)..."))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		seen := map[string]bool{}
		for _, e := range recent {
			seen[e.ID] = true
		}

		for {
			select {
			case <-sigCh:
				return nil
			case <-ticker.C:
				fresh, err := archive.Since(last)
				if err != nil {
					return err
				}
				for _, e := range fresh {
					if seen[e.ID] {
						continue
					}
					seen[e.ID] = true
					fmt.Println(displayEvent(e))
					if e.Timestamp.After(last) {
						last = e.Timestamp
					}
				}
			}
		}
	},
}

func init() {
	tailCmd.Flags().BoolP("follow", "f", false, "Follow mode - watch for live updates (Ctrl+C to stop)")
	tailCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show initially")
	rootCmd.AddCommand(tailCmd)
}
