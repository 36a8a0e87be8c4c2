package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/events"
	"driftwatch/internal/storage"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent archived events",
	Long: `Display recent events from the driftwatch archive.

Examples:
  driftwatch activity                          # Last 20 events
  driftwatch activity -n 50                    # Last 50 events
  driftwatch activity --type git_commit        # Only commit events
  driftwatch activity --severity warn          # WARN and above`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		eventType, _ := cmd.Flags().GetString("type")
		severity, _ := cmd.Flags().GetString("severity")

		archive, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening event archive: %w", err)
		}
		defer archive.Close()

		var typeFilter events.EventType
		if eventType != "" {
			typeFilter = events.EventType(strings.ToUpper(eventType))
		}

		// Over-fetch when filtering by severity client-side.
		fetch := limit
		if severity != "" && fetch > 0 {
			fetch = 0
		}
		list, err := archive.Recent(fetch, typeFilter)
		if err != nil {
			return err
		}
		if severity != "" {
			list = filterSeverity(list, events.EventSeverity(strings.ToUpper(severity)))
			if limit > 0 && len(list) > limit {
				list = list[:limit]
			}
		}

		if len(list) == 0 {
			fmt.Println(color.YellowString("No events recorded yet. Is the daemon running?"))
			return nil
		}
		for _, e := range list {
			fmt.Println(displayEvent(e))
		}
		return nil
	},
}

// severityRank orders severities for "this level and above" filtering.
func severityRank(s events.EventSeverity) int {
	switch s {
	case events.SeverityCritical:
		return 3
	case events.SeverityError:
		return 2
	case events.SeverityWarn:
		return 1
	default:
		return 0
	}
}

func filterSeverity(list []*events.Event, min events.EventSeverity) []*events.Event {
	out := make([]*events.Event, 0, len(list))
	for _, e := range list {
		if severityRank(e.Severity) >= severityRank(min) {
			out = append(out, e)
		}
	}
	return out
}

// displayEvent renders one archived event line.
func displayEvent(e *events.Event) string {
	sev := string(e.Severity)
	switch e.Severity {
	case events.SeverityWarn:
		sev = color.YellowString(sev)
	case events.SeverityError, events.SeverityCritical:
		sev = color.RedString(sev)
	}
	return fmt.Sprintf("[%s] [%s] %s: %s", e.Timestamp.Format("2006-01-02 15:04:05"), sev, e.Type, e.Message)
}

func init() {
	activityCmd.Flags().IntP("limit", "n", 20, "Number of recent events to show")
	activityCmd.Flags().StringP("type", "t", "", "Filter by event type (e.g. git_commit, governance_file_changed)")
	activityCmd.Flags().StringP("severity", "s", "", "Minimum severity (info, warn, error, critical)")
	rootCmd.AddCommand(activityCmd)
}
