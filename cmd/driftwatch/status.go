package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/decisions"
	"driftwatch/internal/events"
	"driftwatch/internal/rules"
	"driftwatch/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show governance monitoring status",
	Long: `Summarize the project's governance state from the working tree: the
rule graph, the decision log, and the archived event history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bold := color.New(color.Bold).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		// Rule graph
		snap, err := rules.ParseFiles(cfg.Rules.Files)
		if err != nil {
			fmt.Printf("%s %v\n", color.RedString("Rule graph:"), err)
		} else {
			fmt.Printf("%s %d rules across %d documents\n", bold("Rule graph:"), snap.Len(), len(cfg.Rules.Files))
			findings := snap.Contradictions()
			if len(findings) == 0 {
				fmt.Printf("  %s no contradictions\n", green("✓"))
			} else {
				fmt.Printf("  %s %d contradiction(s), run 'driftwatch contradictions'\n", yellow("!"), len(findings))
			}
		}

		// Decision log
		log, err := decisions.Load(cfg.Governance.DecisionLog)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d entries\n", bold("Decision log:"), len(log.Entries))
		if due := log.NeedingReview(time.Now()); len(due) > 0 {
			fmt.Printf("  %s %d entries due for review\n", yellow("!"), len(due))
		}

		// Event archive
		if cfg.Storage.Enabled {
			archive, err := storage.Open(cfg.Storage.Path)
			if err != nil {
				fmt.Printf("%s unavailable: %v\n", bold("Event archive:"), err)
				return nil
			}
			defer archive.Close()

			counts, err := archive.CountByType()
			if err != nil {
				return err
			}
			total := 0
			types := make([]string, 0, len(counts))
			for typ, n := range counts {
				total += n
				types = append(types, string(typ))
			}
			sort.Strings(types)
			fmt.Printf("%s %d events\n", bold("Event archive:"), total)
			for _, typ := range types {
				fmt.Printf("  %-28s %d\n", typ, counts[events.EventType(typ)])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
