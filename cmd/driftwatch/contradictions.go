package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/rules"
)

var contradictionsCmd = &cobra.Command{
	Use:   "contradictions",
	Short: "Scan the rule graph for contradicting rules",
	Long: `Check every rule pair for conflicting normative keywords on matching
subjects (MUST vs MUST NOT is hard, SHOULD vs SHOULD NOT is soft) and for
explicit "contradicts [RULE-ID]" annotations.

Exits non-zero when any hard contradiction is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := rules.ParseFiles(cfg.Rules.Files)
		if err != nil {
			return err
		}

		findings := snap.Contradictions()
		if len(findings) == 0 {
			fmt.Printf("%s no contradictions across %d rules\n", color.GreenString("✓"), snap.Len())
			return nil
		}

		hard := 0
		for _, f := range findings {
			sev := color.YellowString(string(f.Severity))
			if f.Severity == rules.ContradictionHard {
				sev = color.RedString(string(f.Severity))
				hard++
			}
			reason := "shared subjects: " + strings.Join(f.SharedStems, ", ")
			if f.Explicit {
				reason = "explicit annotation"
			}
			fmt.Printf("  %s  %s vs %s  (%s)\n", sev, f.RuleA, f.RuleB, reason)
		}

		if hard > 0 {
			return fmt.Errorf("%d hard contradiction(s)", hard)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contradictionsCmd)
}
