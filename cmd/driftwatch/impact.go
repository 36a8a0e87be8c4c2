package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/rules"
)

var impactCmd = &cobra.Command{
	Use:   "impact <RULE-ID>",
	Short: "Show the blast radius of changing a rule",
	Long: `Compute which rules are affected, directly and transitively, if the given
rule changes, and which documents they live in.

Example:
  driftwatch impact CORE-0001`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Snapshot keys carry the brackets; accept the ID with or without.
		id := "[" + strings.ToUpper(strings.Trim(args[0], "[]")) + "]"

		snap, err := rules.ParseFiles(cfg.Rules.Files)
		if err != nil {
			return err
		}
		thresholds := rules.Thresholds{
			Medium: cfg.Rules.ImpactMediumThreshold,
			High:   cfg.Rules.ImpactHighThreshold,
		}
		impact, ok := snap.Impact(id, thresholds)
		if !ok {
			return fmt.Errorf("rule %s not found", id)
		}

		level := string(impact.Level)
		switch impact.Level {
		case rules.ImpactHigh:
			level = color.RedString(level)
		case rules.ImpactMedium:
			level = color.YellowString(level)
		default:
			level = color.GreenString(level)
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %s\n", bold("Rule:"), impact.RuleID)
		fmt.Printf("%s %s (%d affected)\n", bold("Impact:"), level, impact.Total)
		if len(impact.Direct) > 0 {
			fmt.Printf("%s %s\n", bold("Direct:"), strings.Join(impact.Direct, ", "))
		}
		if len(impact.Transitive) > 0 {
			fmt.Printf("%s %s\n", bold("Transitive:"), strings.Join(impact.Transitive, ", "))
		}
		if len(impact.AffectedFiles) > 0 {
			fmt.Printf("%s %s\n", bold("Documents:"), strings.Join(impact.AffectedFiles, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(impactCmd)
}
