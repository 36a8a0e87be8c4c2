package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rules parsed from governed documents",
	Long: `Parse the configured rule documents and list every rule found, with its
normative keyword, lifecycle, and dependency counts.

Duplicate rule identifiers across documents are an error, not a warning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := rules.ParseFiles(cfg.Rules.Files)
		if err != nil {
			return err
		}

		if snap.Len() == 0 {
			fmt.Println(color.YellowString("No rules found in configured documents"))
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s %d rules\n\n", bold("Rule graph:"), snap.Len())
		for _, r := range snap.Rules() {
			keyword := r.Keyword
			if keyword == "MUST" || keyword == "MUST NOT" {
				keyword = color.RedString(keyword)
			}
			fmt.Printf("  %s %-10s deps=%d dependents=%d  %s:%d\n",
				color.CyanString(r.ID), keyword, len(r.Dependencies), len(r.Dependents), r.FilePath, r.Line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
