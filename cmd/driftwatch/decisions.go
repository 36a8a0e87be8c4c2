package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/decisions"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Query the decision log",
	Long: `List, search, and filter decision log entries.

Examples:
  driftwatch decisions                      # All entries
  driftwatch decisions --search caching     # Full-text search
  driftwatch decisions --rule CORE-0001     # Entries naming a rule
  driftwatch decisions --tag architecture   # Entries carrying a tag
  driftwatch decisions --due-review         # Entries past their review date`,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		ruleID, _ := cmd.Flags().GetString("rule")
		tag, _ := cmd.Flags().GetString("tag")
		dueReview, _ := cmd.Flags().GetBool("due-review")

		log, err := decisions.Load(cfg.Governance.DecisionLog)
		if err != nil {
			return err
		}

		entries := log.Entries
		switch {
		case search != "":
			entries = log.Search(search)
		case ruleID != "":
			// Parsed related-rule IDs carry the brackets.
			entries = log.ByRule("[" + strings.ToUpper(strings.Trim(ruleID, "[]")) + "]")
		case tag != "":
			entries = log.ByTag(tag)
		case dueReview:
			entries = log.NeedingReview(time.Now())
		}

		if len(entries) == 0 {
			fmt.Println(color.YellowString("No matching decision log entries"))
			return nil
		}

		bold := color.New(color.Bold).SprintFunc()
		for _, e := range entries {
			fmt.Printf("%s %s  %s\n", bold(fmt.Sprintf("#%d", e.Number)), e.Date.Format("2006-01-02"), e.Decision)
			if e.Trigger != "" {
				fmt.Printf("   trigger:  %s\n", e.Trigger)
			}
			if e.Rationale != "" {
				fmt.Printf("   why:      %s\n", e.Rationale)
			}
			if len(e.RelatedRules) > 0 {
				fmt.Printf("   rules:    %s\n", strings.Join(e.RelatedRules, ", "))
			}
			if !e.ReviewDate.IsZero() && e.ActualImpact == "" {
				marker := ""
				if !e.ReviewDate.After(time.Now()) {
					marker = " " + color.YellowString("(due)")
				}
				fmt.Printf("   review:   %s%s\n", e.ReviewDate.Format("2006-01-02"), marker)
			}
		}
		return nil
	},
}

func init() {
	decisionsCmd.Flags().String("search", "", "Full-text search over entry fields")
	decisionsCmd.Flags().String("rule", "", "Entries naming the given rule ID")
	decisionsCmd.Flags().String("tag", "", "Entries carrying the given tag")
	decisionsCmd.Flags().Bool("due-review", false, "Entries past their review date without recorded impact")
	rootCmd.AddCommand(decisionsCmd)
}
