package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/decisions"
	"driftwatch/internal/gitmon"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "One-shot governance coverage check",
	Long: `Scan recent git history for commits touching governance documents and
verify each has a covering decision log entry.

Exits non-zero when uncovered governance changes are found, which makes the
command usable as a CI gate or pre-push hook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		git, err := gitmon.NewGit(ctx, ".")
		if err != nil {
			return fmt.Errorf("git is required for check: %w", err)
		}
		if !git.IsRepo(ctx) {
			return fmt.Errorf("not a git repository")
		}

		log, err := decisions.Load(cfg.Governance.DecisionLog)
		if err != nil {
			return err
		}

		window := time.Duration(cfg.Detector.WindowDays) * 24 * time.Hour
		since := time.Now().AddDate(0, 0, -cfg.Detector.BackscanDays)

		uncovered := 0
		for _, file := range cfg.Governance.Files {
			if filepath.Base(file) == filepath.Base(cfg.Governance.DecisionLog) {
				continue
			}
			touches, err := git.LogSince(ctx, since, file)
			if err != nil {
				return fmt.Errorf("scanning history of %s: %w", file, err)
			}
			if len(touches) == 0 {
				continue
			}

			latest := touches[0]
			if entry := log.CoveringEntry(file, latest.Hash, latest.Date, window); entry != nil {
				fmt.Printf("%s %s covered by decision #%d (%s)\n",
					color.GreenString("✓"), file, entry.Number, entry.Date.Format("2006-01-02"))
				continue
			}

			uncovered++
			fmt.Printf("%s %s changed %s (commit %.7s) with no decision log entry\n",
				color.RedString("✗"), file, latest.Date.Format("2006-01-02"), latest.Hash)
		}

		if uncovered > 0 {
			return fmt.Errorf("%d governance change(s) lack decision log coverage", uncovered)
		}
		fmt.Printf("%s governance changes are covered\n", color.GreenString("✓"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
