package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"driftwatch/internal/events"
	"driftwatch/internal/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the configured validation scripts",
	Long: `Execute every validation script from the config with bounded concurrency
and report the results. Results are also published as validation events, so
a decision detector attached to the same archive sees them.

Exits non-zero when any script fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Validation.Scripts) == 0 {
			fmt.Println(color.YellowString("No validation scripts configured"))
			return nil
		}

		bus := events.NewBus(len(cfg.Validation.Scripts) * 2)
		monitor := validation.New(bus, cfg.Validation)

		start := time.Now()
		if err := monitor.Run(cmd.Context()); err != nil {
			return err
		}

		failed := 0
		// Oldest first for readable output.
		results := bus.Recent(0, "")
		for i := len(results) - 1; i >= 0; i-- {
			e := results[i]
			switch e.Type {
			case events.EventTypeValidationPassed:
				fmt.Printf("%s %s\n", color.GreenString("✓"), e.DataString("script"))
			case events.EventTypeValidationFailed:
				failed++
				fmt.Printf("%s %s\n", color.RedString("✗"), e.DataString("script"))
				if out := e.DataString("output"); out != "" {
					fmt.Printf("  %s\n", out)
				}
			}
		}

		fmt.Printf("%d script(s) in %s\n", len(cfg.Validation.Scripts), time.Since(start).Round(time.Millisecond))
		if failed > 0 {
			return fmt.Errorf("%d validation script(s) failed", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
