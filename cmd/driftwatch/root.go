package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"driftwatch/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "driftwatch",
	Short: "Governance drift monitor",
	Long: `driftwatch watches a project's governance documents, git activity, and
validation runs, and flags governance changes that were never recorded in
the decision log.

Run 'driftwatch daemon' to start monitoring, or use the one-shot commands
(rules, impact, contradictions, decisions, check) against the working tree.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "Path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
