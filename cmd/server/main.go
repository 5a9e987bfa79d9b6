package main

import (
	"fmt"
	"os"
	_ "time/tzdata" // the publisher timezone must resolve on hosts without a zoneinfo database

	"github.com/spf13/cobra"

	"cnb-rate-service/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "cnb-rates",
	Short: "Czech National Bank exchange rate service",
	Long: "Serves CNB daily exchange rates over HTTP and caches them for as long as the " +
		"CNB publication schedule allows.",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(policyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
