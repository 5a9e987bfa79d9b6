package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cnb-rate-service/internal/policy"
)

var policyAt string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the cache policy for now or a given instant",
	RunE:  runPolicy,
}

func init() {
	policyCmd.Flags().StringVar(&policyAt, "at", "", "instant to evaluate (RFC 3339), defaults to now")
}

func runPolicy(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	calculator, err := policy.NewCalculator(cfg.Schedule)
	if err != nil {
		return err
	}

	at := time.Now()
	if policyAt != "" {
		at, err = time.Parse(time.RFC3339, policyAt)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
	}

	p, err := calculator.ComputePolicy(at)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "instant:          %s\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "publisher time:   %s\n", at.In(calculator.Location()).Format("Mon 2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "band:             %s\n", p.Band)
	fmt.Fprintf(out, "duration:         %s\n", p.Duration)
	fmt.Fprintf(out, "fail-safe max:    %s\n", p.FailSafeMaxDuration)
	return nil
}
