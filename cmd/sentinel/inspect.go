package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cuemby/sentinel/pkg/config"
	"github.com/cuemby/sentinel/pkg/health"
	"github.com/cuemby/sentinel/pkg/log"
	"github.com/cuemby/sentinel/pkg/runtime"
	"github.com/cuemby/sentinel/pkg/storage"
	"github.com/cuemby/sentinel/pkg/types"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every resolver and container once",
	Long: `Probe every configured resolver and monitored container once and print
a health report.

Exit codes:
  0  everything passed
  1  degraded: something failed but at least one resolver answers
  2  unhealthy: no resolver answers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "text" && format != "json" {
			return fmt.Errorf("format must be 'text' or 'json'")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		report := buildReport(cmd.Context(), cfg)
		if err := printReport(os.Stdout, report, format); err != nil {
			return err
		}

		if code := report.Status.ExitCode(); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func buildReport(ctx context.Context, cfg *config.Config) health.Report {
	if ctx == nil {
		ctx = context.Background()
	}

	var inspector health.ContainerInspector
	if rt, err := runtime.New(cfg.Runtime); err != nil {
		logger := log.WithComponent("check")
		logger.Warn().Err(err).Msg("Container runtime unavailable, container checks will fail")
	} else {
		defer rt.Close()
		inspector = rt
	}

	prober := health.NewProber(inspector, cfg.Failover.ProbeTimeout)
	return health.BuildReport(ctx, prober.Check, cfg.PriorityList(), cfg.Reconciler.Containers)
}

func printReport(w io.Writer, report health.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "Sentinel Health Report - %s\n", report.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Overall Status: %s\n\n", strings.ToUpper(string(report.Status)))
	for _, c := range report.Checks {
		icon := "✓"
		if !c.Pass {
			icon = "✗"
		}
		fmt.Fprintf(w, "  %s %-20s %-10s %s\n", icon, c.Name, c.Kind, c.Message)
	}
	return nil
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Print the effective resolver priority list",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("%-9s %-15s %-10s %s\n", "PRIORITY", "NAME", "KIND", "ADDRESS")
		for _, t := range cfg.PriorityList() {
			fmt.Printf("%-9d %-15s %-10s %s\n", t.Priority, t.Name, t.Kind, t.Address)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print persisted failover transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Storage.DataDir == "" {
			return fmt.Errorf("storage.dataDir is not configured, no history is kept")
		}

		store, err := storage.NewBoltStore(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		transitions, err := store.ListTransitions(limit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		printTransitions(os.Stdout, transitions)
		return nil
	},
}

func printTransitions(w io.Writer, transitions []types.Transition) {
	if len(transitions) == 0 {
		fmt.Fprintln(w, "No transitions recorded")
		return
	}
	for _, t := range transitions {
		fmt.Fprintf(w, "%s  %-8s  %s -> %s\n", t.Time.Format(time.RFC3339), t.Reason, t.From, t.To)
	}
}

func init() {
	checkCmd.Flags().String("format", "text", "Output format (text or json)")
	historyCmd.Flags().Int("limit", 50, "Number of most recent transitions to show (0 for all)")
}
