package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scholaris-edu/scholaris/pkg/config"
	"github.com/scholaris-edu/scholaris/pkg/ledger"
	ledgersqlite "github.com/scholaris-edu/scholaris/pkg/ledger/sqlite"
	"github.com/scholaris-edu/scholaris/pkg/models"
)

func newUsageCmd() *cobra.Command {
	var (
		configPath string
		period     string
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show generation usage and cost summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, cleanup, err := openLedger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			p := models.SummaryPeriod(period)
			if p != models.PeriodDaily && p != models.PeriodMonthly {
				return fmt.Errorf("period must be daily or monthly, got %q", period)
			}

			summary := led.Summary(p)
			if summary.TotalRequests == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tREQUESTS\tCOST")
			for _, id := range sortedKeys(summary.ByModel) {
				b := summary.ByModel[id]
				fmt.Fprintf(w, "%s\t%d\t$%.4f\n", id, b.Requests, b.Cost)
			}
			fmt.Fprintln(w, "\nROLE\tREQUESTS\tCOST")
			for _, role := range sortedRoles(summary.ByRole) {
				b := summary.ByRole[role]
				fmt.Fprintf(w, "%s\t%d\t$%.4f\n", role, b.Requests, b.Cost)
			}
			fmt.Fprintf(w, "\nTOTAL\t%d\t$%.4f\n", summary.TotalRequests, summary.TotalCost)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scholaris.yaml", "path to config file")
	cmd.Flags().StringVar(&period, "period", "daily", "summary period (daily or monthly)")
	return cmd
}

// openLedger loads config, opens the durable store, and primes a ledger.
func openLedger(configPath string) (*ledger.Ledger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	sink, err := ledgersqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	led := ledger.New(cfg.Budget, sink)
	if err := led.Load(context.Background()); err != nil {
		_ = sink.Close()
		return nil, nil, err
	}
	return led, func() { _ = sink.Close() }, nil
}

func sortedKeys(m map[string]models.UsageBreakdown) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRoles(m map[models.Role]models.UsageBreakdown) []models.Role {
	roles := make([]models.Role, 0, len(m))
	for r := range m {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
