package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scholaris-edu/scholaris/pkg/models"
)

func newBudgetCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		roleName   string
	)

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show budget position against the configured caps",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := models.ParseRole(roleName)
			if err != nil {
				return err
			}

			led, cleanup, err := openLedger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			status := led.Status(userID, role)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "User\t%s (%s)\n", status.UserID, status.Role)
			fmt.Fprintf(w, "Spent today\t$%.4f\n", status.SpentToday)
			if status.DailyCap > 0 {
				fmt.Fprintf(w, "Daily cap\t$%.2f\n", status.DailyCap)
			} else {
				fmt.Fprintf(w, "Daily cap\tnone\n")
			}
			within := "yes"
			if !status.WithinDailyCap {
				within = "no (hosted requests demote to local)"
			}
			fmt.Fprintf(w, "Within daily cap\t%s\n", within)
			fmt.Fprintf(w, "Monthly org spend\t$%.2f of $%.2f\n", status.MonthlySpend, status.MonthlyCap)
			fmt.Fprintf(w, "Remaining monthly\t$%.2f\n", status.RemainingMonthly)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scholaris.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "", "user id to report on")
	cmd.Flags().StringVar(&roleName, "role", "", "user role (STUDENT, TEACHER, PARENT, ADMIN, SYSTEM)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
