package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scholaris-edu/scholaris/pkg/config"
	"github.com/scholaris-edu/scholaris/pkg/models"
	"github.com/scholaris-edu/scholaris/pkg/routing"
)

func newRouteCmd() *cobra.Command {
	var (
		configPath string
		userID     string
		roleName   string
		taskName   string
		complexity string
		multimodal bool
		offline    bool
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Dry-run a routing decision without generating",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			role, err := models.ParseRole(roleName)
			if err != nil {
				return err
			}
			task, err := models.ParseTaskType(taskName)
			if err != nil {
				return err
			}
			cplx, err := models.ParseComplexity(complexity)
			if err != nil {
				return err
			}

			cat, err := buildCatalog(cfg)
			if err != nil {
				return err
			}
			est := buildEstimator(cfg)

			led, cleanup, err := openLedger(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			connectivity := map[models.Tier]bool{models.TierLocal: true}
			if !offline {
				connectivity[models.TierHostedStandard] = true
				connectivity[models.TierHostedPremium] = true
			}

			req := models.RoutingRequest{
				UserID:             userID,
				Role:               role,
				TaskType:           task,
				Complexity:         cplx,
				RequiresMultimodal: multimodal,
				Connectivity:       connectivity,
			}

			decision, err := routing.New(cat, est, cfg.Budget).Route(req, led)
			if err != nil {
				return err
			}

			fmt.Printf("Decision: %s\n\n", decision.Reason)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tMODEL\tTIER\tQUALITY\tWINDOW")
			for i, d := range decision.Candidates {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", i+1, d.ID, d.Tier, d.QualityRank, d.ContextWindowTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scholaris.yaml", "path to config file")
	cmd.Flags().StringVar(&userID, "user", "dry-run", "user id for budget checks")
	cmd.Flags().StringVar(&roleName, "role", "", "user role")
	cmd.Flags().StringVar(&taskName, "task", "", "task type")
	cmd.Flags().StringVar(&complexity, "complexity", "MEDIUM", "request complexity")
	cmd.Flags().BoolVar(&multimodal, "multimodal", false, "request needs image input")
	cmd.Flags().BoolVar(&offline, "offline", false, "simulate no hosted connectivity")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}
