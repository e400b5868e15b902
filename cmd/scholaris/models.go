package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scholaris-edu/scholaris/pkg/config"
)

func newModelsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cat, err := buildCatalog(cfg)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIER\tFAMILY\tWINDOW\t$/1K IN\t$/1K OUT\tQUALITY\tMULTIMODAL")
			for _, d := range cat.List() {
				multimodal := ""
				if d.Multimodal {
					multimodal = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.5f\t%.5f\t%d\t%s\n",
					d.ID, d.Tier, d.Family, d.ContextWindowTokens,
					d.CostPer1KInput, d.CostPer1KOutput, d.QualityRank, multimodal)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "scholaris.yaml", "path to config file")
	return cmd
}
