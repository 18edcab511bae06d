package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billable/pkg/billing"
)

var errNoCatalog = errors.New("no plan catalog configured, set BILLING_CATALOG_PATH or --catalog")

func newPlansCmd(envFiles *[]string) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Print the plan catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				cfg, err := loadAppConfig(*envFiles)
				if err != nil {
					return err
				}
				path = cfg.Billing.CatalogPath
			}
			if path == "" {
				return errNoCatalog
			}
			catalog, err := billing.LoadCatalogFile(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tPRICE\tNAME\tTRIAL DAYS")
			for _, p := range catalog.Plans() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.Key, p.PriceID, p.Name, p.TrialDays)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "catalog", "", "catalog file, overrides BILLING_CATALOG_PATH")
	return cmd
}
