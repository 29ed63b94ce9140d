package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sjsage522/pricecompare/internal/catalog"
)

var checkPersist bool

var checkPricesCmd = &cobra.Command{
	Use:   "check-prices [product-id...]",
	Short: "Re-check catalogued prices and list the ones that dropped",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var products []catalog.Product
		if len(args) == 0 {
			if products, err = a.store.List(ctx); err != nil {
				return err
			}
		}
		for _, id := range args {
			p, err := a.store.FindByID(ctx, id)
			if err != nil {
				return err
			}
			products = append(products, *p)
		}

		drops, err := a.monitor.CheckPrices(ctx, products, checkPersist)
		if err != nil {
			return err
		}

		t := newTable(table.Row{"ID", "Name", "Description", "Was", "Now", "URL"})
		for _, d := range drops {
			t.AppendRow(table.Row{d.ID, d.Name, d.Description, d.PreviousPrice.StringFixed(2), d.CurrentPrice.StringFixed(2), d.URL})
		}
		t.Render()
		return nil
	},
}

func init() {
	checkPricesCmd.Flags().BoolVar(&checkPersist, "persist", false, "store the prices found")
}
