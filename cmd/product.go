package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var productCmd = &cobra.Command{
	Use:   "product <id>",
	Short: "Show a catalogued product and its price history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.store.FindByID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("product %s: %w", args[0], err)
		}
		history, err := a.store.History(ctx, p.ID)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s %s\n%s\n", p.Name, p.Description, p.Size, p.URL)
		t := newTable(table.Row{"Observed", "Price"})
		for _, point := range history {
			t.AppendRow(table.Row{point.ObservedAt.Local().Format(time.DateTime), point.Price.StringFixed(2)})
		}
		t.Render()
		return nil
	},
}
