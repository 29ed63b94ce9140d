package cmd

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sjsage522/pricecompare/internal/search"
)

var (
	crawlPhrases string
	crawlSave    bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [phrase...]",
	Short: "Search every shop for the given phrases",
	Long: `Searches every configured shop for each phrase and prints the products found.
Phrases come from the arguments and the comma separated --phrase flag; with
none given the sample phrases file is used. --save stores the results in the catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		phrases := search.SplitPhrases(strings.Join(append(args, crawlPhrases), ","))
		report, err := a.search.Search(cmd.Context(), phrases, crawlSave)
		if err != nil && len(report.Records) == 0 {
			return err
		}

		header := table.Row{"Phrase", "Shop", "Name", "Description", "Size", "Price", "URL"}
		if len(report.Results) > 0 {
			header = append(header, "Catalog")
		}
		t := newTable(header)
		for i, r := range report.Records {
			row := table.Row{r.SearchPhrase, r.ShopID, r.Name, r.Description, r.Size, r.Price.StringFixed(2), r.URL}
			if len(report.Results) > 0 {
				row = append(row, report.Results[i].Action)
			}
			t.AppendRow(row)
		}
		t.AppendFooter(table.Row{"", "", "", "", "", len(report.Records), "records"})
		t.Render()
		return err
	},
}

func init() {
	crawlCmd.Flags().StringVarP(&crawlPhrases, "phrase", "p", "", "comma separated search phrases")
	crawlCmd.Flags().BoolVar(&crawlSave, "save", false, "store results in the catalog")
}
