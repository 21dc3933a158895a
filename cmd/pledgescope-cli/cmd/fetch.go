package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/use-agent/pledgescope/models"
)

var fetchTable bool

func init() {
	fetchCmd.Flags().BoolVarP(&fetchTable, "table", "t", false, "print a table instead of JSON")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Scrapes the contributions and prints them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := newScraper()
		if err != nil {
			return err
		}
		resp, err := sc.Contributions(cmd.Context())
		if err != nil {
			return err
		}

		if fetchTable {
			renderTable(os.Stdout, resp)
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

// renderTable prints one row per contributor and a footer with the totals.
func renderTable(w io.Writer, resp *models.ContributionsResponse) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Label", "Amount"})

	var sum float64
	for i, c := range resp.Contributors {
		amount := "-"
		if c.Amount != nil {
			amount = strconv.FormatFloat(*c.Amount, 'f', 2, 64)
			sum += *c.Amount
		}
		t.AppendRow(table.Row{i + 1, c.Name, c.AmountLabel, amount})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d named / %d total", len(resp.Contributors), resp.TotalContributionsCount),
		resp.Source,
		strconv.FormatFloat(sum, 'f', 2, 64),
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
