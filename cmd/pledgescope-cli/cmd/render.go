package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/pledgescope/cleaner"
)

var (
	renderFormat   string
	renderPretty   bool
	renderFull     bool
	renderSelector string
	renderOut      string
)

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&renderFormat, "format", "f", cleaner.FormatHTML, "output format: html or markdown")
	f.BoolVar(&renderPretty, "pretty", false, "re-indent the HTML")
	f.BoolVar(&renderFull, "full", false, "do not truncate the output")
	f.StringVarP(&renderSelector, "selector", "s", "", "only keep elements matching this CSS selector")
	f.StringVarP(&renderOut, "output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Prints the target page as rendered after JavaScript ran.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := newScraper()
		if err != nil {
			return err
		}
		page, err := sc.Render(cmd.Context())
		if err != nil {
			return err
		}

		limit := cfg.Scraper.RenderMaxBytes
		if renderFull {
			limit = 0
		}
		res, err := cleaner.NewCleaner().Render(page.HTML, page.URL, cleaner.Options{
			Format:   renderFormat,
			Pretty:   renderPretty,
			Selector: renderSelector,
			MaxBytes: limit,
		})
		if err != nil {
			return err
		}
		if res.Truncated {
			fmt.Fprintf(os.Stderr, "output truncated to %d of %d bytes, use --full for everything\n", limit, res.Length)
		}

		if renderOut == "" {
			_, err = fmt.Fprintln(os.Stdout, res.Content)
			return err
		}
		return os.WriteFile(renderOut, []byte(res.Content), 0o644)
	},
}
