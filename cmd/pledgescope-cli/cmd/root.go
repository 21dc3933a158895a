package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/use-agent/pledgescope/browser"
	"github.com/use-agent/pledgescope/config"
	"github.com/use-agent/pledgescope/scraper"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pledgescope-cli",
	Short: "pledgescope-cli scrapes the fundraising page from the command line, without the HTTP server.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logCfg := cfg.Log
		logCfg.Format = "text"
		if verbose {
			logCfg.Level = "debug"
		}
		// stdout is reserved for command output.
		slog.SetDefault(config.NewLogger(logCfg, os.Stderr))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newScraper builds an in-process scraper from the loaded config.
func newScraper() (*scraper.Scraper, error) {
	profile, err := cfg.Evasion.Profile()
	if err != nil {
		return nil, err
	}
	driver := browser.NewDriver(browser.Config{
		Bin:       cfg.Browser.BrowserBin,
		NoSandbox: cfg.Browser.NoSandbox,
		Proxy:     cfg.Browser.Proxy,
	})
	return scraper.NewScraper(driver, profile, 1, cfg.Scraper, cfg.Pipeline), nil
}
