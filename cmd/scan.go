package cmd

import (
	"context"
	"fmt"

	"github.com/consentry/consentry/api"
	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/pkg/scan"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var scanURL string
var scanMode string
var scanDepth int
var scanMaxPages int
var scanAcceptSelector string

// scanCmd runs one scan from the command line and prints the result id.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Runs a one-off cookie scan against a URL",
	Run: func(cmd *cobra.Command, args []string) {
		if scanURL == "" {
			log.Fatal().Msg("A URL is required, provide it with --url")
		}
		if scanMode != scan.ModeQuick && scanMode != scan.ModeDeep {
			log.Fatal().Str("mode", scanMode).Msg("Mode must be quick or deep")
		}

		components, err := api.BuildComponents()
		if err != nil {
			log.Fatal().Err(err).Msg("Scan initialization failed")
		}
		defer components.Pool.Close()

		params := db.DefaultScanParams()
		params.ScanDepth = scanDepth
		if scanMaxPages > 0 {
			params.MaxPages = &scanMaxPages
		}
		params.AcceptSelector = scanAcceptSelector
		if err := params.Validate(); err != nil {
			log.Fatal().Err(err).Msg("Invalid scan parameters")
		}

		result, err := components.Executor.Execute(context.Background(), scan.Request{
			Domain: scanURL,
			Mode:   scanMode,
			Params: params,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Scan failed")
		}
		fmt.Printf("scan %s finished: %d cookies across %d pages\n", result.ID, result.TotalCookies, result.PageCount)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanURL, "url", "", "URL to scan")
	scanCmd.Flags().StringVar(&scanMode, "mode", scan.ModeQuick, "Scan mode: quick or deep")
	scanCmd.Flags().IntVar(&scanDepth, "depth", 0, "Link depth for deep scans")
	scanCmd.Flags().IntVar(&scanMaxPages, "max-pages", 0, "Page cap for deep scans")
	scanCmd.Flags().StringVar(&scanAcceptSelector, "accept-selector", "", "CSS selector of the consent accept button")
	rootCmd.AddCommand(scanCmd)
}
