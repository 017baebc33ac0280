package cmd

import (
	"github.com/consentry/consentry/api"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Starts the API server",
	Run: func(cmd *cobra.Command, args []string) {
		if err := api.StartAPI(); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
}
