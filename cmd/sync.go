package cmd

import (
	"fmt"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/pkg/schedule"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// syncCmd pulls the external schedule source once and upserts its records.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Syncs schedules from the external schedule source",
	Run: func(cmd *cobra.Command, args []string) {
		records, err := schedule.FetchExternalRecords()
		if err != nil {
			log.Fatal().Err(err).Msg("Could not fetch external schedule source")
		}
		result, err := schedule.SyncFromExternal(db.Connection, records)
		if err != nil {
			log.Fatal().Err(err).Msg("Schedule sync failed")
		}
		fmt.Printf("created=%d updated=%d skipped=%d\n", result.Created, result.Updated, result.Skipped)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
