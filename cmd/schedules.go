package cmd

import (
	"fmt"

	"github.com/consentry/consentry/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var schedulesEnabledOnly bool

// schedulesCmd lists the configured schedules.
var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Lists scan schedules",
	Run: func(cmd *cobra.Command, args []string) {
		items, count, err := db.Connection.ListSchedules(db.ScheduleFilter{
			EnabledOnly: schedulesEnabledOnly,
			Pagination:  db.Pagination{Page: 1, PageSize: 1000},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Could not list schedules")
		}
		for _, item := range items {
			next := "-"
			if item.NextRun != nil {
				next = item.NextRun.Format("2006-01-02 15:04")
			}
			fmt.Printf("%d\t%s\t%s\t%s\tenabled=%t\tnext=%s\n",
				item.ID, item.Domain, item.ScanType, item.Frequency, item.Enabled, next)
		}
		fmt.Printf("%d schedules\n", count)
	},
}

func init() {
	schedulesCmd.Flags().BoolVar(&schedulesEnabledOnly, "enabled-only", false, "Only show enabled schedules")
	rootCmd.AddCommand(schedulesCmd)
}
