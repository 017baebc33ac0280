package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/consentry/consentry/api"
	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/pkg/scan"
	"github.com/consentry/consentry/pkg/schedule"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// schedulerCmd runs the schedule watcher and cron dispatcher until
// interrupted.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Runs the schedule watcher and cron dispatcher",
	Run: func(cmd *cobra.Command, args []string) {
		components, err := api.BuildComponents()
		if err != nil {
			log.Fatal().Err(err).Msg("Scheduler initialization failed")
		}
		defer components.Pool.Close()

		coordinator := scan.NewCoordinator(db.Connection, components.Executor)
		dispatcher := schedule.NewDispatcher(coordinator)
		dispatcher.RegisterMaintenance(db.Connection)
		watcher := schedule.NewWatcher(db.Connection, dispatcher.Apply)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dispatcher.Start()
		log.Info().Msg("Scheduler running")
		watcher.Run(ctx)

		log.Info().Msg("Shutting down scheduler")
		dispatcher.Stop()
	},
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}
