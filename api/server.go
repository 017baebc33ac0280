package api

import (
	"fmt"
	"strings"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/internal/browser"
	"github.com/consentry/consentry/pkg/classify"
	"github.com/consentry/consentry/pkg/scan"
	"github.com/consentry/consentry/pkg/scan/progress"
	"github.com/gofiber/contrib/fiberzerolog"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Components holds the shared scan machinery the handlers use.
type Components struct {
	Executor *scan.Executor
	Bus      *progress.Bus
	Pool     *browser.Pool
}

// BuildComponents wires the browser pool, classifier cascade, progress bus
// and executor from configuration.
func BuildComponents() (*Components, error) {
	classifier, err := classify.NewClassifierFromSettings(db.Connection)
	if err != nil {
		return nil, err
	}
	pool := browser.NewPool(browser.PoolConfigFromSettings())
	pool.Start()
	bus := progress.NewBus()
	return &Components{
		Executor: scan.NewExecutor(db.Connection, pool, classifier, bus),
		Bus:      bus,
		Pool:     pool,
	}, nil
}

// StartAPI initialises the scan machinery and serves the HTTP surface.
func StartAPI() error {
	apiLogger := log.With().Str("type", "api").Logger()
	apiLogger.Info().Msg("Initializing...")

	components, err := BuildComponents()
	if err != nil {
		return err
	}
	defer components.Pool.Close()

	app := NewServer(components)

	listen := fmt.Sprintf("%s:%d", viper.GetString("api.listen.host"), viper.GetInt("api.listen.port"))
	apiLogger.Info().Str("address", listen).Msg("Starting the API")
	return app.Listen(listen)
}

// NewServer builds the fiber application with all routes registered.
func NewServer(components *Components) *fiber.App {
	apiLogger := log.With().Str("type", "api").Logger()

	app := fiber.New(fiber.Config{
		ServerHeader: "Consentry",
		AppName:      "Consentry API",
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Join(viper.GetStringSlice("api.cors.origins"), ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Content-Disposition",
	}))

	app.Use(fiberzerolog.New(fiberzerolog.Config{
		Logger: &apiLogger,
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("API Running")
	})

	maxScans := viper.GetInt("scan.concurrency.max_scans")
	if maxScans <= 0 {
		maxScans = 10
	}
	scanGate := make(chan struct{}, maxScans)

	api := app.Group("/api/v1")
	api.Use(func(c *fiber.Ctx) error {
		c.Locals("executor", components.Executor)
		c.Locals("progress_bus", components.Bus)
		c.Locals("scan_gate", scanGate)
		return c.Next()
	})

	api.Get("/schedules", FindSchedules)
	api.Post("/schedules", CreateSchedule)
	api.Post("/schedules/sync", SyncSchedules)
	api.Get("/schedules/:id", GetScheduleDetail)
	api.Put("/schedules/:id", UpdateSchedule)
	api.Delete("/schedules/:id", DeleteSchedule)
	api.Get("/schedules/:id/executions", FindJobExecutions)

	api.Get("/scans", FindScans)
	api.Post("/scans", CreateScan)
	api.Get("/scans/:id", GetScanDetail)
	api.Delete("/scans/:id", DeleteScan)
	api.Get("/scans/:id/cookies", FindScanCookies)
	api.Get("/scans/:id/stream", StreamScanProgress)

	return app
}
