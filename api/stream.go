package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/pkg/scan/progress"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
)

// streamFrame is one SSE frame. The timestamp is serialised as ISO-8601 by
// encoding/json's RFC 3339 default.
type streamFrame struct {
	ScanID             string        `json:"scan_id"`
	Status             db.ScanStatus `json:"status"`
	CurrentPage        string        `json:"current_page,omitempty"`
	PagesVisited       int           `json:"pages_visited"`
	CookiesFound       int           `json:"cookies_found"`
	ProgressPercentage float64       `json:"progress_percentage"`
	Message            string        `json:"message,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
}

// StreamScanProgress serves the live progress of one scan as server-sent
// events. The latest snapshot is emitted every poll interval until the scan
// reaches a terminal status or the client disconnects.
func StreamScanProgress(c *fiber.Ctx) error {
	scanID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid scan id"})
	}
	bus := c.Locals("progress_bus").(*progress.Bus)

	pollInterval := time.Duration(viper.GetInt("api.stream.poll_interval")) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	// tells nginx style proxies not to buffer the stream
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		id := scanID.String()
		for {
			frame, status, ok := latestFrame(bus, scanID)
			if !ok {
				fmt.Fprintf(w, "event: error\ndata: {\"error\": \"scan not found\"}\n\n")
				w.Flush()
				return
			}

			payload, err := json.Marshal(frame)
			if err != nil {
				log.Error().Err(err).Str("scan", id).Msg("Progress frame serialisation failed")
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			if err := w.Flush(); err != nil {
				// client disconnected, the scan itself continues
				log.Debug().Str("scan", id).Msg("Progress stream consumer disconnected")
				return
			}

			if status.IsTerminal() {
				fmt.Fprintf(w, "event: close\ndata: {\"status\": \"%s\"}\n\n", status)
				w.Flush()
				return
			}
			time.Sleep(pollInterval)
		}
	}))
	return nil
}

// latestFrame reads the bus first and falls back to the persisted scan row,
// covering scans that finished before the consumer subscribed.
func latestFrame(bus *progress.Bus, scanID uuid.UUID) (streamFrame, db.ScanStatus, bool) {
	if snapshot, ok := bus.Latest(scanID.String()); ok {
		return streamFrame{
			ScanID:             snapshot.ScanID,
			Status:             snapshot.Status,
			CurrentPage:        snapshot.CurrentPage,
			PagesVisited:       snapshot.PagesVisited,
			CookiesFound:       snapshot.CookiesFound,
			ProgressPercentage: snapshot.ProgressPercentage,
			Message:            snapshot.Message,
			Timestamp:          snapshot.Timestamp,
		}, snapshot.Status, true
	}

	item, err := db.Connection.GetScanResultByID(scanID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error().Err(err).Str("scan", scanID.String()).Msg("Scan lookup for stream failed")
		}
		return streamFrame{}, "", false
	}
	percent := 0.0
	if item.Status.IsTerminal() {
		percent = 100
	}
	return streamFrame{
		ScanID:             item.ID.String(),
		Status:             item.Status,
		PagesVisited:       item.PageCount,
		CookiesFound:       item.TotalCookies,
		ProgressPercentage: percent,
		Timestamp:          time.Now().UTC(),
	}, item.Status, true
}
