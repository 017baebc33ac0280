package api

import (
	"context"
	"net/http"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/pkg/scan"
	"github.com/consentry/consentry/pkg/scan/progress"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ScanInput is the acceptable input for triggering a scan via the API.
type ScanInput struct {
	DomainConfigID string         `json:"domain_config_id"`
	Domain         string         `json:"domain"`
	Mode           string         `json:"mode"`
	ScanParams     *db.ScanParams `json:"scan_params"`
}

// CreateScan starts a scan in the background and returns the pending scan
// row immediately. Clients follow progress on the stream endpoint.
func CreateScan(c *fiber.Ctx) error {
	input := new(ScanInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Cannot parse JSON"})
	}
	if input.Domain == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "domain is required"})
	}
	mode := input.Mode
	if mode == "" {
		mode = scan.ModeQuick
	}
	if mode != scan.ModeQuick && mode != scan.ModeDeep && mode != scan.ModeRealtime {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "mode must be quick, deep or realtime"})
	}
	params := db.DefaultScanParams()
	if input.ScanParams != nil {
		params = *input.ScanParams
		if err := params.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
	}

	executor := c.Locals("executor").(*scan.Executor)
	gate := c.Locals("scan_gate").(chan struct{})

	select {
	case gate <- struct{}{}:
	default:
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "Scan concurrency limit reached"})
	}

	req := scan.Request{
		DomainConfigID: input.DomainConfigID,
		Domain:         input.Domain,
		Mode:           mode,
		Params:         params,
	}
	result, err := executor.Begin(req)
	if err != nil {
		<-gate
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	// the goroutine mutates result while it runs, respond from a copy
	response := *result
	go func() {
		defer func() { <-gate }()
		if _, err := executor.Run(context.Background(), result, req); err != nil {
			log.Error().Err(err).Str("domain", input.Domain).Msg("API triggered scan failed")
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": response})
}

func FindScans(c *fiber.Ctx) error {
	filter := db.ScanResultFilter{
		DomainConfigID: c.Query("domain_config_id"),
		Domain:         c.Query("domain"),
		Pagination: db.Pagination{
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", 50),
		},
	}
	if status := c.Query("status"); status != "" {
		filter.Statuses = []string{status}
	}
	items, count, err := db.Connection.ListScanResults(filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": items, "count": count})
}

func GetScanDetail(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid scan id"})
	}
	item, err := db.Connection.GetScanResultByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Scan not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": item})
}

func FindScanCookies(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid scan id"})
	}
	pagination := db.Pagination{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 100),
	}
	items, count, err := db.Connection.ListCookiesByScanID(id, pagination)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": items, "count": count})
}

// DeleteScan cancels a pending or running scan; terminal scans are deleted
// outright together with their cookies.
func DeleteScan(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid scan id"})
	}
	item, err := db.Connection.GetScanResultByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Scan not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	if !item.Status.IsTerminal() {
		cancelled, err := db.Connection.MarkScanCancelled(id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
		}
		if cancelled {
			return c.Status(http.StatusOK).JSON(MessageResponse{Message: "Scan cancelled"})
		}
	}
	deleted, err := db.Connection.DeleteScanResult(id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Scan not found"})
	}
	c.Locals("progress_bus").(*progress.Bus).Forget(id.String())
	return c.Status(http.StatusOK).JSON(MessageResponse{Message: "Scan deleted"})
}
