package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/pkg/schedule"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FindSchedules lists schedules, optionally filtered by enabled state,
// domain_config_id or a domain substring.
func FindSchedules(c *fiber.Ctx) error {
	filter := db.ScheduleFilter{
		EnabledOnly:    c.QueryBool("enabled_only", false),
		DomainConfigID: c.Query("domain_config_id"),
		Query:          c.Query("query"),
		Pagination: db.Pagination{
			Page:     c.QueryInt("page", 1),
			PageSize: c.QueryInt("page_size", 50),
		},
	}
	items, count, err := db.Connection.ListSchedules(filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": items, "count": count})
}

// ScheduleInput is the acceptable input for creating or updating a schedule.
type ScheduleInput struct {
	DomainConfigID string               `json:"domain_config_id"`
	Domain         string               `json:"domain"`
	ScanType       db.ScanType          `json:"scan_type"`
	ScanParams     *db.ScanParams       `json:"scan_params"`
	Frequency      db.ScheduleFrequency `json:"frequency"`
	TimeConfig     *schedule.TimeConfig `json:"time_config"`
	Enabled        *bool                `json:"enabled"`
	ProfileID      *string              `json:"profile_id"`
}

func (input *ScheduleInput) validate() error {
	if input.Domain == "" {
		return fiber.NewError(fiber.StatusBadRequest, "domain is required")
	}
	if input.ScanType != db.ScanTypeQuick && input.ScanType != db.ScanTypeDeep {
		return fiber.NewError(fiber.StatusBadRequest, "scan_type must be quick or deep")
	}
	if input.TimeConfig == nil {
		return fiber.NewError(fiber.StatusBadRequest, "time_config is required")
	}
	if err := input.TimeConfig.Validate(input.Frequency); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if input.ScanParams != nil {
		if err := input.ScanParams.Validate(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	return nil
}

func CreateSchedule(c *fiber.Ctx) error {
	input := new(ScheduleInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Cannot parse JSON"})
	}
	if err := input.validate(); err != nil {
		fiberErr := err.(*fiber.Error)
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: fiberErr.Message})
	}

	timeConfigJSON, err := json.Marshal(input.TimeConfig)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	params := db.DefaultScanParams()
	if input.ScanParams != nil {
		params = *input.ScanParams
	}
	paramsJSON, err := params.ToJSON()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	enabled := true
	if input.Enabled != nil {
		enabled = *input.Enabled
	}

	item, err := db.Connection.CreateSchedule(&db.Schedule{
		DomainConfigID: input.DomainConfigID,
		Domain:         input.Domain,
		ScanType:       input.ScanType,
		ScanParams:     datatypes.JSON(paramsJSON),
		Frequency:      input.Frequency,
		TimeConfig:     datatypes.JSON(timeConfigJSON),
		Enabled:        enabled,
		ProfileID:      input.ProfileID,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": item})
}

func GetScheduleDetail(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid schedule id"})
	}
	item, err := db.Connection.GetScheduleByID(uint(id))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Schedule not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": item})
}

// UpdateSchedule applies a partial update; only provided fields change.
func UpdateSchedule(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid schedule id"})
	}
	input := new(ScheduleInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Cannot parse JSON"})
	}

	fields := make(map[string]interface{})
	if input.Domain != "" {
		fields["domain"] = input.Domain
	}
	if input.ScanType != "" {
		if input.ScanType != db.ScanTypeQuick && input.ScanType != db.ScanTypeDeep {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "scan_type must be quick or deep"})
		}
		fields["scan_type"] = input.ScanType
	}
	if input.Frequency != "" || input.TimeConfig != nil {
		// frequency and time_config are validated together
		if input.Frequency == "" || input.TimeConfig == nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "frequency and time_config must be updated together"})
		}
		if err := input.TimeConfig.Validate(input.Frequency); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		timeConfigJSON, err := json.Marshal(input.TimeConfig)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		fields["frequency"] = input.Frequency
		fields["time_config"] = datatypes.JSON(timeConfigJSON)
	}
	if input.ScanParams != nil {
		if err := input.ScanParams.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		paramsJSON, err := input.ScanParams.ToJSON()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
		}
		fields["scan_params"] = datatypes.JSON(paramsJSON)
	}
	if input.Enabled != nil {
		fields["enabled"] = *input.Enabled
	}
	if input.ProfileID != nil {
		fields["profile_id"] = *input.ProfileID
	}
	if len(fields) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "No fields to update"})
	}

	updated, err := db.Connection.UpdateSchedule(uint(id), fields)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	if !updated {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Schedule not found"})
	}
	item, err := db.Connection.GetScheduleByID(uint(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": item})
}

func DeleteSchedule(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid schedule id"})
	}
	deleted, err := db.Connection.DeleteSchedule(uint(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Schedule not found"})
	}
	return c.Status(http.StatusOK).JSON(MessageResponse{Message: "Schedule deleted"})
}

// SyncSchedules pulls the external schedule source and upserts its records.
func SyncSchedules(c *fiber.Ctx) error {
	records, err := schedule.FetchExternalRecords()
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}
	result, err := schedule.SyncFromExternal(db.Connection, records)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": result})
}

// FindJobExecutions lists the execution history of one schedule.
func FindJobExecutions(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "Invalid schedule id"})
	}
	pagination := db.Pagination{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 50),
	}
	items, count, err := db.Connection.ListJobExecutions(uint(id), pagination)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": items, "count": count})
}
