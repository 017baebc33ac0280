package db

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

type ScheduleFrequency string

const (
	FrequencyHourly  ScheduleFrequency = "hourly"
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
	FrequencyCustom  ScheduleFrequency = "custom"
)

type ScanType string

const (
	ScanTypeQuick ScanType = "quick"
	ScanTypeDeep  ScanType = "deep"
)

// Schedule represents a recurring intent to scan one domain.
type Schedule struct {
	BaseModel
	DomainConfigID string            `gorm:"index" json:"domain_config_id"`
	Domain         string            `gorm:"index" json:"domain"`
	ScanType       ScanType          `json:"scan_type"`
	ScanParams     datatypes.JSON    `json:"scan_params"`
	Frequency      ScheduleFrequency `json:"frequency"`
	TimeConfig     datatypes.JSON    `json:"time_config"`
	Enabled        bool              `gorm:"index" json:"enabled"`
	NextRun        *time.Time        `json:"next_run"`
	LastRun        *time.Time        `json:"last_run"`
	LastStatus     string            `json:"last_status"`
	ProfileID      *string           `json:"profile_id"`
}

type ScheduleFilter struct {
	EnabledOnly    bool   `json:"enabled_only"`
	DomainConfigID string `json:"domain_config_id" validate:"omitempty,ascii"`
	Query          string `json:"query" validate:"omitempty,ascii"`
	Pagination     Pagination
}

func (d *DatabaseConnection) CreateSchedule(item *Schedule) (*Schedule, error) {
	result := d.db.Create(&item)
	if result.Error != nil {
		log.Error().Err(result.Error).Str("domain", item.Domain).Msg("Schedule creation failed")
	}
	return item, result.Error
}

func (d *DatabaseConnection) GetScheduleByID(id uint) (*Schedule, error) {
	var item Schedule
	err := d.db.Where("id = ?", id).First(&item).Error
	return &item, err
}

// ListSchedules returns schedules ordered by domain then creation time so
// repeated listings are stable.
func (d *DatabaseConnection) ListSchedules(filter ScheduleFilter) (items []*Schedule, count int64, err error) {
	query := d.db.Model(&Schedule{})
	if filter.EnabledOnly {
		query = query.Where("enabled = ?", true)
	}
	if filter.DomainConfigID != "" {
		query = query.Where("domain_config_id = ?", filter.DomainConfigID)
	}
	if filter.Query != "" {
		query = query.Where("domain LIKE ?", "%"+filter.Query+"%")
	}
	query.Count(&count)
	err = query.Order("domain asc, created_at asc").Scopes(Paginate(&filter.Pagination)).Find(&items).Error
	return items, count, err
}

// ListAllSchedules returns every schedule, including disabled ones, without
// pagination. The schedule watcher uses this for its diff pass.
func (d *DatabaseConnection) ListAllSchedules() (items []*Schedule, err error) {
	err = d.db.Order("domain asc, created_at asc").Find(&items).Error
	return items, err
}

func (d *DatabaseConnection) ListSchedulesByDomainConfigID(domainConfigID string) (items []*Schedule, err error) {
	err = d.db.Where("domain_config_id = ?", domainConfigID).Order("created_at asc").Find(&items).Error
	return items, err
}

func (d *DatabaseConnection) GetScheduleByDomainConfigID(domainConfigID string) (*Schedule, error) {
	var item Schedule
	err := d.db.Where("domain_config_id = ?", domainConfigID).First(&item).Error
	return &item, err
}

// UpdateSchedule applies a partial update. Fields absent from the map are
// untouched; updated_at is always bumped by gorm.
func (d *DatabaseConnection) UpdateSchedule(id uint, fields map[string]interface{}) (bool, error) {
	result := d.db.Model(&Schedule{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("schedule", id).Msg("Schedule update failed")
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateScheduleRunStatus is written by the scan coordinator on completion.
func (d *DatabaseConnection) UpdateScheduleRunStatus(id uint, lastRun time.Time, nextRun *time.Time, status string) error {
	fields := map[string]interface{}{
		"last_run":    lastRun,
		"last_status": status,
	}
	if nextRun != nil {
		fields["next_run"] = *nextRun
	}
	result := d.db.Model(&Schedule{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("schedule", id).Msg("Schedule run status update failed")
	}
	return result.Error
}

func (d *DatabaseConnection) DeleteSchedule(id uint) (bool, error) {
	result := d.db.Unscoped().Delete(&Schedule{}, id)
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("schedule", id).Msg("Schedule deletion failed")
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
