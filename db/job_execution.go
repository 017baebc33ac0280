package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

type JobExecutionStatus string

const (
	JobExecutionStarted   JobExecutionStatus = "started"
	JobExecutionSuccess   JobExecutionStatus = "success"
	JobExecutionFailed    JobExecutionStatus = "failed"
	JobExecutionCancelled JobExecutionStatus = "cancelled"
)

// JobExecution is the audit record of one attempt to run one schedule. One
// row is inserted when the coordinator takes the lock and updated once on
// completion.
type JobExecution struct {
	BaseModel
	ScheduleID      uint               `gorm:"index" json:"schedule_id"`
	Schedule        Schedule           `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	JobID           string             `json:"job_id"`
	Domain          string             `json:"domain"`
	DomainConfigID  string             `gorm:"index" json:"domain_config_id"`
	Status          JobExecutionStatus `gorm:"index" json:"status"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     *time.Time         `json:"completed_at"`
	DurationSeconds float64            `json:"duration_seconds"`
	ScanID          *uuid.UUID         `gorm:"type:uuid" json:"scan_id"`
	ErrorMessage    *string            `json:"error_message"`
	ErrorDetails    datatypes.JSON     `json:"error_details"`
	Metadata        datatypes.JSON     `json:"metadata"`
}

func (d *DatabaseConnection) StartJobExecution(schedule *Schedule, jobID string) (*JobExecution, error) {
	item := &JobExecution{
		ScheduleID:     schedule.ID,
		JobID:          jobID,
		Domain:         schedule.Domain,
		DomainConfigID: schedule.DomainConfigID,
		Status:         JobExecutionStarted,
		StartedAt:      time.Now().UTC(),
	}
	result := d.db.Create(&item)
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("schedule", schedule.ID).Msg("Job execution creation failed")
	}
	return item, result.Error
}

// CompleteJobExecution records the terminal state of an execution attempt.
func (d *DatabaseConnection) CompleteJobExecution(id uint, status JobExecutionStatus, scanID *uuid.UUID, errMessage *string, errDetails datatypes.JSON) error {
	completed := time.Now().UTC()
	var item JobExecution
	if err := d.db.Where("id = ?", id).First(&item).Error; err != nil {
		return err
	}
	fields := map[string]interface{}{
		"status":           status,
		"completed_at":     completed,
		"duration_seconds": completed.Sub(item.StartedAt).Seconds(),
	}
	if scanID != nil {
		fields["scan_id"] = *scanID
	}
	if errMessage != nil {
		fields["error_message"] = *errMessage
	}
	if errDetails != nil {
		fields["error_details"] = errDetails
	}
	result := d.db.Model(&JobExecution{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("execution", id).Msg("Job execution update failed")
	}
	return result.Error
}

func (d *DatabaseConnection) ListJobExecutions(scheduleID uint, pagination Pagination) (items []*JobExecution, count int64, err error) {
	query := d.db.Model(&JobExecution{})
	if scheduleID > 0 {
		query = query.Where("schedule_id = ?", scheduleID)
	}
	query.Count(&count)
	err = query.Order("started_at desc").Scopes(Paginate(&pagination)).Find(&items).Error
	return items, count, err
}

// PruneJobExecutions deletes executions older than the retention window.
func (d *DatabaseConnection) PruneJobExecutions(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result := d.db.Unscoped().Where("started_at < ?", cutoff).Delete(&JobExecution{})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Job execution pruning failed")
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
