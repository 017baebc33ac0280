package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/pkg/schedule"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
)

// CoordinatorStore is the repository surface the coordinator needs.
type CoordinatorStore interface {
	GetScheduleByID(id uint) (*db.Schedule, error)
	AcquireLock(key string, ttl time.Duration) (string, error)
	ReleaseLock(key, token string) (bool, error)
	ExtendLock(key, token string, ttl time.Duration) (bool, error)
	StartJobExecution(item *db.Schedule, jobID string) (*db.JobExecution, error)
	CompleteJobExecution(id uint, status db.JobExecutionStatus, scanID *uuid.UUID, errMessage *string, errDetails datatypes.JSON) error
	UpdateScheduleRunStatus(id uint, lastRun time.Time, nextRun *time.Time, status string) error
}

// ScanRunner runs one scan; the executor implements it.
type ScanRunner interface {
	Execute(ctx context.Context, req Request) (*db.ScanResult, error)
}

// Coordinator glues one trigger firing to one scan run: distributed lock,
// job execution audit row, executor invocation, schedule bookkeeping.
type Coordinator struct {
	store    CoordinatorStore
	executor ScanRunner
	lockTTL  time.Duration
}

func NewCoordinator(store CoordinatorStore, executor ScanRunner) *Coordinator {
	ttl := time.Duration(viper.GetInt("scheduler.lock.ttl")) * time.Second
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Coordinator{
		store:    store,
		executor: executor,
		lockTTL:  ttl,
	}
}

// RunSchedule executes one firing of a schedule. A lock miss means another
// replica owns this firing and is not an error. Implements the dispatcher's
// Runner.
func (c *Coordinator) RunSchedule(scheduleID uint) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Uint("schedule", scheduleID).Msg("Schedule run panicked")
		}
	}()

	item, err := c.store.GetScheduleByID(scheduleID)
	if err != nil {
		log.Error().Err(err).Uint("schedule", scheduleID).Msg("Could not load schedule for firing")
		return
	}
	if !item.Enabled {
		log.Debug().Uint("schedule", scheduleID).Msg("Schedule disabled since trigger installation, skipping")
		return
	}

	key := db.LockKeyForSchedule(scheduleID)
	token, err := c.store.AcquireLock(key, c.lockTTL)
	if err != nil {
		log.Error().Err(err).Uint("schedule", scheduleID).Msg("Lock acquisition failed")
		return
	}
	if token == "" {
		log.Debug().Uint("schedule", scheduleID).Msg("Schedule locked by another replica, skipping firing")
		return
	}
	defer func() {
		if _, err := c.store.ReleaseLock(key, token); err != nil {
			log.Warn().Err(err).Uint("schedule", scheduleID).Msg("Lock release failed")
		}
	}()
	defer c.heartbeat(key, token, scheduleID)()

	execution, err := c.store.StartJobExecution(item, uuid.NewString())
	if err != nil {
		return
	}

	params, err := db.ParseScanParams(item.ScanParams)
	if err != nil {
		c.finish(item, execution.ID, db.JobExecutionFailed, nil, fmt.Errorf("invalid scan params: %w", err))
		return
	}

	result, err := c.executor.Execute(context.Background(), Request{
		DomainConfigID: item.DomainConfigID,
		Domain:         item.Domain,
		Mode:           string(item.ScanType),
		Params:         params,
	})

	var scanID *uuid.UUID
	if result != nil {
		id := result.ID
		scanID = &id
	}
	if err != nil {
		c.finish(item, execution.ID, db.JobExecutionFailed, scanID, err)
		return
	}
	if result != nil && result.Status == db.ScanStatusCancelled {
		c.finish(item, execution.ID, db.JobExecutionCancelled, scanID, nil)
		return
	}
	c.finish(item, execution.ID, db.JobExecutionSuccess, scanID, nil)
}

// heartbeat renews the lock TTL while the run is in flight so scans longer
// than the TTL are not stolen by a peer. The returned func stops it.
func (c *Coordinator) heartbeat(key, token string, scheduleID uint) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				held, err := c.store.ExtendLock(key, token, c.lockTTL)
				if err != nil {
					log.Warn().Err(err).Uint("schedule", scheduleID).Msg("Lock extension failed")
					continue
				}
				if !held {
					log.Warn().Uint("schedule", scheduleID).Msg("Lock lost during run, stopping heartbeat")
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// finish records the execution outcome and updates the schedule's run
// bookkeeping, including the next fire time.
func (c *Coordinator) finish(item *db.Schedule, executionID uint, status db.JobExecutionStatus, scanID *uuid.UUID, runErr error) {
	var errMessage *string
	var errDetails datatypes.JSON
	if runErr != nil {
		message := runErr.Error()
		errMessage = &message
		if details, err := json.Marshal(map[string]string{"error": message}); err == nil {
			errDetails = datatypes.JSON(details)
		}
	}
	if err := c.store.CompleteJobExecution(executionID, status, scanID, errMessage, errDetails); err != nil {
		log.Error().Err(err).Uint("execution", executionID).Msg("Could not complete job execution")
	}

	now := time.Now().UTC()
	nextRun := c.nextRun(item, now)
	if err := c.store.UpdateScheduleRunStatus(item.ID, now, nextRun, string(status)); err != nil {
		log.Error().Err(err).Uint("schedule", item.ID).Msg("Could not update schedule run status")
	}
}

func (c *Coordinator) nextRun(item *db.Schedule, now time.Time) *time.Time {
	tc, err := schedule.ParseTimeConfig(item.TimeConfig)
	if err != nil {
		return nil
	}
	trigger, err := schedule.BuildTrigger(item.Frequency, tc)
	if err != nil {
		return nil
	}
	next, err := trigger.NextRun(now)
	if err != nil {
		return nil
	}
	return &next
}
