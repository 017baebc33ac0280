package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SchedulerLock backs the distributed per-schedule lock. A row is a held
// lock; expired rows count as free and may be claimed by any replica.
type SchedulerLock struct {
	LockKey   string    `gorm:"primaryKey;size:255" json:"lock_key"`
	Token     string    `gorm:"size:64" json:"token"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LockKeyForSchedule builds the shared key namespace for schedule locks.
func LockKeyForSchedule(scheduleID uint) string {
	return fmt.Sprintf("scheduler:lock:%d", scheduleID)
}

// AcquireLock attempts a non-blocking claim of the named resource. It returns
// the holder token on success and an empty string when the lock is held by a
// live peer. The claim is a single atomic insert-or-steal-expired statement
// so two replicas can never both win.
func (d *DatabaseConnection) AcquireLock(key string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	now := time.Now().UTC()
	lock := SchedulerLock{
		LockKey:   key,
		Token:     token,
		ExpiresAt: now.Add(ttl),
	}
	result := d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lock_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"token":      token,
			"expires_at": now.Add(ttl),
			"updated_at": now,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("scheduler_locks.expires_at < ?", now),
		}},
	}).Create(&lock)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", nil
	}
	return token, nil
}

// ReleaseLock is a compare-and-delete: only the holder of token releases.
// Releasing with a stale token is a no-op.
func (d *DatabaseConnection) ReleaseLock(key, token string) (bool, error) {
	result := d.db.Where("lock_key = ? AND token = ?", key, token).Delete(&SchedulerLock{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExtendLock renews the TTL if token still holds the lock. Idempotent.
func (d *DatabaseConnection) ExtendLock(key, token string, ttl time.Duration) (bool, error) {
	result := d.db.Model(&SchedulerLock{}).
		Where("lock_key = ? AND token = ?", key, token).
		Update("expires_at", time.Now().UTC().Add(ttl))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
