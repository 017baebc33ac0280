package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireLockExclusive(t *testing.T) {
	key := LockKeyForSchedule(7001)

	token, err := Connection.AcquireLock(key, time.Minute)
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	// A second claim while held returns no token
	second, err := Connection.AcquireLock(key, time.Minute)
	assert.Nil(t, err)
	assert.Empty(t, second)

	released, err := Connection.ReleaseLock(key, token)
	assert.Nil(t, err)
	assert.True(t, released)
}

func TestReleaseLockTokenMismatch(t *testing.T) {
	key := LockKeyForSchedule(7002)

	token, err := Connection.AcquireLock(key, time.Minute)
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	released, err := Connection.ReleaseLock(key, "not-the-token")
	assert.Nil(t, err)
	assert.False(t, released)

	released, err = Connection.ReleaseLock(key, token)
	assert.Nil(t, err)
	assert.True(t, released)

	// Releasing twice with the same token is a no-op
	released, err = Connection.ReleaseLock(key, token)
	assert.Nil(t, err)
	assert.False(t, released)
}

func TestAcquireLockExpiredIsStealable(t *testing.T) {
	key := LockKeyForSchedule(7003)

	stale, err := Connection.AcquireLock(key, -time.Second)
	assert.Nil(t, err)
	assert.NotEmpty(t, stale)

	token, err := Connection.AcquireLock(key, time.Minute)
	assert.Nil(t, err)
	assert.NotEmpty(t, token)
	assert.NotEqual(t, stale, token)

	// The previous holder can no longer release
	released, err := Connection.ReleaseLock(key, stale)
	assert.Nil(t, err)
	assert.False(t, released)

	released, err = Connection.ReleaseLock(key, token)
	assert.Nil(t, err)
	assert.True(t, released)
}

func TestExtendLock(t *testing.T) {
	key := LockKeyForSchedule(7004)

	token, err := Connection.AcquireLock(key, time.Minute)
	assert.Nil(t, err)
	assert.NotEmpty(t, token)

	extended, err := Connection.ExtendLock(key, token, 2*time.Minute)
	assert.Nil(t, err)
	assert.True(t, extended)

	extended, err = Connection.ExtendLock(key, "wrong-token", 2*time.Minute)
	assert.Nil(t, err)
	assert.False(t, extended)

	_, err = Connection.ReleaseLock(key, token)
	assert.Nil(t, err)
}
