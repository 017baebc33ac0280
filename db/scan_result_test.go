package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordScanCancellationSetsDuration(t *testing.T) {
	result, err := Connection.CreateScanResult(&ScanResult{
		DomainConfigID: "dc-cancel-duration",
		Domain:         "https://cancel-duration.test",
		ScanMode:       "quick",
		Status:         ScanStatusRunning,
		TimestampUTC:   time.Now().UTC(),
	})
	assert.Nil(t, err)

	cancelled, err := Connection.MarkScanCancelled(result.ID)
	assert.Nil(t, err)
	assert.True(t, cancelled)

	err = Connection.RecordScanCancellation(result.ID, 12.5)
	assert.Nil(t, err)

	fetched, err := Connection.GetScanResultByID(result.ID)
	assert.Nil(t, err)
	assert.Equal(t, ScanStatusCancelled, fetched.Status)
	assert.Equal(t, 12.5, fetched.DurationSeconds)
}

func TestRecordScanCancellationIgnoresNonCancelledRows(t *testing.T) {
	result, err := Connection.CreateScanResult(&ScanResult{
		DomainConfigID: "dc-cancel-guard",
		Domain:         "https://cancel-guard.test",
		ScanMode:       "quick",
		Status:         ScanStatusRunning,
		TimestampUTC:   time.Now().UTC(),
	})
	assert.Nil(t, err)

	err = Connection.RecordScanCancellation(result.ID, 7.0)
	assert.Nil(t, err)

	fetched, err := Connection.GetScanResultByID(result.ID)
	assert.Nil(t, err)
	assert.Equal(t, ScanStatusRunning, fetched.Status)
	assert.Equal(t, 0.0, fetched.DurationSeconds)
}
