package schedule

import (
	"testing"

	"github.com/consentry/consentry/db"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeSyncStore struct {
	byDomainConfig map[string]*db.Schedule
	nextID         uint
	updates        map[uint]map[string]interface{}
}

func newFakeSyncStore() *fakeSyncStore {
	return &fakeSyncStore{
		byDomainConfig: make(map[string]*db.Schedule),
		nextID:         1,
		updates:        make(map[uint]map[string]interface{}),
	}
}

func (f *fakeSyncStore) GetScheduleByDomainConfigID(domainConfigID string) (*db.Schedule, error) {
	item, ok := f.byDomainConfig[domainConfigID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (f *fakeSyncStore) CreateSchedule(item *db.Schedule) (*db.Schedule, error) {
	item.ID = f.nextID
	f.nextID++
	f.byDomainConfig[item.DomainConfigID] = item
	return item, nil
}

func (f *fakeSyncStore) UpdateSchedule(id uint, fields map[string]interface{}) (bool, error) {
	f.updates[id] = fields
	for _, item := range f.byDomainConfig {
		if item.ID == id {
			if v, ok := fields["domain"]; ok {
				item.Domain = v.(string)
			}
			if v, ok := fields["frequency"]; ok {
				item.Frequency = v.(db.ScheduleFrequency)
			}
			if v, ok := fields["time_config"]; ok {
				item.TimeConfig = v.(datatypes.JSON)
			}
			if v, ok := fields["scan_params"]; ok {
				item.ScanParams = v.(datatypes.JSON)
			}
			return true, nil
		}
	}
	return false, nil
}

func externalDaily(domainConfigID, domain string, hour int) ExternalRecord {
	var record ExternalRecord
	record.DomainConfigID = domainConfigID
	record.Data.Domain = domain
	record.Data.Schedule.Frequency = db.FrequencyDaily
	minute := 0
	record.Data.Schedule.Time = TimeConfig{Hour: &hour, Minute: minute}
	record.Data.AllowDeepScan = true
	return record
}

func TestSyncCreatesNewSchedules(t *testing.T) {
	store := newFakeSyncStore()

	result, err := SyncFromExternal(store, []ExternalRecord{
		externalDaily("cfg-1", "https://a.test", 9),
		externalDaily("cfg-2", "https://b.test", 10),
	})
	assert.Nil(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Skipped)

	created := store.byDomainConfig["cfg-1"]
	assert.NotNil(t, created)
	assert.True(t, created.Enabled)
	assert.Equal(t, db.ScanTypeDeep, created.ScanType)
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newFakeSyncStore()
	records := []ExternalRecord{externalDaily("cfg-1", "https://a.test", 9)}

	first, err := SyncFromExternal(store, records)
	assert.Nil(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := SyncFromExternal(store, records)
	assert.Nil(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Skipped)
}

func TestSyncUpdatesChangedRecords(t *testing.T) {
	store := newFakeSyncStore()

	_, err := SyncFromExternal(store, []ExternalRecord{externalDaily("cfg-1", "https://a.test", 9)})
	assert.Nil(t, err)

	changed := externalDaily("cfg-1", "https://a.test", 14)
	result, err := SyncFromExternal(store, []ExternalRecord{changed})
	assert.Nil(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)

	id := store.byDomainConfig["cfg-1"].ID
	assert.Contains(t, store.updates, id)
}

func TestSyncNeverDeletesAbsentRecords(t *testing.T) {
	store := newFakeSyncStore()

	_, err := SyncFromExternal(store, []ExternalRecord{
		externalDaily("cfg-1", "https://a.test", 9),
		externalDaily("cfg-2", "https://b.test", 10),
	})
	assert.Nil(t, err)

	_, err = SyncFromExternal(store, []ExternalRecord{externalDaily("cfg-1", "https://a.test", 9)})
	assert.Nil(t, err)
	assert.NotNil(t, store.byDomainConfig["cfg-2"])
}

func TestSyncSkipsDeepScanDisabled(t *testing.T) {
	store := newFakeSyncStore()

	record := externalDaily("cfg-1", "https://a.test", 9)
	record.Data.AllowDeepScan = false
	result, err := SyncFromExternal(store, []ExternalRecord{record})
	assert.Nil(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Nil(t, store.byDomainConfig["cfg-1"])
}

func TestSyncSkipsInvalidRecords(t *testing.T) {
	store := newFakeSyncStore()

	missingHour := externalDaily("cfg-1", "https://a.test", 9)
	missingHour.Data.Schedule.Time.Hour = nil

	noDomain := externalDaily("cfg-2", "", 9)

	result, err := SyncFromExternal(store, []ExternalRecord{missingHour, noDomain})
	assert.Nil(t, err)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Created)
}

func TestSyncCarriesScanParams(t *testing.T) {
	store := newFakeSyncStore()

	record := externalDaily("cfg-1", "https://a.test", 9)
	maxPages := 40
	depth := 2
	record.Data.MaxPages = &maxPages
	record.Data.ScanDepth = &depth
	record.Data.CustomPages = []string{"/pricing", "https://a.test/legal"}

	_, err := SyncFromExternal(store, []ExternalRecord{record})
	assert.Nil(t, err)

	params, err := db.ParseScanParams(store.byDomainConfig["cfg-1"].ScanParams)
	assert.Nil(t, err)
	assert.Equal(t, 40, *params.MaxPages)
	assert.Equal(t, 2, params.ScanDepth)
	assert.Len(t, params.CustomPages, 2)
}
