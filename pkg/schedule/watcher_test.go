package schedule

import (
	"errors"
	"testing"

	"github.com/consentry/consentry/db"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

type fakeLister struct {
	items []*db.Schedule
	err   error
}

func (f *fakeLister) ListAllSchedules() ([]*db.Schedule, error) {
	return f.items, f.err
}

func makeSchedule(id uint, domain string, enabled bool, timeConfig string) *db.Schedule {
	s := &db.Schedule{
		Domain:     domain,
		Frequency:  db.FrequencyDaily,
		TimeConfig: datatypes.JSON(timeConfig),
		Enabled:    enabled,
	}
	s.ID = id
	return s
}

func TestWatcherDetectsAdded(t *testing.T) {
	store := &fakeLister{}
	w := NewWatcher(store, nil)

	diff := w.Check()
	assert.True(t, diff.Empty())

	store.items = []*db.Schedule{makeSchedule(1, "https://a.test", true, `{"hour":9,"minute":0}`)}
	diff = w.Check()
	assert.Len(t, diff.Added, 1)
	assert.Empty(t, diff.Modified)
	assert.Empty(t, diff.Removed)
}

func TestWatcherDetectsModified(t *testing.T) {
	store := &fakeLister{items: []*db.Schedule{makeSchedule(1, "https://a.test", true, `{"hour":9,"minute":0}`)}}
	w := NewWatcher(store, nil)
	w.Check()

	store.items = []*db.Schedule{makeSchedule(1, "https://a.test", true, `{"hour":10,"minute":0}`)}
	diff := w.Check()
	assert.Empty(t, diff.Added)
	assert.Len(t, diff.Modified, 1)
	assert.Empty(t, diff.Removed)

	// Disabling counts as a modification too
	store.items = []*db.Schedule{makeSchedule(1, "https://a.test", false, `{"hour":10,"minute":0}`)}
	diff = w.Check()
	assert.Len(t, diff.Modified, 1)
}

func TestWatcherDetectsRemoved(t *testing.T) {
	store := &fakeLister{items: []*db.Schedule{
		makeSchedule(1, "https://a.test", true, `{"hour":9,"minute":0}`),
		makeSchedule(2, "https://b.test", true, `{"hour":9,"minute":0}`),
	}}
	w := NewWatcher(store, nil)
	w.Check()

	store.items = store.items[:1]
	diff := w.Check()
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Modified)
	assert.Equal(t, []uint{2}, diff.Removed)
}

func TestWatcherUnchangedProducesEmptyDiff(t *testing.T) {
	store := &fakeLister{items: []*db.Schedule{makeSchedule(1, "https://a.test", true, `{"hour":9,"minute":0}`)}}
	w := NewWatcher(store, nil)
	w.Check()

	diff := w.Check()
	assert.True(t, diff.Empty())
}

func TestWatcherReadErrorKeepsState(t *testing.T) {
	store := &fakeLister{items: []*db.Schedule{makeSchedule(1, "https://a.test", true, `{"hour":9,"minute":0}`)}}
	w := NewWatcher(store, nil)
	w.Check()

	store.err = errors.New("connection lost")
	diff := w.Check()
	assert.True(t, diff.Empty())

	// Recovery does not re-emit the unchanged schedule as added
	store.err = nil
	diff = w.Check()
	assert.True(t, diff.Empty())
}
