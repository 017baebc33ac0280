package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/consentry/consentry/lib"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ScheduleLister is the slice of the repository the watcher needs.
type ScheduleLister interface {
	ListAllSchedules() ([]*db.Schedule, error)
}

// Diff is the outcome of one watcher pass over the repository.
type Diff struct {
	Added    []*db.Schedule
	Modified []*db.Schedule
	Removed  []uint
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// Watcher periodically reads all schedules, hashes the scheduling-relevant
// fields and emits the changes since its previous pass. It runs on a single
// goroutine; the hash map is never shared.
type Watcher struct {
	store     ScheduleLister
	interval  time.Duration
	known     map[uint]string
	lastCheck time.Time
	onChange  func(Diff)
}

func NewWatcher(store ScheduleLister, onChange func(Diff)) *Watcher {
	interval := time.Duration(viper.GetInt("scheduler.watcher.interval")) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Watcher{
		store:    store,
		interval: interval,
		known:    make(map[uint]string),
		onChange: onChange,
	}
}

// scheduleHash covers only the fields that affect trigger installation.
func scheduleHash(s *db.Schedule) string {
	profile := ""
	if s.ProfileID != nil {
		profile = *s.ProfileID
	}
	subset := fmt.Sprintf("%s|%s|%s|%t|%s", s.Domain, s.Frequency, string(s.TimeConfig), s.Enabled, profile)
	return lib.HashBytes([]byte(subset))
}

// Check performs one diff pass. A repository read error yields an empty diff
// and leaves the known map untouched; the watcher never crashes over it.
func (w *Watcher) Check() Diff {
	items, err := w.store.ListAllSchedules()
	if err != nil {
		log.Error().Err(err).Msg("Schedule watcher could not read schedules, keeping previous state")
		return Diff{}
	}

	next := make(map[uint]string, len(items))
	var diff Diff
	for _, item := range items {
		hash := scheduleHash(item)
		next[item.ID] = hash
		previous, seen := w.known[item.ID]
		if !seen {
			diff.Added = append(diff.Added, item)
		} else if previous != hash {
			diff.Modified = append(diff.Modified, item)
		}
	}
	for id := range w.known {
		if _, stillThere := next[id]; !stillThere {
			diff.Removed = append(diff.Removed, id)
		}
	}

	w.known = next
	w.lastCheck = time.Now().UTC()
	return diff
}

// Run ticks until the context is cancelled, pushing non-empty diffs to the
// registered callback.
func (w *Watcher) Run(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Schedule watcher started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// First pass immediately so triggers exist before the first tick.
	w.dispatch(w.Check())

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Schedule watcher stopped")
			return
		case <-ticker.C:
			w.dispatch(w.Check())
		}
	}
}

func (w *Watcher) dispatch(diff Diff) {
	if diff.Empty() || w.onChange == nil {
		return
	}
	log.Info().
		Int("added", len(diff.Added)).
		Int("modified", len(diff.Modified)).
		Int("removed", len(diff.Removed)).
		Msg("Schedule changes detected")
	w.onChange(diff)
}
