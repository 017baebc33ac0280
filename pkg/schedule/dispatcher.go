package schedule

import (
	"sync"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/viper"
)

// Runner receives trigger firings. The scan coordinator implements it.
type Runner interface {
	RunSchedule(scheduleID uint)
}

type trigger struct {
	entryID      cron.EntryID
	sched        cron.Schedule
	lastDayOnly  bool
	expectedNext time.Time
	inFlight     bool
	mu           sync.Mutex
}

// Dispatcher owns exactly one cron trigger per enabled schedule and submits
// firings to a bounded worker pool. The distributed lock, not the dispatcher,
// is the authority on cross-replica exclusivity; the local in-flight flag
// only caps one instance per schedule per process.
type Dispatcher struct {
	cron     *cron.Cron
	runner   Runner
	workers  *pool.Pool
	grace    time.Duration
	mu       sync.Mutex
	triggers map[uint]*trigger
}

func NewDispatcher(runner Runner) *Dispatcher {
	maxWorkers := viper.GetInt("scheduler.max_workers")
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	grace := time.Duration(viper.GetInt("scheduler.misfire_grace")) * time.Second
	if grace <= 0 {
		grace = 300 * time.Second
	}
	return &Dispatcher{
		cron:     cron.New(),
		runner:   runner,
		workers:  pool.New().WithMaxGoroutines(maxWorkers),
		grace:    grace,
		triggers: make(map[uint]*trigger),
	}
}

func (d *Dispatcher) Start() {
	d.cron.Start()
	log.Info().Msg("Cron dispatcher started")
}

func (d *Dispatcher) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
	d.workers.Wait()
	log.Info().Msg("Cron dispatcher stopped")
}

// Apply reconciles the dispatcher's triggers with a watcher diff.
func (d *Dispatcher) Apply(diff Diff) {
	for _, item := range diff.Added {
		d.install(item)
	}
	for _, item := range diff.Modified {
		d.uninstall(item.ID)
		d.install(item)
	}
	for _, id := range diff.Removed {
		d.uninstall(id)
	}
}

// HasTrigger reports whether a trigger is currently installed for the
// schedule. Disabled schedules never have one.
func (d *Dispatcher) HasTrigger(scheduleID uint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.triggers[scheduleID]
	return ok
}

func (d *Dispatcher) install(item *db.Schedule) {
	if !item.Enabled {
		return
	}
	tc, err := ParseTimeConfig(item.TimeConfig)
	if err != nil {
		log.Warn().Err(err).Uint("schedule", item.ID).Str("domain", item.Domain).Msg("Skipping schedule with invalid time config")
		return
	}
	built, err := BuildTrigger(item.Frequency, tc)
	if err != nil {
		log.Warn().Err(err).Uint("schedule", item.ID).Str("domain", item.Domain).Msg("Skipping schedule with invalid trigger")
		return
	}
	sched, err := cron.ParseStandard(built.Expression)
	if err != nil {
		log.Warn().Err(err).Uint("schedule", item.ID).Str("expression", built.Expression).Msg("Skipping schedule with unparseable expression")
		return
	}

	t := &trigger{
		sched:        sched,
		lastDayOnly:  built.LastDayOnly,
		expectedNext: sched.Next(time.Now()),
	}
	scheduleID := item.ID
	entryID, err := d.cron.AddFunc(built.Expression, func() {
		d.fire(scheduleID, t)
	})
	if err != nil {
		log.Error().Err(err).Uint("schedule", item.ID).Msg("Could not register cron trigger")
		return
	}
	t.entryID = entryID

	d.mu.Lock()
	d.triggers[item.ID] = t
	d.mu.Unlock()

	log.Info().
		Uint("schedule", item.ID).
		Str("domain", item.Domain).
		Str("expression", built.Expression).
		Bool("last_day_only", built.LastDayOnly).
		Msg("Cron trigger installed")
}

func (d *Dispatcher) uninstall(scheduleID uint) {
	d.mu.Lock()
	t, ok := d.triggers[scheduleID]
	if ok {
		delete(d.triggers, scheduleID)
	}
	d.mu.Unlock()
	if !ok {
		return
	}
	d.cron.Remove(t.entryID)
	log.Info().Uint("schedule", scheduleID).Msg("Cron trigger removed")
}

func (d *Dispatcher) fire(scheduleID uint, t *trigger) {
	now := time.Now()

	t.mu.Lock()
	expected := t.expectedNext
	t.expectedNext = t.sched.Next(now)
	if t.lastDayOnly && !IsLastDayOfMonth(now) {
		t.mu.Unlock()
		return
	}
	if !expected.IsZero() && now.Sub(expected) > d.grace {
		t.mu.Unlock()
		log.Warn().
			Uint("schedule", scheduleID).
			Time("expected", expected).
			Dur("late_by", now.Sub(expected)).
			Msg("Dropping misfired trigger beyond grace window")
		return
	}
	if t.inFlight {
		t.mu.Unlock()
		log.Debug().Uint("schedule", scheduleID).Msg("Skipping firing, previous run still in flight")
		return
	}
	t.inFlight = true
	t.mu.Unlock()

	d.workers.Go(func() {
		defer func() {
			t.mu.Lock()
			t.inFlight = false
			t.mu.Unlock()
		}()
		d.runner.RunSchedule(scheduleID)
	})
}

// RegisterMaintenance installs the daily retention job pruning old job
// executions.
func (d *Dispatcher) RegisterMaintenance(conn *db.DatabaseConnection) {
	retentionDays := viper.GetInt("scheduler.history.retention_days")
	if retentionDays <= 0 {
		return
	}
	_, err := d.cron.AddFunc("30 3 * * *", func() {
		pruneOldExecutions(conn.PruneJobExecutions, retentionDays)
	})
	if err != nil {
		log.Error().Err(err).Msg("Could not register job execution retention task")
	}
}

func pruneOldExecutions(prune func(time.Duration) (int64, error), retentionDays int) {
	pruned, err := prune(time.Duration(retentionDays) * 24 * time.Hour)
	if err != nil {
		log.Error().Err(err).Int("retention_days", retentionDays).Msg("Job execution pruning failed")
		return
	}
	if pruned > 0 {
		log.Info().Int64("pruned", pruned).Int("retention_days", retentionDays).Msg("Pruned old job executions")
	}
}
