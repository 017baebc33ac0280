package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/robfig/cron/v3"
)

// TimeConfig carries the frequency-specific firing time of a schedule. Which
// fields are required depends on the frequency.
type TimeConfig struct {
	Minute     int    `json:"minute"`
	Hour       *int   `json:"hour,omitempty"`
	DayOfWeek  string `json:"day_of_week,omitempty"`
	Day        *int   `json:"day,omitempty"`
	Expression string `json:"expression,omitempty"`
}

var weekdays = map[string]int{
	"sunday": 0, "sun": 0,
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
}

// ParseDayOfWeek accepts long and short English day names, case-insensitively.
func ParseDayOfWeek(name string) (int, error) {
	day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("invalid day of week: %q", name)
	}
	return day, nil
}

// CoerceMonthlyDay applies the last-day policy: a configured day of 28 or
// above means "last day of the month" so the schedule fires every month,
// February included.
func CoerceMonthlyDay(day int) (coerced int, lastDay bool) {
	if day >= 28 {
		return 28, true
	}
	return day, false
}

// IsLastDayOfMonth reports whether t falls on the final day of its month.
func IsLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Month() != t.Month()
}

func ParseTimeConfig(raw []byte) (*TimeConfig, error) {
	var tc TimeConfig
	if err := json.Unmarshal(raw, &tc); err != nil {
		return nil, fmt.Errorf("invalid time config: %w", err)
	}
	return &tc, nil
}

// Validate checks the frequency-specific required fields. Schedules failing
// this are rejected at creation and skipped by the dispatcher.
func (tc *TimeConfig) Validate(frequency db.ScheduleFrequency) error {
	if tc.Minute < 0 || tc.Minute > 59 {
		return fmt.Errorf("minute must be within 0-59, got %d", tc.Minute)
	}
	switch frequency {
	case db.FrequencyHourly:
		return nil
	case db.FrequencyDaily:
		return tc.validateHour()
	case db.FrequencyWeekly:
		if err := tc.validateHour(); err != nil {
			return err
		}
		if _, err := ParseDayOfWeek(tc.DayOfWeek); err != nil {
			return err
		}
		return nil
	case db.FrequencyMonthly:
		if err := tc.validateHour(); err != nil {
			return err
		}
		if tc.Day == nil || *tc.Day < 1 || *tc.Day > 31 {
			return fmt.Errorf("monthly schedule requires day within 1-31")
		}
		return nil
	case db.FrequencyCustom:
		if tc.Expression == "" {
			return fmt.Errorf("custom schedule requires a cron expression")
		}
		if _, err := cron.ParseStandard(tc.Expression); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", tc.Expression, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency: %s", frequency)
	}
}

func (tc *TimeConfig) validateHour() error {
	if tc.Hour == nil || *tc.Hour < 0 || *tc.Hour > 23 {
		return fmt.Errorf("hour must be within 0-23")
	}
	return nil
}

// Trigger is the cron translation of one schedule. When LastDayOnly is set
// the expression fires daily in the 28-31 window and the dispatcher must
// additionally require the last day of the month.
type Trigger struct {
	Expression  string
	LastDayOnly bool
}

// BuildTrigger translates a frequency plus time config into a cron trigger.
func BuildTrigger(frequency db.ScheduleFrequency, tc *TimeConfig) (*Trigger, error) {
	if err := tc.Validate(frequency); err != nil {
		return nil, err
	}
	switch frequency {
	case db.FrequencyHourly:
		return &Trigger{Expression: fmt.Sprintf("%d * * * *", tc.Minute)}, nil
	case db.FrequencyDaily:
		return &Trigger{Expression: fmt.Sprintf("%d %d * * *", tc.Minute, *tc.Hour)}, nil
	case db.FrequencyWeekly:
		day, err := ParseDayOfWeek(tc.DayOfWeek)
		if err != nil {
			return nil, err
		}
		return &Trigger{Expression: fmt.Sprintf("%d %d * * %d", tc.Minute, *tc.Hour, day)}, nil
	case db.FrequencyMonthly:
		day, lastDay := CoerceMonthlyDay(*tc.Day)
		if lastDay {
			// Fire every day of the 28-31 window; the dispatcher drops
			// firings that are not the month's final day.
			return &Trigger{Expression: fmt.Sprintf("%d %d 28-31 * *", tc.Minute, *tc.Hour), LastDayOnly: true}, nil
		}
		return &Trigger{Expression: fmt.Sprintf("%d %d %d * *", tc.Minute, *tc.Hour, day)}, nil
	case db.FrequencyCustom:
		return &Trigger{Expression: tc.Expression}, nil
	default:
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
}

// NextRun computes the next firing after from, honoring last-day coercion.
func (t *Trigger) NextRun(from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(t.Expression)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(from)
	if t.LastDayOnly {
		for i := 0; i < 8 && !IsLastDayOfMonth(next); i++ {
			next = sched.Next(next)
		}
	}
	return next, nil
}
