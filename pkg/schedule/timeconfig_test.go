package schedule

import (
	"testing"
	"time"

	"github.com/consentry/consentry/db"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestParseDayOfWeekLongAndShortForms(t *testing.T) {
	long, err := ParseDayOfWeek("Monday")
	assert.Nil(t, err)
	short, err2 := ParseDayOfWeek("mon")
	assert.Nil(t, err2)
	assert.Equal(t, long, short)

	_, err = ParseDayOfWeek("notaday")
	assert.NotNil(t, err)
}

func TestWeeklyTriggerEquivalence(t *testing.T) {
	a, err := BuildTrigger(db.FrequencyWeekly, &TimeConfig{Minute: 0, Hour: intPtr(9), DayOfWeek: "Monday"})
	assert.Nil(t, err)
	b, err := BuildTrigger(db.FrequencyWeekly, &TimeConfig{Minute: 0, Hour: intPtr(9), DayOfWeek: "mon"})
	assert.Nil(t, err)
	assert.Equal(t, a.Expression, b.Expression)
}

func TestBuildTriggerExpressions(t *testing.T) {
	hourly, err := BuildTrigger(db.FrequencyHourly, &TimeConfig{Minute: 30})
	assert.Nil(t, err)
	assert.Equal(t, "30 * * * *", hourly.Expression)

	daily, err := BuildTrigger(db.FrequencyDaily, &TimeConfig{Minute: 0, Hour: intPtr(9)})
	assert.Nil(t, err)
	assert.Equal(t, "0 9 * * *", daily.Expression)

	monthly, err := BuildTrigger(db.FrequencyMonthly, &TimeConfig{Minute: 0, Hour: intPtr(6), Day: intPtr(15)})
	assert.Nil(t, err)
	assert.Equal(t, "0 6 15 * *", monthly.Expression)
	assert.False(t, monthly.LastDayOnly)

	custom, err := BuildTrigger(db.FrequencyCustom, &TimeConfig{Expression: "*/5 * * * *"})
	assert.Nil(t, err)
	assert.Equal(t, "*/5 * * * *", custom.Expression)
}

func TestMonthlyDayCoercion(t *testing.T) {
	for _, day := range []int{28, 29, 30, 31} {
		trigger, err := BuildTrigger(db.FrequencyMonthly, &TimeConfig{Minute: 0, Hour: intPtr(3), Day: intPtr(day)})
		assert.Nil(t, err)
		assert.True(t, trigger.LastDayOnly)
		assert.Equal(t, "0 3 28-31 * *", trigger.Expression)
	}
}

func TestMonthlyDay30FiresInFebruary(t *testing.T) {
	trigger, err := BuildTrigger(db.FrequencyMonthly, &TimeConfig{Minute: 0, Hour: intPtr(3), Day: intPtr(30)})
	assert.Nil(t, err)

	// 2026 is not a leap year; the trigger must land on Feb 28.
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	next, err := trigger.NextRun(from)
	assert.Nil(t, err)
	assert.Equal(t, time.Month(2), next.Month())
	assert.Equal(t, 28, next.Day())
	assert.True(t, IsLastDayOfMonth(next))
}

func TestIsLastDayOfMonth(t *testing.T) {
	assert.True(t, IsLastDayOfMonth(time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)))
	assert.True(t, IsLastDayOfMonth(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.True(t, IsLastDayOfMonth(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsLastDayOfMonth(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.False(t, IsLastDayOfMonth(time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)))
}

func TestValidateTimeConfig(t *testing.T) {
	assert.NotNil(t, (&TimeConfig{Minute: 75}).Validate(db.FrequencyHourly))
	assert.Nil(t, (&TimeConfig{Minute: 15}).Validate(db.FrequencyHourly))

	assert.NotNil(t, (&TimeConfig{Minute: 0}).Validate(db.FrequencyDaily))
	assert.NotNil(t, (&TimeConfig{Minute: 0, Hour: intPtr(24)}).Validate(db.FrequencyDaily))

	assert.NotNil(t, (&TimeConfig{Minute: 0, Hour: intPtr(9)}).Validate(db.FrequencyWeekly))
	assert.Nil(t, (&TimeConfig{Minute: 0, Hour: intPtr(9), DayOfWeek: "FRIDAY"}).Validate(db.FrequencyWeekly))

	assert.NotNil(t, (&TimeConfig{Minute: 0, Hour: intPtr(9)}).Validate(db.FrequencyMonthly))
	assert.NotNil(t, (&TimeConfig{Minute: 0, Hour: intPtr(9), Day: intPtr(0)}).Validate(db.FrequencyMonthly))

	assert.NotNil(t, (&TimeConfig{}).Validate(db.FrequencyCustom))
	assert.NotNil(t, (&TimeConfig{Expression: "not cron"}).Validate(db.FrequencyCustom))
	assert.Nil(t, (&TimeConfig{Expression: "0 4 * * *"}).Validate(db.FrequencyCustom))
}

func TestParseTimeConfig(t *testing.T) {
	tc, err := ParseTimeConfig([]byte(`{"hour":10,"minute":30,"day_of_week":"tue"}`))
	assert.Nil(t, err)
	assert.Equal(t, 30, tc.Minute)
	assert.Equal(t, 10, *tc.Hour)
	assert.Equal(t, "tue", tc.DayOfWeek)

	_, err = ParseTimeConfig([]byte(`{broken`))
	assert.NotNil(t, err)
}
