package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samasante/amina/internal/platform/apperr"
)

func TestWeeklyRule_ValidateNormalizes(t *testing.T) {
	rule := &WeeklyRule{
		ConsultationMinutes: 20,
		BufferMinutes:       5,
		Days: map[string]DaySchedule{
			" Monday ": {Active: true, Intervals: []Interval{{Start: "08:00", End: "12:00"}, {Start: "14:00", End: "18:00"}}},
			"FRIDAY":   {Active: false},
		},
	}

	require.NoError(t, rule.Validate())
	assert.Contains(t, rule.Days, "monday")
	assert.Contains(t, rule.Days, "friday")
	assert.Len(t, rule.Days["monday"].Intervals, 2)
}

func TestWeeklyRule_ValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		rule WeeklyRule
	}{
		{"unknown weekday", WeeklyRule{Days: map[string]DaySchedule{"funday": {Active: true}}}},
		{"duplicate weekday", WeeklyRule{Days: map[string]DaySchedule{"monday": {}, "Monday": {}}}},
		{"bad clock", WeeklyRule{Days: map[string]DaySchedule{"monday": {Active: true, Intervals: []Interval{{Start: "9h", End: "12:00"}}}}}},
		{"hour out of range", WeeklyRule{Days: map[string]DaySchedule{"monday": {Active: true, Intervals: []Interval{{Start: "09:00", End: "25:00"}}}}}},
		{"start after end", WeeklyRule{Days: map[string]DaySchedule{"monday": {Active: true, Intervals: []Interval{{Start: "12:00", End: "09:00"}}}}}},
		{"empty interval", WeeklyRule{Days: map[string]DaySchedule{"monday": {Active: true, Intervals: []Interval{{Start: "09:00", End: "09:00"}}}}}},
		{"overlap", WeeklyRule{Days: map[string]DaySchedule{"monday": {Active: true, Intervals: []Interval{{Start: "09:00", End: "12:00"}, {Start: "11:00", End: "13:00"}}}}}},
		{"out of order", WeeklyRule{Days: map[string]DaySchedule{"monday": {Active: true, Intervals: []Interval{{Start: "14:00", End: "15:00"}, {Start: "09:00", End: "10:00"}}}}}},
		{"negative buffer", WeeklyRule{BufferMinutes: -5}},
		{"consultation too long", WeeklyRule{ConsultationMinutes: MaxConsultationMinutes + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			assert.True(t, errors.Is(err, apperr.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestWeeklyRule_AdjacentIntervalsAllowed(t *testing.T) {
	rule := &WeeklyRule{Days: map[string]DaySchedule{
		"tuesday": {Active: true, Intervals: []Interval{{Start: "09:00", End: "10:00"}, {Start: "10:00", End: "11:00"}}},
	}}
	assert.NoError(t, rule.Validate())
}

func TestWeeklyRule_Day(t *testing.T) {
	rule := &WeeklyRule{Days: map[string]DaySchedule{
		"monday":  {Active: true, Intervals: []Interval{{Start: "09:00", End: "10:00"}}},
		"tuesday": {Active: false, Intervals: []Interval{{Start: "09:00", End: "10:00"}}},
	}}

	_, ok := rule.Day(time.Monday)
	assert.True(t, ok)
	_, ok = rule.Day(time.Tuesday)
	assert.False(t, ok, "inactive day")
	_, ok = rule.Day(time.Sunday)
	assert.False(t, ok, "absent day")

	var none *WeeklyRule
	_, ok = none.Day(time.Monday)
	assert.False(t, ok, "nil rule")
}

func TestWeekdayNames(t *testing.T) {
	assert.Equal(t, []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}, WeekdayNames())
}
