package availability

import (
	"sort"
	"strings"
	"time"

	"github.com/samasante/amina/internal/platform/apperr"
)

const (
	// DefaultDurationMinutes is used when the caller does not ask for a
	// slot length.
	DefaultDurationMinutes = 30
	MaxConsultationMinutes = 480

	clockLayout = "15:04"
	dateLayout  = "2006-01-02"

	statusCancelled = "cancelled"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Interval is an open period of a day, "HH:MM" 24h wall clock, end exclusive.
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DaySchedule struct {
	Active    bool       `json:"active"`
	Intervals []Interval `json:"intervals"`
}

// WeeklyRule is a doctor's recurring template. Days is keyed by lower case
// English weekday name.
type WeeklyRule struct {
	DoctorID            int64                  `json:"doctor_id"`
	Days                map[string]DaySchedule `json:"days"`
	ConsultationMinutes int                    `json:"consultation_minutes"`
	BufferMinutes       int                    `json:"buffer_minutes"`
	UpdatedAt           time.Time              `json:"updated_at"`
	// DoctorInactive is read from the doctor row, never saved. A deactivated
	// doctor keeps the rule but offers no slot.
	DoctorInactive bool `json:"doctor_inactive,omitempty"`
}

// Day returns the schedule for wd, and false when the day is absent or
// inactive.
func (r *WeeklyRule) Day(wd time.Weekday) (DaySchedule, bool) {
	if r == nil {
		return DaySchedule{}, false
	}
	for name, day := range r.Days {
		if d, ok := weekdays[strings.ToLower(name)]; ok && d == wd {
			return day, day.Active
		}
	}
	return DaySchedule{}, false
}

func isWeekday(name string) bool {
	_, ok := weekdays[strings.ToLower(name)]
	return ok
}

// Validate normalizes weekday keys and clock strings and rejects rules that
// would produce duplicate or unordered slots.
func (r *WeeklyRule) Validate() error {
	if r.ConsultationMinutes < 0 || r.ConsultationMinutes > MaxConsultationMinutes {
		return apperr.Invalid("consultation_minutes must be between 0 and %d", MaxConsultationMinutes)
	}
	if r.BufferMinutes < 0 || r.BufferMinutes > MaxConsultationMinutes {
		return apperr.Invalid("buffer_minutes must be between 0 and %d", MaxConsultationMinutes)
	}

	days := make(map[string]DaySchedule, len(r.Days))
	for name, day := range r.Days {
		key := strings.ToLower(strings.TrimSpace(name))
		if !isWeekday(key) {
			return apperr.Invalid("unknown weekday %q, want one of %s", name, strings.Join(WeekdayNames(), ", "))
		}
		if _, dup := days[key]; dup {
			return apperr.Invalid("weekday %q is listed twice", key)
		}
		intervals, err := normalizeIntervals(key, day.Intervals)
		if err != nil {
			return err
		}
		day.Intervals = intervals
		days[key] = day
	}
	r.Days = days
	return nil
}

func normalizeIntervals(day string, in []Interval) ([]Interval, error) {
	out := make([]Interval, 0, len(in))
	prevEnd := -1
	for i, iv := range in {
		start, err := parseClock(iv.Start)
		if err != nil {
			return nil, apperr.Invalid("%s interval %d: start %q is not HH:MM", day, i, iv.Start)
		}
		end, err := parseClock(iv.End)
		if err != nil {
			return nil, apperr.Invalid("%s interval %d: end %q is not HH:MM", day, i, iv.End)
		}
		if start >= end {
			return nil, apperr.Invalid("%s interval %d: start %s is not before end %s", day, i, iv.Start, iv.End)
		}
		if start < prevEnd {
			return nil, apperr.Invalid("%s interval %d overlaps or precedes the previous one", day, i)
		}
		prevEnd = end
		out = append(out, Interval{Start: formatClock(start), End: formatClock(end)})
	}
	return out, nil
}

// parseClock returns minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return time.Date(0, 1, 1, 0, minutes, 0, 0, time.UTC).Format(clockLayout)
}

// Slot is a computed free period. It is never stored.
type Slot struct {
	Time    string `json:"time"`
	Display string `json:"display"`
}

// Booking is the part of an appointment that occupies a slot.
type Booking struct {
	Start  time.Time
	Status string
}

// DaySlots is the slot listing returned to clients.
type DaySlots struct {
	DoctorID int64  `json:"doctor_id"`
	Date     string `json:"date"`
	Duration int    `json:"duration"`
	Slots    []Slot `json:"slots"`
}

// WeekdayNames lists the accepted rule keys in calendar order.
func WeekdayNames() []string {
	names := make([]string, 0, len(weekdays))
	for n := range weekdays {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return weekdays[names[i]] < weekdays[names[j]] })
	return names
}
