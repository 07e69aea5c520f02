package availability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/metrics"
)

// Service computes free slots from weekly rules. It keeps no state between
// calls: every query re-reads the rule and the day's appointments.
type Service struct {
	repo            Repository
	defaultDuration int
	loc             *time.Location
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewService builds the slot engine. defaultDuration <= 0 falls back to
// DefaultDurationMinutes. m may be nil.
func NewService(repo Repository, defaultDuration int, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if defaultDuration <= 0 {
		defaultDuration = DefaultDurationMinutes
	}
	return &Service{
		repo:            repo,
		defaultDuration: defaultDuration,
		loc:             time.Local,
		metrics:         m,
		logger:          logger.With().Str("component", "availability").Logger(),
	}
}

// Location is the zone rules and dates are read in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ComputeDailySlots returns the doctor's free slots on date (YYYY-MM-DD),
// ordered as the rule's intervals are. A missing rule or an inactive day
// yields an empty list.
func (s *Service) ComputeDailySlots(ctx context.Context, doctorID int64, date string, durationMinutes int) ([]Slot, error) {
	if doctorID <= 0 {
		return nil, apperr.Invalid("doctor id must be positive, got %d", doctorID)
	}
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return nil, apperr.Invalid("date %q is not YYYY-MM-DD", date)
	}
	return s.slotsOn(ctx, doctorID, day, s.normalizeDuration(durationMinutes))
}

// DaySlots wraps ComputeDailySlots in the listing returned over HTTP.
func (s *Service) DaySlots(ctx context.Context, doctorID int64, date string, durationMinutes int) (*DaySlots, error) {
	duration := s.normalizeDuration(durationMinutes)
	slots, err := s.ComputeDailySlots(ctx, doctorID, date, duration)
	if err != nil {
		return nil, err
	}
	return &DaySlots{DoctorID: doctorID, Date: date, Duration: duration, Slots: slots}, nil
}

// IsSlotFree reports whether start is the start of a free slot of
// durationMinutes on its own local date.
func (s *Service) IsSlotFree(ctx context.Context, doctorID int64, start time.Time, durationMinutes int) (bool, error) {
	if doctorID <= 0 {
		return false, apperr.Invalid("doctor id must be positive, got %d", doctorID)
	}
	local := start.In(s.loc)
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false, nil
	}
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	slots, err := s.slotsOn(ctx, doctorID, day, s.normalizeDuration(durationMinutes))
	if err != nil {
		return false, err
	}
	want := local.Format(clockLayout)
	for _, slot := range slots {
		if slot.Time == want {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) slotsOn(ctx context.Context, doctorID int64, day time.Time, duration int) ([]Slot, error) {
	s.metrics.SlotQuery()

	rule, err := s.repo.GetRule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if rule != nil && rule.DoctorInactive {
		return []Slot{}, nil
	}
	schedule, ok := rule.Day(day.Weekday())
	if !ok {
		return []Slot{}, nil
	}

	slots := GenerateSlots(schedule, duration, rule.BufferMinutes)
	if len(slots) == 0 {
		return []Slot{}, nil
	}

	bookings, err := s.repo.ListBookings(ctx, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	free := FreeSlots(slots, bookings, s.loc)

	s.logger.Debug().
		Int64("doctor_id", doctorID).
		Str("date", day.Format(dateLayout)).
		Int("generated", len(slots)).
		Int("free", len(free)).
		Msg("computed daily slots")
	return free, nil
}

func (s *Service) normalizeDuration(minutes int) int {
	if minutes <= 0 {
		return s.defaultDuration
	}
	return minutes
}

// GetRule returns the doctor's rule, or an empty inactive rule when none
// was saved yet.
func (s *Service) GetRule(ctx context.Context, doctorID int64) (*WeeklyRule, error) {
	if doctorID <= 0 {
		return nil, apperr.Invalid("doctor id must be positive, got %d", doctorID)
	}
	rule, err := s.repo.GetRule(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		rule = &WeeklyRule{
			DoctorID:            doctorID,
			Days:                map[string]DaySchedule{},
			ConsultationMinutes: s.defaultDuration,
		}
	}
	return rule, nil
}

// SaveRule validates and replaces the doctor's rule wholesale.
func (s *Service) SaveRule(ctx context.Context, rule *WeeklyRule) error {
	if rule.DoctorID <= 0 {
		return apperr.Invalid("doctor id must be positive, got %d", rule.DoctorID)
	}
	if rule.Days == nil {
		rule.Days = map[string]DaySchedule{}
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveRule(ctx, rule); err != nil {
		return err
	}
	s.logger.Info().Int64("doctor_id", rule.DoctorID).Int("days", len(rule.Days)).Msg("availability rule saved")
	return nil
}
