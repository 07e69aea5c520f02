package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/metrics"
)

type Service struct {
	appointments AppointmentRepository
	slots        SlotChecker
	tx           TxRunner
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

func NewService(appts AppointmentRepository, slots SlotChecker, tx TxRunner, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		appointments: appts,
		slots:        slots,
		tx:           tx,
		metrics:      m,
		logger:       logger.With().Str("component", "scheduling").Logger(),
		now:          time.Now,
	}
}

// Book creates a booked appointment on a free slot. The slot check and the
// insert share one serializable transaction, so of two racing requests for
// the same slot one fails with ErrConflict.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := s.validateBooking(&req); err != nil {
		s.metrics.Booking("rejected")
		return nil, err
	}

	a := &Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		StartTime: req.StartTime,
		EndTime:   req.StartTime.Add(time.Duration(req.DurationMinutes) * time.Minute),
		Status:    StatusBooked,
	}
	if req.Motive != "" {
		a.Motive = &req.Motive
	}

	err := s.tx.WithSerializableTx(ctx, func(ctx context.Context) error {
		free, err := s.slots.IsSlotFree(ctx, req.DoctorID, req.StartTime, req.DurationMinutes)
		if err != nil {
			return err
		}
		if !free {
			return apperr.Conflict("slot %s is not available", req.StartTime.Format(time.RFC3339))
		}
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			s.metrics.Booking("conflict")
		} else {
			s.metrics.Booking("rejected")
		}
		return nil, err
	}

	s.metrics.Booking("booked")
	s.logger.Info().
		Int64("appointment_id", a.ID).
		Int64("doctor_id", a.DoctorID).
		Time("start_time", a.StartTime).
		Msg("appointment booked")
	return a, nil
}

func (s *Service) validateBooking(req *BookingRequest) error {
	if req.DoctorID <= 0 {
		return apperr.Invalid("doctor_id is required")
	}
	if req.PatientID <= 0 {
		return apperr.Invalid("patient_id is required")
	}
	if req.StartTime.IsZero() {
		return apperr.Invalid("start_time is required")
	}
	if !req.StartTime.After(s.now()) {
		return apperr.Invalid("start_time must be in the future")
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = DefaultDurationMinutes
	}
	req.Motive = strings.TrimSpace(req.Motive)
	if len(req.Motive) > maxMotiveLength {
		return apperr.Invalid("motive must be at most %d characters", maxMotiveLength)
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateStatus moves a booked appointment to done, cancelled or no_show.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*Appointment, error) {
	if !validStatus(status) {
		return nil, apperr.Invalid("unknown status %q", status)
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, status) {
		return nil, apperr.Conflict("appointment %d cannot go from %s to %s", id, a.Status, status)
	}
	if err := s.appointments.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	a.Status = status
	s.logger.Info().Int64("appointment_id", id).Str("status", status).Msg("appointment status changed")
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatus(f.Status) {
		return nil, 0, apperr.Invalid("unknown status %q", f.Status)
	}
	return s.appointments.List(ctx, f, limit, offset)
}
