//go:build integration

package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samasante/amina/internal/domain/scheduling"
	"github.com/samasante/amina/internal/platform/apperr"
	"github.com/samasante/amina/internal/platform/db"
)

func TestSlotsAndBooking(t *testing.T) {
	tenantID := newTenant(t, "sched")
	svc := newServices()
	loc := svc.availability.Location()
	monday := nextWeekday(time.Monday, loc)
	date := monday.Format("2006-01-02")

	var doctorID, patientID int64
	inTenant(t, tenantID, func(ctx context.Context) error {
		doctorID = createTestDoctor(t, ctx, svc, "Diop").ID
		patientID = createTestPatient(t, ctx, svc, "Moussa", "Fall").ID
		return svc.availability.SaveRule(ctx, mondayMorning(doctorID))
	})

	t.Run("FreeDay", func(t *testing.T) {
		inTenant(t, tenantID, func(ctx context.Context) error {
			slots, err := svc.availability.ComputeDailySlots(ctx, doctorID, date, 0)
			if err != nil {
				return err
			}
			if len(slots) != 2 || slots[0].Time != "09:00" || slots[1].Time != "09:30" {
				t.Errorf("expected 09:00 and 09:30, got %+v", slots)
			}
			return nil
		})
	})

	t.Run("BookedSlotDisappears", func(t *testing.T) {
		inTenant(t, tenantID, func(ctx context.Context) error {
			a, err := svc.scheduling.Book(ctx, scheduling.BookingRequest{
				DoctorID:  doctorID,
				PatientID: patientID,
				StartTime: monday.Add(9 * time.Hour),
				Motive:    "Contrôle tension",
			})
			if err != nil {
				return err
			}
			if a.ID == 0 || a.Status != scheduling.StatusBooked {
				t.Errorf("unexpected appointment %+v", a)
			}

			slots, err := svc.availability.ComputeDailySlots(ctx, doctorID, date, 0)
			if err != nil {
				return err
			}
			if len(slots) != 1 || slots[0].Time != "09:30" {
				t.Errorf("expected only 09:30 left, got %+v", slots)
			}
			return nil
		})
	})

	t.Run("SameSlotTwice", func(t *testing.T) {
		inTenant(t, tenantID, func(ctx context.Context) error {
			_, err := svc.scheduling.Book(ctx, scheduling.BookingRequest{
				DoctorID:  doctorID,
				PatientID: patientID,
				StartTime: monday.Add(9 * time.Hour),
			})
			if !errors.Is(err, apperr.ErrConflict) {
				t.Errorf("expected conflict, got %v", err)
			}
			return nil
		})
	})

	t.Run("OutsideRule", func(t *testing.T) {
		inTenant(t, tenantID, func(ctx context.Context) error {
			_, err := svc.scheduling.Book(ctx, scheduling.BookingRequest{
				DoctorID:  doctorID,
				PatientID: patientID,
				StartTime: monday.Add(14 * time.Hour),
			})
			if !errors.Is(err, apperr.ErrConflict) {
				t.Errorf("expected conflict outside opening hours, got %v", err)
			}
			return nil
		})
	})

	t.Run("CancelFreesSlot", func(t *testing.T) {
		inTenant(t, tenantID, func(ctx context.Context) error {
			appts, _, err := svc.scheduling.ListAppointments(ctx, scheduling.ListFilter{DoctorID: doctorID}, 10, 0)
			if err != nil {
				return err
			}
			if len(appts) != 1 {
				t.Fatalf("expected 1 appointment, got %d", len(appts))
			}
			if _, err := svc.scheduling.UpdateStatus(ctx, appts[0].ID, scheduling.StatusCancelled); err != nil {
				return err
			}
			slots, err := svc.availability.ComputeDailySlots(ctx, doctorID, date, 0)
			if err != nil {
				return err
			}
			if len(slots) != 2 {
				t.Errorf("expected both slots free again, got %+v", slots)
			}
			return nil
		})
	})
}

func TestConcurrentBookingSameSlot(t *testing.T) {
	tenantID := newTenant(t, "race")
	svc := newServices()
	monday := nextWeekday(time.Monday, svc.availability.Location())

	var doctorID int64
	patients := make([]int64, 4)
	inTenant(t, tenantID, func(ctx context.Context) error {
		doctorID = createTestDoctor(t, ctx, svc, "Ndiaye").ID
		for i := range patients {
			patients[i] = createTestPatient(t, ctx, svc, "Patient", "Course").ID
		}
		return svc.availability.SaveRule(ctx, mondayMorning(doctorID))
	})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		booked    int
		conflicts int
	)
	for _, pid := range patients {
		wg.Add(1)
		go func(pid int64) {
			defer wg.Done()
			err := db.WithTenant(context.Background(), globalDB.Pool, tenantID, func(ctx context.Context) error {
				_, err := svc.scheduling.Book(ctx, scheduling.BookingRequest{
					DoctorID:  doctorID,
					PatientID: pid,
					StartTime: monday.Add(9*time.Hour + 30*time.Minute),
				})
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected booking error: %v", err)
			}
		}(pid)
	}
	wg.Wait()

	if booked != 1 {
		t.Errorf("expected exactly one booking, got %d", booked)
	}
	if conflicts != len(patients)-1 {
		t.Errorf("expected %d conflicts, got %d", len(patients)-1, conflicts)
	}
}

func TestDeactivatedDoctorIsNotBookable(t *testing.T) {
	tenantID := newTenant(t, "inactive")
	svc := newServices()
	monday := nextWeekday(time.Monday, svc.availability.Location())

	inTenant(t, tenantID, func(ctx context.Context) error {
		doctorID := createTestDoctor(t, ctx, svc, "Mbengue").ID
		patientID := createTestPatient(t, ctx, svc, "Rokhaya", "Seck").ID
		if err := svc.availability.SaveRule(ctx, mondayMorning(doctorID)); err != nil {
			return err
		}
		if err := svc.identity.DeactivateDoctor(ctx, doctorID); err != nil {
			return err
		}

		slots, err := svc.availability.ComputeDailySlots(ctx, doctorID, monday.Format("2006-01-02"), 0)
		if err != nil {
			return err
		}
		if len(slots) != 0 {
			t.Errorf("expected no slots for a deactivated doctor, got %+v", slots)
		}

		_, err = svc.scheduling.Book(ctx, scheduling.BookingRequest{
			DoctorID:  doctorID,
			PatientID: patientID,
			StartTime: monday.Add(9 * time.Hour),
		})
		if !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("expected conflict booking a deactivated doctor, got %v", err)
		}
		return nil
	})
}
