package scheduling

import (
	"time"
)

const (
	StatusBooked    = "booked"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"

	DefaultDurationMinutes = 30
	maxMotiveLength        = 500
)

// transitions lists the statuses reachable from each status. Every status
// other than booked is final.
var transitions = map[string][]string{
	StatusBooked: {StatusDone, StatusCancelled, StatusNoShow},
}

func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validStatus(s string) bool {
	switch s {
	case StatusBooked, StatusDone, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID        int64     `db:"id" json:"id"`
	DoctorID  int64     `db:"doctor_id" json:"doctor_id"`
	PatientID int64     `db:"patient_id" json:"patient_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Status    string    `db:"status" json:"status"`
	Motive    *string   `db:"motive" json:"motive,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BookingRequest asks for the slot starting at StartTime.
type BookingRequest struct {
	DoctorID        int64     `json:"doctor_id"`
	PatientID       int64     `json:"patient_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration"`
	Motive          string    `json:"motive"`
}

// ListFilter narrows appointment listings. Zero values match everything.
type ListFilter struct {
	DoctorID  int64
	PatientID int64
	Status    string
	From      time.Time
	To        time.Time
}
