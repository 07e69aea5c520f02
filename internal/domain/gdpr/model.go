// Package gdpr implements the patient rights workflows: erasure constrained by
// legal retention, and the data portability export.
package gdpr

import (
	"time"

	"github.com/samasante/amina/internal/domain/documents"
)

const (
	OutcomeAnonymized = "ANONYMIZED"
	OutcomeErased     = "ERASED"
)

// placeholderPrefix marks names overwritten by anonymization.
const placeholderPrefix = "ANONYME_"

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

// ErasureOutcome reports what RequestErasure did. RetainedData lists the
// retention reasons that prevented a full erasure.
type ErasureOutcome struct {
	Outcome      string   `json:"outcome"`
	Message      string   `json:"message"`
	RetainedData []string `json:"retained_data,omitempty"`
}

// PersonalData is the identity part of an export.
type PersonalData struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	Gender       *string    `json:"gender,omitempty"`
	Address      *string    `json:"address,omitempty"`
	AnonymizedAt *time.Time `json:"anonymized_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type ExportedAppointment struct {
	ID               int64     `json:"id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Status           string    `json:"status"`
	Motive           string    `json:"motive,omitempty"`
	DoctorName       string    `json:"doctor_name"`
	DoctorSpecialty  string    `json:"doctor_specialty"`
	ConsultationNote string    `json:"consultation_note,omitempty"`
}

type ExportedPrescription struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	DoctorName   string    `json:"doctor_name"`
	Medications  string    `json:"medications"`
	Instructions string    `json:"instructions,omitempty"`
}

// PatientExportBundle is the denormalized snapshot handed to a patient who
// asks for their data.
type PatientExportBundle struct {
	ExportedAt        time.Time                     `json:"exported_at"`
	Patient           PersonalData                  `json:"personal_data"`
	MedicalFile       *documents.MedicalFile        `json:"medical_file,omitempty"`
	Appointments      []ExportedAppointment         `json:"appointments"`
	Prescriptions     []ExportedPrescription        `json:"prescriptions"`
	LabOrders         []*documents.LabOrder         `json:"lab_orders"`
	ConsultationNotes []*documents.ConsultationNote `json:"consultation_notes"`
	Certificates      []*documents.Certificate      `json:"certificates"`
	ReferralLetters   []*documents.ReferralLetter   `json:"referral_letters"`
}
