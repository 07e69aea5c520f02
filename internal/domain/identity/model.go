package identity

import (
	"strings"
	"time"
)

var validGenders = map[string]bool{
	"male":    true,
	"female":  true,
	"other":   true,
	"unknown": true,
}

// Patient is a person followed by the tenant. Email and phone are nullable
// because an anonymized patient keeps no contact data.
type Patient struct {
	ID           int64      `db:"id" json:"id"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender       *string    `db:"gender" json:"gender,omitempty"`
	Address      *string    `db:"address" json:"address,omitempty"`
	AnonymizedAt *time.Time `db:"anonymized_at" json:"anonymized_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// IsAnonymized reports whether the patient went through GDPR anonymization.
func (p *Patient) IsAnonymized() bool {
	return p.AnonymizedAt != nil
}

type Doctor struct {
	ID        int64     `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Specialty string    `db:"specialty" json:"specialty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (d *Doctor) FullName() string {
	return strings.TrimSpace("Dr " + d.FirstName + " " + d.LastName)
}
