// Package compliance holds the legal retention rules for patient data and the
// audit trail writer.
package compliance

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

const (
	CategoryClinical = "clinical_record"
	CategoryBilling  = "billing_record"
)

// daysPerYear averages leap years.
const daysPerYear = 365.25

// RetentionPolicy keeps a category of records for Years after the patient's
// last consultation.
type RetentionPolicy struct {
	Category    string `json:"category"`
	Years       int    `json:"years"`
	Description string `json:"description"`
	// Reason is the user-facing explanation; %d receives the remaining years.
	Reason string `json:"-"`
}

// DefaultRetentionPolicies returns the obligations applied to erasure
// requests, in the order their reasons are reported.
func DefaultRetentionPolicies() []RetentionPolicy {
	return []RetentionPolicy{
		{
			Category:    CategoryClinical,
			Years:       20,
			Description: "Clinical records: 20 years from the last consultation",
			Reason:      "Dossier médical conservé 20 ans après la dernière consultation (encore %d an(s))",
		},
		{
			Category:    CategoryBilling,
			Years:       10,
			Description: "Billing records: 10 years from the last appointment",
			Reason:      "Données de facturation conservées 10 ans (encore %d an(s))",
		},
	}
}

// Obligation is a policy that still blocks erasure.
type Obligation struct {
	Category       string `json:"category"`
	RemainingYears int    `json:"remaining_years"`
	Reason         string `json:"reason"`
}

type RetentionService struct {
	policies []RetentionPolicy
	logger   zerolog.Logger
}

func NewRetentionService(policies []RetentionPolicy, logger zerolog.Logger) *RetentionService {
	return &RetentionService{
		policies: policies,
		logger:   logger.With().Str("component", "retention-service").Logger(),
	}
}

func (s *RetentionService) Policies() []RetentionPolicy {
	out := make([]RetentionPolicy, len(s.policies))
	copy(out, s.policies)
	return out
}

// YearsBetween returns the fractional number of years from from to to.
func YearsBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24 / daysPerYear
}

// Obligations lists the policies still running for a patient whose most
// recent appointment started at lastConsultation. A nil lastConsultation
// means the patient never consulted and nothing is retained.
func (s *RetentionService) Obligations(lastConsultation *time.Time, now time.Time) []Obligation {
	if lastConsultation == nil {
		return nil
	}
	elapsed := YearsBetween(*lastConsultation, now)

	var out []Obligation
	for _, p := range s.policies {
		if elapsed >= float64(p.Years) {
			continue
		}
		remaining := int(math.Ceil(float64(p.Years) - elapsed))
		out = append(out, Obligation{
			Category:       p.Category,
			RemainingYears: remaining,
			Reason:         fmt.Sprintf(p.Reason, remaining),
		})
	}

	s.logger.Debug().
		Float64("years_since_last_consultation", elapsed).
		Int("obligations", len(out)).
		Msg("retention evaluated")
	return out
}
