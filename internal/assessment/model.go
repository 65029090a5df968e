package assessment

import (
	"time"

	"github.com/google/uuid"

	"neuro-triage/internal/soap"
	"neuro-triage/internal/triage"
)

// Disclaimer accompanies every computed result.
const Disclaimer = "Simulated output. Not for clinical use."

// Request is one intake form submission.
type Request struct {
	Age        int       `json:"age"`
	Severity   string    `json:"severity"`
	OnsetHours float64   `json:"onset_hours"`
	Symptoms   []string  `json:"symptoms"`
	Notes      string    `json:"notes"`
	SOAP       soap.Note `json:"soap"`
}

// Assessment is the aggregate root: one computed encounter.
type Assessment struct {
	ID      uuid.UUID             `json:"id" db:"id"`
	Patient triage.PatientContext `json:"patient"`

	// Input
	Symptoms []string `json:"symptoms" db:"symptoms"`
	Notes    string   `json:"notes" db:"notes"`

	// Output
	Verdict         triage.Verdict           `json:"verdict" db:"verdict"`
	Recommendations triage.RecommendationSet `json:"recommendations" db:"recommendations"`
	Plan            triage.RecoveryPlan      `json:"recovery_plan" db:"plan"`
	SOAP            soap.Note                `json:"soap" db:"soap"`
	Entities        []soap.Entity            `json:"entities,omitempty"`
	Notice          string                   `json:"notice,omitempty" db:"notice"`
	Disclaimer      string                   `json:"disclaimer"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (a Assessment) Urgent() bool {
	return a.Verdict == triage.VerdictUrgent
}
