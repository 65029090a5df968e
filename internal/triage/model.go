package triage

import (
	"math"
	"strings"
)

type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

// Severities lists the accepted severity tiers in display order.
var Severities = []Severity{SeverityMild, SeverityModerate, SeveritySevere}

// ParseSeverity accepts any casing of a severity tier.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range Severities {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, nil
		}
	}
	return "", &ValidationError{Field: "severity", Message: "must be one of Mild, Moderate, Severe"}
}

type Verdict string

const (
	VerdictUrgent     Verdict = "Urgent"
	VerdictSemiUrgent Verdict = "Semi-Urgent"
	VerdictRoutine    Verdict = "Routine"
)

// Patient attribute bounds accepted by the intake form.
const (
	MinAge        = 1
	MaxAge        = 120
	MaxOnsetHours = 48
)

// PatientContext is the transient input of a single interaction.
type PatientContext struct {
	Age        int      `json:"age"`
	Severity   Severity `json:"severity"`
	OnsetHours float64  `json:"onset_hours"`
}

// Validate rejects attributes outside the intake bounds. Classification
// and recommendation assume a validated context.
func (p PatientContext) Validate() error {
	if p.Age < MinAge || p.Age > MaxAge {
		return &ValidationError{Field: "age", Message: "must be between 1 and 120"}
	}
	switch p.Severity {
	case SeverityMild, SeverityModerate, SeveritySevere:
	default:
		return &ValidationError{Field: "severity", Message: "must be one of Mild, Moderate, Severe"}
	}
	if math.IsNaN(p.OnsetHours) || p.OnsetHours < 0 || p.OnsetHours > MaxOnsetHours {
		return &ValidationError{Field: "onset_hours", Message: "must be between 0 and 48"}
	}
	return nil
}

// SymptomReport is an unordered, case-insensitive collection of reported
// symptom phrases. Free text is carried as a single phrase.
type SymptomReport []string

// Vocabulary is the fixed symptom list offered by the intake form.
var Vocabulary = []string{
	"Speech difficulty",
	"Paralysis",
	"Confusion",
	"Vision loss",
	"Headache",
	"Fatigue",
	"Memory loss",
}

// NewSymptomReport normalises phrases: trimmed, lowercased, blanks dropped.
func NewSymptomReport(phrases ...string) SymptomReport {
	report := make(SymptomReport, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		report = append(report, p)
	}
	return report
}

// With returns a copy of the report extended with free text.
func (r SymptomReport) With(text ...string) SymptomReport {
	out := make(SymptomReport, 0, len(r)+len(text))
	out = append(out, r...)
	return append(out, NewSymptomReport(text...)...)
}

func (r SymptomReport) contains(keyword string) bool {
	for _, phrase := range r {
		if strings.Contains(strings.ToLower(phrase), keyword) {
			return true
		}
	}
	return false
}

// RecommendationSet is the ordered advisory output of the rule engine.
type RecommendationSet struct {
	Categories []string `json:"categories"`
	Lines      []string `json:"lines"`
}

// Matched reports whether the named category contributed a line.
func (s RecommendationSet) Matched(category string) bool {
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

type PlanStep struct {
	Week     string `json:"week"`
	Activity string `json:"activity"`
}

type RecoveryPlan []PlanStep
