package triage

// Default onset thresholds, in hours.
const (
	DefaultUrgentOnsetHours     = 3
	DefaultSemiUrgentOnsetHours = 12
)

// Tier pairs a verdict with the predicate that selects it. Tiers are
// evaluated in order and the first match wins.
type Tier struct {
	Verdict Verdict
	Match   func(sev Severity, onsetHours float64) bool
}

// Classifier maps a severity and time since onset to a triage verdict.
type Classifier struct {
	tiers []Tier
}

// NewClassifier builds the tier table for the given onset thresholds.
// Zero thresholds fall back to the defaults.
//
// The semi-urgent branch requires Moderate severity AND recent onset.
func NewClassifier(urgentOnsetHours, semiUrgentOnsetHours float64) *Classifier {
	if urgentOnsetHours <= 0 {
		urgentOnsetHours = DefaultUrgentOnsetHours
	}
	if semiUrgentOnsetHours <= 0 {
		semiUrgentOnsetHours = DefaultSemiUrgentOnsetHours
	}

	return &Classifier{
		tiers: []Tier{
			{
				Verdict: VerdictUrgent,
				Match: func(sev Severity, onset float64) bool {
					return sev == SeveritySevere || onset < urgentOnsetHours
				},
			},
			{
				Verdict: VerdictSemiUrgent,
				Match: func(sev Severity, onset float64) bool {
					return sev == SeverityModerate && onset < semiUrgentOnsetHours
				},
			},
		},
	}
}

// Classify returns the first matching tier, Routine otherwise.
func (c *Classifier) Classify(sev Severity, onsetHours float64) Verdict {
	for _, t := range c.tiers {
		if t.Match(sev, onsetHours) {
			return t.Verdict
		}
	}
	return VerdictRoutine
}

var defaultClassifier = NewClassifier(DefaultUrgentOnsetHours, DefaultSemiUrgentOnsetHours)

// Classify uses the default thresholds.
func Classify(sev Severity, onsetHours float64) Verdict {
	return defaultClassifier.Classify(sev, onsetHours)
}
