package triage

import (
	"sync/atomic"
)

// Result is the outcome of evaluating one patient encounter.
type Result struct {
	Verdict         Verdict           `json:"verdict"`
	Recommendations RecommendationSet `json:"recommendations"`
	Plan            RecoveryPlan      `json:"recovery_plan"`
}

// Engine combines the classifier with a swappable rule table. Evaluate is
// safe for concurrent use while the table is being replaced.
type Engine struct {
	classifier *Classifier
	rules      atomic.Pointer[RuleTable]
}

func NewEngine(classifier *Classifier, rules *RuleTable) *Engine {
	if classifier == nil {
		classifier = defaultClassifier
	}
	if rules == nil {
		rules = DefaultRules()
	}
	e := &Engine{classifier: classifier}
	e.rules.Store(rules)
	return e
}

// Rules returns the table currently in use.
func (e *Engine) Rules() *RuleTable {
	return e.rules.Load()
}

// SetRules validates and installs a copy of rules; the caller keeps
// ownership of the value passed in.
func (e *Engine) SetRules(rules *RuleTable) error {
	table := rules.Clone()
	if err := table.Validate(); err != nil {
		return err
	}
	e.rules.Store(table)
	return nil
}

// Evaluate validates the patient context and runs both rule sets.
func (e *Engine) Evaluate(patient PatientContext, report SymptomReport) (Result, error) {
	if err := patient.Validate(); err != nil {
		return Result{}, err
	}
	recs := e.rules.Load().Recommend(report)
	return Result{
		Verdict:         e.classifier.Classify(patient.Severity, patient.OnsetHours),
		Recommendations: recs,
		Plan:            RecoveryPlanFor(recs),
	}, nil
}
