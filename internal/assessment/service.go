package assessment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"neuro-triage/internal/soap"
	"neuro-triage/internal/triage"
)

// Notifier alerts a clinician about an urgent encounter.
type Notifier interface {
	NotifyUrgent(ctx context.Context, a Assessment) error
}

type Service interface {
	Assess(ctx context.Context, req Request) (*Assessment, error)
	Get(ctx context.Context, id uuid.UUID) (*Assessment, error)
	List(ctx context.Context, limit int) ([]Assessment, error)
	// Wait blocks until background notifications have finished.
	Wait()
}

const (
	saveTimeout   = 3 * time.Second
	notifyTimeout = 30 * time.Second
)

type service struct {
	engine      *triage.Engine
	synthesizer *soap.Synthesizer
	repo        Repository
	notifier    Notifier
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewService wires the core. notifier may be nil.
func NewService(engine *triage.Engine, synthesizer *soap.Synthesizer, repo Repository, notifier Notifier, logger *zap.Logger) Service {
	return &service{
		engine:      engine,
		synthesizer: synthesizer,
		repo:        repo,
		notifier:    notifier,
		logger:      logger,
	}
}

// Assess computes the verdict, recommendations, plan and SOAP summary for one
// submission. Only invalid input fails it: logging and notification problems
// are logged and skipped.
func (s *service) Assess(ctx context.Context, req Request) (*Assessment, error) {
	severity, err := triage.ParseSeverity(req.Severity)
	if err != nil {
		return nil, err
	}
	patient := triage.PatientContext{Age: req.Age, Severity: severity, OnsetHours: req.OnsetHours}

	symptoms := cleanSymptoms(req.Symptoms)
	report := triage.NewSymptomReport(symptoms...).With(req.Notes)

	result, err := s.engine.Evaluate(patient, report)
	if err != nil {
		return nil, err
	}

	synth := s.synthesizer.Synthesize(ctx, soap.Input{
		Text:            req.Notes,
		Symptoms:        symptoms,
		Verdict:         string(result.Verdict),
		Recommendations: result.Recommendations.Lines,
		Manual:          req.SOAP,
	})

	a := &Assessment{
		ID:              uuid.New(),
		Patient:         patient,
		Symptoms:        symptoms,
		Notes:           strings.TrimSpace(req.Notes),
		Verdict:         result.Verdict,
		Recommendations: result.Recommendations,
		Plan:            result.Plan,
		SOAP:            synth.Note,
		Entities:        synth.Entities,
		Notice:          synth.Notice,
		Disclaimer:      Disclaimer,
		CreatedAt:       time.Now().UTC(),
	}

	s.logger.Info("Assessment computed",
		zap.String("assessment_id", a.ID.String()),
		zap.String("verdict", string(a.Verdict)),
		zap.Strings("categories", a.Recommendations.Categories),
	)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	if err := s.repo.Save(saveCtx, a); err != nil {
		s.logger.Error("Failed to log assessment", zap.String("assessment_id", a.ID.String()), zap.Error(err))
	}
	cancel()

	if a.Urgent() && s.notifier != nil {
		s.wg.Add(1)
		go func(a Assessment) {
			defer s.wg.Done()
			bgCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := s.notifier.NotifyUrgent(bgCtx, a); err != nil {
				s.logger.Error("Failed to notify clinician", zap.String("assessment_id", a.ID.String()), zap.Error(err))
				return
			}
			s.logger.Info("Clinician notified", zap.String("assessment_id", a.ID.String()))
		}(*a)
	}

	return a, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, limit int) ([]Assessment, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	list, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return list, nil
}

func (s *service) Wait() {
	s.wg.Wait()
}

// cleanSymptoms trims entries and drops blanks and case-insensitive repeats.
func cleanSymptoms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
