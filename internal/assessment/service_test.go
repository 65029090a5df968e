package assessment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neuro-triage/internal/soap"
	"neuro-triage/internal/triage"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []Assessment
	err   error
}

func (n *fakeNotifier) NotifyUrgent(_ context.Context, a Assessment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, a)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type failingRepo struct{ Repository }

func (failingRepo) Save(context.Context, *Assessment) error {
	return errors.New("connection refused")
}

type stubExtractor struct {
	entities []soap.Entity
	err      error
}

func (s stubExtractor) Extract(context.Context, string) ([]soap.Entity, error) {
	return s.entities, s.err
}

func newTestService(repo Repository, notifier Notifier, extractor soap.Extractor) Service {
	logger := zap.NewNop()
	return NewService(triage.NewEngine(nil, nil), soap.NewSynthesizer(extractor, logger), repo, notifier, logger)
}

func TestService_AssessUrgent(t *testing.T) {
	repo := NewMemoryRepository(0)
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier, nil)

	a, err := svc.Assess(context.Background(), Request{
		Age:        67,
		Severity:   "severe",
		OnsetHours: 1,
		Symptoms:   []string{"Speech difficulty", "Paralysis", " ", "paralysis"},
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, triage.VerdictUrgent, a.Verdict)
	assert.Equal(t, []string{"Speech difficulty", "Paralysis"}, a.Symptoms)
	assert.Equal(t, []string{triage.CategoryAphasia, triage.CategoryMotor}, a.Recommendations.Categories)
	assert.Len(t, a.Recommendations.Lines, 3)
	assert.Equal(t, "Speech therapy", a.Plan[1].Activity)
	assert.Equal(t, "Patient reports Speech difficulty, Paralysis.", a.SOAP.Subjective)
	assert.Equal(t, "Triage level: Urgent.", a.SOAP.Assessment)
	assert.Equal(t, Disclaimer, a.Disclaimer)

	svc.Wait()
	assert.Equal(t, 1, notifier.count())

	stored, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Verdict, stored.Verdict)
}

func TestService_AssessRoutineDoesNotNotify(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(NewMemoryRepository(0), notifier, nil)

	a, err := svc.Assess(context.Background(), Request{Age: 40, Severity: "Mild", OnsetHours: 30})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, triage.VerdictRoutine, a.Verdict)
	assert.Equal(t, []string{"No specific therapy found."}, a.Recommendations.Lines)
	assert.Equal(t, "No symptoms reported.", a.SOAP.Subjective)
	assert.Zero(t, notifier.count())
}

func TestService_AssessValidation(t *testing.T) {
	svc := newTestService(NewMemoryRepository(0), nil, nil)

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"unknown severity", Request{Age: 50, Severity: "critical", OnsetHours: 2}, "severity"},
		{"age too low", Request{Age: 0, Severity: "Mild", OnsetHours: 2}, "age"},
		{"age too high", Request{Age: 121, Severity: "Mild", OnsetHours: 2}, "age"},
		{"onset too late", Request{Age: 50, Severity: "Mild", OnsetHours: 49}, "onset_hours"},
		{"negative onset", Request{Age: 50, Severity: "Mild", OnsetHours: -1}, "onset_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Assess(context.Background(), tt.req)
			var verr *triage.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestService_NotesFeedRecommendationsAndSOAP(t *testing.T) {
	extractor := stubExtractor{entities: []soap.Entity{
		{Text: "left arm weakness", Label: soap.LabelSymptom},
		{Text: "NIHSS 7", Label: soap.LabelExamResult},
	}}
	svc := newTestService(NewMemoryRepository(0), nil, extractor)

	a, err := svc.Assess(context.Background(), Request{
		Age:        72,
		Severity:   "Moderate",
		OnsetHours: 6,
		Notes:      "Left arm weakness, feels tired. NIHSS 7.",
		SOAP:       soap.Note{Plan: "Admit to stroke unit."},
	})
	require.NoError(t, err)

	assert.Equal(t, triage.VerdictSemiUrgent, a.Verdict)
	assert.Equal(t, []string{triage.CategoryMotor, triage.CategoryFatigue}, a.Recommendations.Categories)
	assert.Equal(t, "left arm weakness", a.SOAP.Subjective)
	assert.Equal(t, "NIHSS 7", a.SOAP.Objective)
	assert.Equal(t, "Admit to stroke unit.", a.SOAP.Plan)
	assert.Empty(t, a.Notice)
	assert.Len(t, a.Entities, 2)
}

func TestService_ExtractorFailureDegrades(t *testing.T) {
	svc := newTestService(NewMemoryRepository(0), nil, stubExtractor{err: errors.New("timeout")})

	a, err := svc.Assess(context.Background(), Request{
		Age: 55, Severity: "Mild", OnsetHours: 20, Symptoms: []string{"Headache"}, Notes: "bad headache",
	})
	require.NoError(t, err)
	assert.Equal(t, soap.ExtractionUnavailable, a.Notice)
	assert.Equal(t, "Patient reports Headache.", a.SOAP.Subjective)
}

func TestService_LoggingFailureDoesNotFailAssessment(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	svc := newTestService(failingRepo{NewMemoryRepository(0)}, notifier, nil)

	a, err := svc.Assess(context.Background(), Request{Age: 80, Severity: "Severe", OnsetHours: 10})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, triage.VerdictUrgent, a.Verdict)
	assert.Equal(t, 1, notifier.count())
}

func TestService_ListNewestFirst(t *testing.T) {
	repo := NewMemoryRepository(0)
	svc := newTestService(repo, nil, nil)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		a := &Assessment{
			ID:        uuid.New(),
			Patient:   triage.PatientContext{Age: 30 + i},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Save(context.Background(), a))
	}

	list, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 32, list[0].Patient.Age)
	assert.Equal(t, 30, list[2].Patient.Age)

	list, err = svc.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryRepository_EvictsOldest(t *testing.T) {
	repo := NewMemoryRepository(2)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	var first uuid.UUID
	for i := 0; i < 3; i++ {
		a := &Assessment{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if i == 0 {
			first = a.ID
		}
		require.NoError(t, repo.Save(ctx, a))
	}
	_, err := repo.GetByID(ctx, first)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
