package assessment

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuro-triage/internal/soap"
	"neuro-triage/internal/triage"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

var columns = []string{
	"id", "age", "severity", "onset_hours", "symptoms", "notes", "verdict",
	"recommendations", "plan", "soap", "entities", "notice", "created_at",
}

func TestPostgresRepo_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := &Assessment{
		ID:       uuid.New(),
		Patient:  triage.PatientContext{Age: 70, Severity: triage.SeveritySevere, OnsetHours: 2},
		Symptoms: []string{"Paralysis"},
		Verdict:  triage.VerdictUrgent,
		SOAP:     soap.Note{Subjective: "Patient reports Paralysis."},
	}

	mock.ExpectExec(`INSERT INTO assessments`).
		WithArgs(a.ID, 70, "Severe", 2.0, []byte(`["Paralysis"]`), "", "Urgent",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), []byte("null"), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), a))
	assert.False(t, a.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_SaveError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO assessments`).WillReturnError(sql.ErrConnDone)

	err := repo.Save(context.Background(), &Assessment{ID: uuid.New()})
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresRepo_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM assessments WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			id.String(), 64, "Moderate", 5.5,
			[]byte(`["Speech difficulty"]`), "cannot find words", "Semi-Urgent",
			[]byte(`{"categories":["aphasia"],"lines":["Speech and language therapy recommended for aphasia."]}`),
			[]byte(`[{"week":"Week 1","activity":"Physical therapy & monitoring"}]`),
			[]byte(`{"subjective":"Patient reports Speech difficulty.","objective":"","assessment":"Triage level: Semi-Urgent.","plan":""}`),
			[]byte(`[{"text":"cannot find words","label":"SYMPTOM"}]`),
			"", created,
		))

	a, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, a.ID)
	assert.Equal(t, triage.SeverityModerate, a.Patient.Severity)
	assert.Equal(t, 5.5, a.Patient.OnsetHours)
	assert.Equal(t, triage.VerdictSemiUrgent, a.Verdict)
	assert.Equal(t, []string{"Speech difficulty"}, a.Symptoms)
	assert.True(t, a.Recommendations.Matched(triage.CategoryAphasia))
	assert.Len(t, a.Plan, 1)
	assert.Equal(t, "Triage level: Semi-Urgent.", a.SOAP.Assessment)
	assert.Equal(t, []soap.Entity{{Text: "cannot find words", Label: soap.LabelSymptom}}, a.Entities)
	assert.Equal(t, Disclaimer, a.Disclaimer)
	assert.Equal(t, created, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM assessments WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_GetByIDCorruptJSON(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM assessments`).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			id.String(), 64, "Mild", 1.0, []byte(`{not json`), "", "Urgent",
			nil, nil, nil, nil, "", time.Now(),
		))

	_, err := repo.GetByID(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symptoms")
}

func TestPostgresRepo_List(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(columns)
	for i := 0; i < 2; i++ {
		rows.AddRow(uuid.New().String(), 50+i, "Mild", 24.0, []byte(`[]`), "", "Routine",
			[]byte(`{"categories":[],"lines":["No specific therapy found."]}`), []byte(`[]`), []byte(`{}`), []byte(`[]`),
			"", now.Add(-time.Duration(i)*time.Hour))
	}
	mock.ExpectQuery(`SELECT (.+) FROM assessments ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 50, list[0].Patient.Age)
	assert.Equal(t, triage.VerdictRoutine, list[1].Verdict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
