package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"neuro-triage/internal/triage"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var ErrNotFound = errors.New("assessment not found")

type Repository interface {
	Save(ctx context.Context, a *Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error)
	List(ctx context.Context, limit int) ([]Assessment, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

const selectColumns = `id, age, severity, onset_hours, symptoms, notes, verdict, recommendations, plan, soap, entities, notice, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row rowScanner) (*Assessment, error) {
	var a Assessment
	var symptomsJSON, recsJSON, planJSON, soapJSON, entitiesJSON []byte
	var severity, verdict string

	err := row.Scan(
		&a.ID,
		&a.Patient.Age,
		&severity,
		&a.Patient.OnsetHours,
		&symptomsJSON,
		&a.Notes,
		&verdict,
		&recsJSON,
		&planJSON,
		&soapJSON,
		&entitiesJSON,
		&a.Notice,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Patient.Severity = triage.Severity(severity)
	a.Verdict = triage.Verdict(verdict)
	a.Disclaimer = Disclaimer

	fields := []struct {
		name string
		data []byte
		dst  interface{}
	}{
		{"symptoms", symptomsJSON, &a.Symptoms},
		{"recommendations", recsJSON, &a.Recommendations},
		{"plan", planJSON, &a.Plan},
		{"soap", soapJSON, &a.SOAP},
		{"entities", entitiesJSON, &a.Entities},
	}
	for _, f := range fields {
		if len(f.data) == 0 {
			continue
		}
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	return &a, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Assessment, error) {
	query := `SELECT ` + selectColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *postgresRepo) List(ctx context.Context, limit int) ([]Assessment, error) {
	query := `SELECT ` + selectColumns + ` FROM assessments ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (r *postgresRepo) Save(ctx context.Context, a *Assessment) error {
	symptomsJSON, err := json.Marshal(nonNil(a.Symptoms))
	if err != nil {
		return err
	}
	recsJSON, err := json.Marshal(a.Recommendations)
	if err != nil {
		return err
	}
	planJSON, err := json.Marshal(a.Plan)
	if err != nil {
		return err
	}
	soapJSON, err := json.Marshal(a.SOAP)
	if err != nil {
		return err
	}

	entitiesJSON, err := json.Marshal(a.Entities)
	if err != nil {
		return err
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO assessments (id, age, severity, onset_hours, symptoms, notes, verdict, recommendations, plan, soap, entities, notice, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			soap = $10,
			entities = $11,
			notice = $12
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Patient.Age, string(a.Patient.Severity), a.Patient.OnsetHours,
		symptomsJSON, a.Notes, string(a.Verdict), recsJSON, planJSON, soapJSON, entitiesJSON, a.Notice, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type memoryRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Assessment
	max   int
}

// NewMemoryRepository keeps at most max assessments, evicting the oldest.
func NewMemoryRepository(max int) Repository {
	if max <= 0 {
		max = MaxListLimit
	}
	return &memoryRepo{items: make(map[uuid.UUID]Assessment), max: max}
}

func (m *memoryRepo) Save(_ context.Context, a *Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.items[a.ID] = *a

	if len(m.items) > m.max {
		var oldest uuid.UUID
		var oldestAt time.Time
		for id, it := range m.items {
			if oldestAt.IsZero() || it.CreatedAt.Before(oldestAt) {
				oldest, oldestAt = id, it.CreatedAt
			}
		}
		delete(m.items, oldest)
	}
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memoryRepo) List(_ context.Context, limit int) ([]Assessment, error) {
	m.mu.RLock()
	list := make([]Assessment, 0, len(m.items))
	for _, a := range m.items {
		list = append(list, a)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
