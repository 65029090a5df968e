package beds

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	DefaultTotal        = 25
	DefaultLowThreshold = 5
)

// Readout is one simulated bed availability sample.
type Readout struct {
	Total     int       `json:"total"`
	Available int       `json:"available"`
	Occupied  int       `json:"occupied"`
	Low       bool      `json:"low"`
	At        time.Time `json:"at"`
}

// NewReadout clamps available into [0, total]; Low holds iff available is
// strictly below threshold.
func NewReadout(total, available, threshold int) Readout {
	if total < 0 {
		total = 0
	}
	if available < 0 {
		available = 0
	}
	if available > total {
		available = total
	}
	return Readout{
		Total:     total,
		Available: available,
		Occupied:  total - available,
		Low:       available < threshold,
		At:        time.Now().UTC(),
	}
}

// Source yields the current number of free beds out of capacity.
type Source interface {
	Available(ctx context.Context, capacity int) (int, error)
}

// RandomSource draws uniformly from [0, capacity].
type RandomSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSource seeds from the clock when rng is nil.
func NewRandomSource(rng *rand.Rand) *RandomSource {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomSource{rng: rng}
}

func (s *RandomSource) Available(_ context.Context, capacity int) (int, error) {
	if capacity <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(capacity + 1), nil
}
