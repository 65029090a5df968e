package beds

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewReadout_LowThreshold(t *testing.T) {
	for available := 0; available <= DefaultTotal; available++ {
		r := NewReadout(DefaultTotal, available, DefaultLowThreshold)
		assert.Equal(t, available < 5, r.Low, "available=%d", available)
		assert.Equal(t, DefaultTotal, r.Available+r.Occupied)
	}
}

func TestNewReadout_Clamps(t *testing.T) {
	r := NewReadout(25, 40, 5)
	assert.Equal(t, 25, r.Available)
	assert.Equal(t, 0, r.Occupied)

	r = NewReadout(25, -3, 5)
	assert.Equal(t, 0, r.Available)
	assert.True(t, r.Low)
}

func TestRandomSource_Range(t *testing.T) {
	src := NewRandomSource(rand.New(rand.NewSource(42)))
	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		n, err := src.Available(context.Background(), DefaultTotal)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 0)
		require.LessOrEqual(t, n, DefaultTotal)
		seen[n] = true
	}
	assert.True(t, seen[0], "lower bound reachable")
	assert.True(t, seen[DefaultTotal], "upper bound reachable")

	n, err := src.Available(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRandomSource_SeededIsReproducible(t *testing.T) {
	a := NewRandomSource(rand.New(rand.NewSource(7)))
	b := NewRandomSource(rand.New(rand.NewSource(7)))
	for i := 0; i < 10; i++ {
		x, _ := a.Available(context.Background(), 25)
		y, _ := b.Available(context.Background(), 25)
		assert.Equal(t, x, y)
	}
}

type fixedSource struct {
	mu     sync.Mutex
	values []int
	calls  int
	err    error
}

func (f *fixedSource) Available(context.Context, int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	v := f.values[f.calls%len(f.values)]
	f.calls++
	return v, nil
}

func (f *fixedSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu       sync.Mutex
	readouts []Readout
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, r Readout) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readouts = append(p.readouts, r)
	return p.err
}

func (p *recordingPublisher) available() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, 0, len(p.readouts))
	for _, r := range p.readouts {
		out = append(out, r.Available)
	}
	return out
}

func TestPoller_LatestDoesNotPublish(t *testing.T) {
	pub := &recordingPublisher{}
	src := &fixedSource{values: []int{3, 9}}
	p := NewPoller(src, Config{LowThreshold: DefaultLowThreshold}, pub, zap.NewNop())

	r, err := p.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, r.Total)
	assert.Equal(t, 3, r.Available)
	assert.True(t, r.Low)

	// Cached until the next tick.
	r, err = p.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, r.Available)
	assert.Equal(t, 1, src.count())
	assert.Empty(t, pub.available())
}

func TestPoller_LatestSourceError(t *testing.T) {
	p := NewPoller(&fixedSource{err: errors.New("boom")}, Config{}, nil, zap.NewNop())
	_, err := p.Latest(context.Background())
	assert.Error(t, err)
}

func TestPoller_RunIsTheOnlyPublisher(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	src := &fixedSource{values: []int{23, 21, 11, 1}}
	p := NewPoller(src, Config{Interval: 10 * time.Millisecond}, pub, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(pub.available()) > 0 }, time.Second, time.Millisecond)

	subCtx, subCancel := context.WithCancel(ctx)
	first := p.Subscribe(subCtx)
	second := p.Subscribe(subCtx)
	for i := 0; i < 3; i++ {
		_, err := p.Latest(ctx)
		require.NoError(t, err)
	}

	var seen []int
	for _, ch := range []<-chan Readout{first, second} {
		for i := 0; i < 3; i++ {
			seen = append(seen, (<-ch).Available)
		}
	}
	subCancel()
	cancel()
	<-done

	published := pub.available()
	assert.Equal(t, src.count(), len(published), "one sample per tick, each published once")
	for _, v := range seen {
		assert.Contains(t, published, v)
	}
}

func TestPoller_SubscribeClosesOnCancel(t *testing.T) {
	p := NewPoller(&fixedSource{values: []int{10, 2, 20}}, Config{Interval: 5 * time.Millisecond}, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	subCtx, subCancel := context.WithCancel(ctx)
	stream := p.Subscribe(subCtx)
	<-stream
	<-stream
	subCancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-stream:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestPoller_ZeroThresholdDisablesWarning(t *testing.T) {
	p := NewPoller(&fixedSource{values: []int{0}}, Config{LowThreshold: 0}, nil, zap.NewNop())
	r, err := p.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, r.Low)
}

func TestPoller_Defaults(t *testing.T) {
	p := NewPoller(NewRandomSource(nil), Config{LowThreshold: -1}, nil, zap.NewNop())
	assert.Equal(t, DefaultInterval, p.Interval())
	assert.Equal(t, DefaultTotal, p.cfg.Total)
	assert.Equal(t, DefaultLowThreshold, p.cfg.LowThreshold)
}
