package beds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

// Publisher receives every readout taken by Run, e.g. an MQTT board topic.
type Publisher interface {
	Publish(ctx context.Context, r Readout) error
}

type PublisherFunc func(ctx context.Context, r Readout) error

func (f PublisherFunc) Publish(ctx context.Context, r Readout) error { return f(ctx, r) }

// Config for a Poller. A negative LowThreshold selects the default; zero
// disables the low-availability warning.
type Config struct {
	Total        int
	LowThreshold int
	Interval     time.Duration
}

// Poller samples a Source on a fixed interval. Run is the only sampler once
// it is running: viewers read the cached board and subscribers receive the
// same readouts that are published.
type Poller struct {
	source    Source
	cfg       Config
	publisher Publisher
	logger    *zap.Logger

	mu     sync.Mutex
	latest *Readout
	subs   map[chan Readout]struct{}
}

func NewPoller(source Source, cfg Config, publisher Publisher, logger *zap.Logger) *Poller {
	if cfg.Total <= 0 {
		cfg.Total = DefaultTotal
	}
	if cfg.LowThreshold < 0 {
		cfg.LowThreshold = DefaultLowThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		source:    source,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		subs:      make(map[chan Readout]struct{}),
	}
}

func (p *Poller) Interval() time.Duration { return p.cfg.Interval }

func (p *Poller) sample(ctx context.Context) (Readout, error) {
	available, err := p.source.Available(ctx, p.cfg.Total)
	if err != nil {
		return Readout{}, fmt.Errorf("failed to read bed availability: %w", err)
	}
	return NewReadout(p.cfg.Total, available, p.cfg.LowThreshold), nil
}

// Latest returns the current board. Before Run has taken its first readout
// the source is sampled once and cached; nothing is published.
func (p *Poller) Latest(ctx context.Context) (Readout, error) {
	p.mu.Lock()
	if p.latest != nil {
		r := *p.latest
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	r, err := p.sample(ctx)
	if err != nil {
		return Readout{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		p.latest = &r
	}
	return *p.latest, nil
}

// Subscribe delivers the current board and then every readout taken by Run
// until ctx is done, at which point the channel is closed. A slow subscriber
// only ever holds the newest readout.
func (p *Poller) Subscribe(ctx context.Context) <-chan Readout {
	ch := make(chan Readout, 1)
	if r, err := p.Latest(ctx); err != nil {
		p.logger.Error("Bed poll failed", zap.Error(err))
	} else {
		ch <- r
	}

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subs, ch)
		close(ch)
		p.mu.Unlock()
	}()
	return ch
}

func (p *Poller) broadcast(r Readout) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = &r
	for ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- r
	}
}

// tick takes one readout, makes it the board and publishes it.
func (p *Poller) tick(ctx context.Context) {
	r, err := p.sample(ctx)
	if err != nil {
		p.logger.Error("Bed poll failed", zap.Error(err))
		return
	}
	p.broadcast(r)

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, r); err != nil {
			p.logger.Warn("Failed to publish bed readout", zap.Error(err))
		}
	}
}

// Run samples immediately and then once per interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Bed poller started", zap.Duration("interval", p.cfg.Interval))
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		p.tick(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			p.logger.Info("Bed poller stopped")
			return
		}
	}
}
