package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrNotFound = errors.New("capture session not found")

// DefaultTTL bounds how long an abandoned capture keeps its state.
const DefaultTTL = 15 * time.Minute

// Store holds the per-session recording flag and the audio captured while it
// is set. Start and Stop report whether they changed the flag.
type Store interface {
	Create(ctx context.Context, id string) error
	Start(ctx context.Context, id string) (bool, error)
	Append(ctx context.Context, id string, chunk []byte) (bool, error)
	Stop(ctx context.Context, id string) ([]byte, bool, error)
	Recording(ctx context.Context, id string) (bool, error)
}

type redisStore struct {
	c   *redis.Client
	ttl time.Duration
}

func NewRedisStore(c *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisStore{c: c, ttl: ttl}
}

func sessionKey(id string) string   { return "capture:" + id }
func recordingKey(id string) string { return "capture:" + id + ":recording" }
func audioKey(id string) string     { return "capture:" + id + ":audio" }

func (r *redisStore) Create(ctx context.Context, id string) error {
	if err := r.c.Set(ctx, sessionKey(id), "idle", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to create capture session: %w", err)
	}
	return nil
}

func (r *redisStore) exists(ctx context.Context, id string) error {
	n, err := r.c.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *redisStore) Start(ctx context.Context, id string) (bool, error) {
	if err := r.exists(ctx, id); err != nil {
		return false, err
	}
	// SET NX is the guard: a second start while recording is a no-op.
	started, err := r.c.SetNX(ctx, recordingKey(id), "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to start capture: %w", err)
	}
	if !started {
		return false, nil
	}
	_, err = r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, audioKey(id))
		p.Expire(ctx, sessionKey(id), r.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to reset capture buffer: %w", err)
	}
	return true, nil
}

func (r *redisStore) Append(ctx context.Context, id string, chunk []byte) (bool, error) {
	recording, err := r.Recording(ctx, id)
	if err != nil || !recording {
		return false, err
	}
	_, err = r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Append(ctx, audioKey(id), string(chunk))
		// Activity keeps the whole session alive.
		p.Expire(ctx, audioKey(id), r.ttl)
		p.Expire(ctx, recordingKey(id), r.ttl)
		p.Expire(ctx, sessionKey(id), r.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to append audio chunk: %w", err)
	}
	return true, nil
}

func (r *redisStore) Stop(ctx context.Context, id string) ([]byte, bool, error) {
	if err := r.exists(ctx, id); err != nil {
		return nil, false, err
	}

	var del *redis.IntCmd
	var get *redis.StringCmd
	_, err := r.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, recordingKey(id))
		get = p.Get(ctx, audioKey(id))
		p.Del(ctx, audioKey(id))
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, false, fmt.Errorf("failed to stop capture: %w", err)
	}
	if del.Val() == 0 {
		return nil, false, nil
	}

	audio, err := get.Bytes()
	if err != nil && err != redis.Nil {
		return nil, false, err
	}
	return audio, true, nil
}

func (r *redisStore) Recording(ctx context.Context, id string) (bool, error) {
	if err := r.exists(ctx, id); err != nil {
		return false, err
	}
	n, err := r.c.Exists(ctx, recordingKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DefaultMaxSessions caps the in-memory store.
const DefaultMaxSessions = 1000

type capture struct {
	recording bool
	audio     bytes.Buffer
	touched   time.Time
}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*capture
	ttl      time.Duration
	max      int
	now      func() time.Time
}

// NewMemoryStore is the single-process fallback used when Redis is not
// configured. Sessions idle for longer than DefaultTTL are dropped, and the
// least recently used one is evicted once DefaultMaxSessions is reached.
func NewMemoryStore() Store {
	return newMemoryStore(DefaultTTL, DefaultMaxSessions, time.Now)
}

func newMemoryStore(ttl time.Duration, max int, now func() time.Time) *memoryStore {
	return &memoryStore{
		sessions: make(map[string]*capture),
		ttl:      ttl,
		max:      max,
		now:      now,
	}
}

func (m *memoryStore) Create(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var oldestID string
	var oldest time.Time
	for sid, c := range m.sessions {
		if now.Sub(c.touched) > m.ttl {
			delete(m.sessions, sid)
			continue
		}
		if oldestID == "" || c.touched.Before(oldest) {
			oldestID, oldest = sid, c.touched
		}
	}
	if len(m.sessions) >= m.max && oldestID != "" {
		delete(m.sessions, oldestID)
	}

	m.sessions[id] = &capture{touched: now}
	return nil
}

// get returns a live session and marks it as used.
func (m *memoryStore) get(id string) (*capture, error) {
	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := m.now()
	if now.Sub(c.touched) > m.ttl {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	c.touched = now
	return c, nil
}

func (m *memoryStore) Start(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(id)
	if err != nil {
		return false, err
	}
	if c.recording {
		return false, nil
	}
	c.recording = true
	c.audio.Reset()
	return true, nil
}

func (m *memoryStore) Append(_ context.Context, id string, chunk []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(id)
	if err != nil || !c.recording {
		return false, err
	}
	c.audio.Write(chunk)
	return true, nil
}

func (m *memoryStore) Stop(_ context.Context, id string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(id)
	if err != nil {
		return nil, false, err
	}
	if !c.recording {
		return nil, false, nil
	}
	c.recording = false
	audio := append([]byte(nil), c.audio.Bytes()...)
	c.audio.Reset()
	return audio, true, nil
}

func (m *memoryStore) Recording(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(id)
	if err != nil {
		return false, err
	}
	return c.recording, nil
}
