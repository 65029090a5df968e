package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, Store) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStore(client, time.Minute)
}

// Both backends must honour the same start/stop contract.
func stores(t *testing.T) map[string]Store {
	_, rs := setupRedisStore(t)
	return map[string]Store{
		"redis":  rs,
		"memory": NewMemoryStore(),
	}
}

func TestService_CaptureLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(store, zap.NewNop())

			id, err := svc.NewCapture(ctx)
			require.NoError(t, err)

			recording, err := svc.Recording(ctx, id)
			require.NoError(t, err)
			assert.False(t, recording)

			// Chunks before start are dropped.
			accepted, err := svc.AppendChunk(ctx, id, []byte("early"))
			require.NoError(t, err)
			assert.False(t, accepted)

			started, err := svc.StartCapture(ctx, id)
			require.NoError(t, err)
			assert.True(t, started)

			started, err = svc.StartCapture(ctx, id)
			require.NoError(t, err)
			assert.False(t, started, "second start must be a no-op")

			for _, chunk := range []string{"RIFF", "-", "data"} {
				accepted, err := svc.AppendChunk(ctx, id, []byte(chunk))
				require.NoError(t, err)
				assert.True(t, accepted)
			}

			audio, stopped, err := svc.StopCapture(ctx, id)
			require.NoError(t, err)
			assert.True(t, stopped)
			assert.Equal(t, []byte("RIFF-data"), audio)

			audio, stopped, err = svc.StopCapture(ctx, id)
			require.NoError(t, err)
			assert.False(t, stopped, "stop while idle must be a no-op")
			assert.Nil(t, audio)

			// A restart begins with an empty buffer.
			_, err = svc.StartCapture(ctx, id)
			require.NoError(t, err)
			audio, stopped, err = svc.StopCapture(ctx, id)
			require.NoError(t, err)
			assert.True(t, stopped)
			assert.Empty(t, audio)
		})
	}
}

func TestService_UnknownSession(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(store, zap.NewNop())

			_, err := svc.StartCapture(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = svc.AppendChunk(ctx, "missing", []byte("x"))
			assert.ErrorIs(t, err, ErrNotFound)

			_, _, err = svc.StopCapture(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestService_ConcurrentStartIsExclusive(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			svc := NewService(store, zap.NewNop())
			id, err := svc.NewCapture(ctx)
			require.NoError(t, err)

			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					started, err := svc.StartCapture(ctx, id)
					assert.NoError(t, err)
					if started {
						atomic.AddInt32(&wins, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

func TestService_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), zap.NewNop())

	a, err := svc.NewCapture(ctx)
	require.NoError(t, err)
	b, err := svc.NewCapture(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = svc.StartCapture(ctx, a)
	require.NoError(t, err)

	recording, err := svc.Recording(ctx, b)
	require.NoError(t, err)
	assert.False(t, recording)
}

func TestRedisStore_Expiry(t *testing.T) {
	mr, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "abc"))
	started, err := store.Start(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, started)
	assert.True(t, mr.Exists(recordingKey("abc")))

	mr.FastForward(2 * time.Minute)

	_, err = store.Start(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ChunksKeepSessionAlive(t *testing.T) {
	mr, store := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "dictation"))
	started, err := store.Start(ctx, "dictation")
	require.NoError(t, err)
	require.True(t, started)

	// The TTL is one minute; a chunk every 40s keeps the capture open well
	// past it.
	for i := 0; i < 5; i++ {
		mr.FastForward(40 * time.Second)
		accepted, err := store.Append(ctx, "dictation", []byte{byte('a' + i)})
		require.NoError(t, err, "chunk %d", i)
		assert.True(t, accepted, "chunk %d", i)
	}

	audio, stopped, err := store.Stop(ctx, "dictation")
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.Equal(t, []byte("abcde"), audio)

	// An idle session still expires.
	mr.FastForward(2 * time.Minute)
	_, err = store.Recording(ctx, "dictation")
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryStore_ExpiresIdleSessions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	store := newMemoryStore(time.Minute, 10, clock.now)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "active"))
	require.NoError(t, store.Create(ctx, "idle"))
	_, err := store.Start(ctx, "active")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		clock.advance(40 * time.Second)
		accepted, err := store.Append(ctx, "active", []byte("x"))
		require.NoError(t, err)
		assert.True(t, accepted)
	}

	_, err = store.Recording(ctx, "idle")
	assert.ErrorIs(t, err, ErrNotFound)

	// Creating sweeps expired entries.
	clock.advance(2 * time.Minute)
	require.NoError(t, store.Create(ctx, "next"))
	assert.Len(t, store.sessions, 1)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)}
	store := newMemoryStore(time.Hour, 3, clock.now)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Create(ctx, id))
		clock.advance(time.Second)
	}
	// Touching "a" makes "b" the eviction candidate.
	_, err := store.Recording(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, "d"))
	assert.Len(t, store.sessions, 3)

	_, err = store.Recording(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
	for _, id := range []string{"a", "c", "d"} {
		_, err := store.Recording(ctx, id)
		assert.NoError(t, err, id)
	}
}
