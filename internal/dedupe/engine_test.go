// ABOUTME: Tests for the dedup engine's claim/release semantics
// ABOUTME: Covers at-most-once execution, retry after failure, TTL expiry, and fail-open

package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/session-gateway/internal/store"
)

func newTestEngine(t *testing.T, ttl time.Duration) *Engine {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, ttl, nil)
}

func TestProcessOnce_RunsHandler(t *testing.T) {
	engine := newTestEngine(t, DefaultTTL)

	ran := false
	processed, err := engine.ProcessOnce(context.Background(), "wamid.AAA", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, ran)
}

func TestProcessOnce_SkipsDuplicate(t *testing.T) {
	engine := newTestEngine(t, DefaultTTL)
	ctx := context.Background()

	calls := 0
	handler := func(ctx context.Context) error {
		calls++
		return nil
	}

	processed, err := engine.ProcessOnce(ctx, "wamid.AAA", handler)
	require.NoError(t, err)
	require.True(t, processed)

	// Redelivery must be a successful no-op, never an error
	processed, err = engine.ProcessOnce(ctx, "wamid.AAA", handler)
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, 1, calls)
}

func TestProcessOnce_HandlerFailureAllowsRetry(t *testing.T) {
	engine := newTestEngine(t, DefaultTTL)
	ctx := context.Background()
	boom := errors.New("boom")

	processed, err := engine.ProcessOnce(ctx, "wamid.AAA", func(ctx context.Context) error {
		return boom
	})
	assert.True(t, processed)
	require.ErrorIs(t, err, boom)

	// The failed claim was released, so the retry runs a fresh handler
	ran := false
	processed, err = engine.ProcessOnce(ctx, "wamid.AAA", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, ran)
}

func TestProcessOnce_ReprocessesAfterTTL(t *testing.T) {
	engine := newTestEngine(t, time.Hour)
	ctx := context.Background()

	calls := 0
	handler := func(ctx context.Context) error {
		calls++
		return nil
	}

	start := time.Now()
	engine.now = func() time.Time { return start }
	_, err := engine.ProcessOnce(ctx, "wamid.AAA", handler)
	require.NoError(t, err)

	// Within the TTL the event stays suppressed
	engine.now = func() time.Time { return start.Add(30 * time.Minute) }
	processed, err := engine.ProcessOnce(ctx, "wamid.AAA", handler)
	require.NoError(t, err)
	assert.False(t, processed)

	// Past the TTL the claim is expired and the event processes again
	engine.now = func() time.Time { return start.Add(2 * time.Hour) }
	processed, err = engine.ProcessOnce(ctx, "wamid.AAA", handler)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 2, calls)
}

func TestProcessOnce_ConcurrentDeliveries(t *testing.T) {
	engine := newTestEngine(t, DefaultTTL)
	ctx := context.Background()

	var calls atomic.Int32
	handler := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}

	const deliveries = 20
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.ProcessOnce(ctx, "wamid.AAA", handler); err != nil {
				t.Errorf("ProcessOnce failed: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "handler must run exactly once")
}

func TestProcessOnce_SlowHandlerBlocksRedelivery(t *testing.T) {
	engine := newTestEngine(t, DefaultTTL)
	ctx := context.Background()

	started := make(chan struct{})
	finish := make(chan struct{})
	var calls atomic.Int32

	go func() {
		_, _ = engine.ProcessOnce(ctx, "wamid.AAA", func(ctx context.Context) error {
			calls.Add(1)
			close(started)
			<-finish
			return nil
		})
	}()

	<-started

	// Redelivery while the first handler is still running must skip: the
	// claim happens strictly before handler execution.
	processed, err := engine.ProcessOnce(ctx, "wamid.AAA", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, processed)

	close(finish)
	assert.Equal(t, int32(1), calls.Load())
}

// failingDedupStore simulates an unavailable claim store
type failingDedupStore struct {
	releaseErr error
	released   atomic.Int32
}

var errClaimStoreDown = errors.New("claim store down")

func (f *failingDedupStore) ClaimEvent(ctx context.Context, eventID string, now time.Time, ttl time.Duration) (bool, error) {
	return false, errClaimStoreDown
}
func (f *failingDedupStore) ReleaseEvent(ctx context.Context, eventID string) error {
	f.released.Add(1)
	return f.releaseErr
}
func (f *failingDedupStore) EventClaimed(ctx context.Context, eventID string, now time.Time) (bool, error) {
	return false, errClaimStoreDown
}
func (f *failingDedupStore) DeleteExpiredClaims(ctx context.Context, now time.Time) (int64, error) {
	return 0, errClaimStoreDown
}

func TestProcessOnce_FailsOpenOnClaimError(t *testing.T) {
	engine := New(&failingDedupStore{}, DefaultTTL, nil)

	ran := false
	processed, err := engine.ProcessOnce(context.Background(), "wamid.AAA", func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, processed)
	assert.True(t, ran, "a claim-store outage must not block processing")
}

func TestProcessOnce_NoReleaseWithoutClaim(t *testing.T) {
	fs := &failingDedupStore{}
	engine := New(fs, DefaultTTL, nil)
	boom := errors.New("boom")

	// Handler failed on the fail-open path; there is no claim to release.
	_, err := engine.ProcessOnce(context.Background(), "wamid.AAA", func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), fs.released.Load())
}

func TestProcessOnce_ReleaseFailureStillPropagatesHandlerError(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	// Wrap the real store so claims succeed but releases fail
	engine := New(&releaseFailStore{DedupStore: st}, DefaultTTL, nil)
	boom := errors.New("boom")

	_, err = engine.ProcessOnce(context.Background(), "wamid.AAA", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

type releaseFailStore struct {
	store.DedupStore
}

func (r *releaseFailStore) ReleaseEvent(ctx context.Context, eventID string) error {
	return errors.New("release failed")
}
