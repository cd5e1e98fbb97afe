package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silviaroy/upscalerd/internal/apperror"
)

const (
	testAdminID = "admin-1"
	maxFreeUses = 10
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(NewMemoryStore(), testAdminID, maxFreeUses)
}

func TestEnsureUserIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	first, err := l.EnsureUser(ctx, "u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, first.UsageCount)
	assert.False(t, first.IsVIP)
	assert.False(t, first.RegisteredAt.IsZero())

	second, err := l.EnsureUser(ctx, "u1", "alice-renamed")
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", second.DisplayName)
	assert.Equal(t, first.RegisteredAt, second.RegisteredAt)
	assert.Equal(t, 0, second.UsageCount)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalUsers)
}

func TestEnsureUserKeepsNameWhenEmpty(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.EnsureUser(ctx, "u1", "alice")
	require.NoError(t, err)

	rec, err := l.EnsureUser(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.DisplayName)
}

func TestCheckAndReserveConsumesQuota(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.EnsureUser(ctx, "u1", "alice")
	require.NoError(t, err)

	for i := 0; i < maxFreeUses; i++ {
		allowed, err := l.CheckAndReserve(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be admitted", i)
	}

	allowed, err := l.CheckAndReserve(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, allowed, "request past the limit should be denied")

	rec, err := l.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, maxFreeUses, rec.UsageCount, "denied request must not mutate usage")
}

func TestCheckAndReserveConcurrent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.EnsureUser(ctx, "u1", "alice")
	require.NoError(t, err)

	const requests = 50
	var wg sync.WaitGroup
	results := make(chan bool, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := l.CheckAndReserve(ctx, "u1")
			if err != nil {
				t.Error(err)
				return
			}
			results <- allowed
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for allowed := range results {
		if allowed {
			admitted++
		}
	}
	assert.Equal(t, maxFreeUses, admitted, "exactly the free quota should be admitted")

	rec, err := l.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, maxFreeUses, rec.UsageCount)
}

func TestPrivilegedBypass(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	tests := []struct {
		name  string
		id    string
		setup func(t *testing.T)
	}{
		{
			name: "vip user",
			id:   "vip-user",
			setup: func(t *testing.T) {
				_, err := l.EnsureUser(ctx, "vip-user", "bob")
				require.NoError(t, err)
				ok, err := l.SetVIP(ctx, "vip-user", true)
				require.NoError(t, err)
				require.True(t, ok)
			},
		},
		{
			name: "admin user",
			id:   testAdminID,
			setup: func(t *testing.T) {
				_, err := l.EnsureUser(ctx, testAdminID, "root")
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)

			for i := 0; i < maxFreeUses*3; i++ {
				allowed, err := l.CheckAndReserve(ctx, tt.id)
				require.NoError(t, err)
				assert.True(t, allowed)
			}

			rec, err := l.Get(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, 0, rec.UsageCount, "privileged admission must not mutate usage")
		})
	}
}

func TestCheckAndReserveUnknownUser(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.CheckAndReserve(ctx, "nobody")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrUserNotFound))
}

func TestSetVIPUnknownUser(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	ok, err := l.SetVIP(ctx, "nobody", true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetUsage(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.EnsureUser(ctx, "u1", "alice")
	require.NoError(t, err)

	for i := 0; i < maxFreeUses; i++ {
		_, err := l.CheckAndReserve(ctx, "u1")
		require.NoError(t, err)
	}

	ok, err := l.ResetUsage(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)

	allowed, err := l.CheckAndReserve(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, allowed, "reset should free up quota again")

	ok, err = l.ResetUsage(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := New(NewMemoryStore(), testAdminID, maxFreeUses, WithClock(func() time.Time { return now }))

	_, err := l.EnsureUser(ctx, "u1", "alice")
	require.NoError(t, err)
	_, err = l.EnsureUser(ctx, "u2", "bob")
	require.NoError(t, err)

	ok, err := l.SetVIP(ctx, "u2", true)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 3; i++ {
		_, err := l.CheckAndReserve(ctx, "u1")
		require.NoError(t, err)
	}

	// Push u1 out of the 7-day activity window.
	stale := *mustGet(t, l, "u1")
	stale.LastActiveAt = now.Add(-8 * 24 * time.Hour)
	require.NoError(t, l.store.Put(ctx, &stale))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalUsers: 2, VIPUsers: 1, TotalUsage: 3, ActiveUsers: 1}, stats)
}

func TestRemaining(t *testing.T) {
	l := newTestLedger(t)

	tests := []struct {
		usage int
		want  int
	}{
		{0, maxFreeUses},
		{3, maxFreeUses - 3},
		{maxFreeUses, 0},
		{maxFreeUses + 5, 0},
	}

	for _, tt := range tests {
		got := l.Remaining(&UserRecord{UsageCount: tt.usage})
		if got != tt.want {
			t.Errorf("Remaining(usage=%d) = %d, want %d", tt.usage, got, tt.want)
		}
	}
}

func TestStorageErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	l := New(&failingStore{err: boom}, testAdminID, maxFreeUses)

	_, err := l.EnsureUser(ctx, "u1", "alice")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrStorage))
	assert.True(t, errors.Is(err, boom), "cause should stay wrapped")
}

func TestCheckAndReservePutFailureReservesNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	store := &putFailingStore{Store: NewMemoryStore()}
	l := New(store, testAdminID, maxFreeUses)

	_, err := l.EnsureUser(ctx, "u1", "alice")
	require.NoError(t, err)

	store.putErr = boom
	allowed, err := l.CheckAndReserve(ctx, "u1")
	assert.False(t, allowed)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrStorage))
	assert.True(t, errors.Is(err, boom), "cause should stay wrapped")

	store.putErr = nil
	rec := mustGet(t, l, "u1")
	assert.Equal(t, 0, rec.UsageCount, "failed reserve must not consume a unit")

	allowed, err = l.CheckAndReserve(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, mustGet(t, l, "u1").UsageCount)
}

func mustGet(t *testing.T, l *Ledger, id string) *UserRecord {
	t.Helper()
	rec, err := l.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

type failingStore struct {
	err error
}

func (s *failingStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	return nil, s.err
}

func (s *failingStore) Put(ctx context.Context, rec *UserRecord) error {
	return s.err
}

func (s *failingStore) List(ctx context.Context) ([]UserRecord, error) {
	return nil, s.err
}

// putFailingStore delegates to a working Store until putErr is set.
type putFailingStore struct {
	Store
	putErr error
}

func (s *putFailingStore) Put(ctx context.Context, rec *UserRecord) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.Store.Put(ctx, rec)
}
