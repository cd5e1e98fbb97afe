// Package ledger keeps the per-user record of quota consumption and
// privilege. Every read-modify-write for a given user id is serialized
// through a per-key lock, so backends only need consistent point reads
// and whole-record writes.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/silviaroy/upscalerd/internal/apperror"
	"github.com/silviaroy/upscalerd/internal/logger"
)

// ErrUnknownUser is returned by stores when no record exists for an id.
var ErrUnknownUser = errors.New("ledger: unknown user")

type UserRecord struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	IsVIP        bool      `json:"is_vip"`
	UsageCount   int       `json:"usage_count"`
	RegisteredAt time.Time `json:"registered_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Store is the durable backend. Put is a whole-record upsert.
type Store interface {
	Get(ctx context.Context, id string) (*UserRecord, error)
	Put(ctx context.Context, rec *UserRecord) error
	List(ctx context.Context) ([]UserRecord, error)
}

type Stats struct {
	TotalUsers  int `json:"total_users"`
	VIPUsers    int `json:"vip_users"`
	TotalUsage  int `json:"total_usage"`
	ActiveUsers int `json:"active_users"` // active within the last 7 days
}

const activeWindow = 7 * 24 * time.Hour

type Ledger struct {
	store       Store
	adminID     string
	maxFreeUses int

	locks sync.Map // user id -> *sync.Mutex
	now   func() time.Time
}

type Option func(*Ledger)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(store Store, adminID string, maxFreeUses int, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		adminID:     adminID,
		maxFreeUses: maxFreeUses,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) lock(id string) func() {
	v, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// EnsureUser upserts the record for id. New users start with zero usage
// and no VIP flag; existing users get their display name and last-active
// timestamp refreshed. Idempotent.
func (l *Ledger) EnsureUser(ctx context.Context, id, displayName string) (*UserRecord, error) {
	defer l.lock(id)()

	now := l.now()
	rec, err := l.store.Get(ctx, id)
	switch {
	case errors.Is(err, ErrUnknownUser):
		rec = &UserRecord{
			ID:           id,
			DisplayName:  displayName,
			RegisteredAt: now,
		}
		logger.FromContext(ctx).Info("registering new user", "user_id", id)
	case err != nil:
		return nil, apperror.Wrap(err, apperror.ErrStorage)
	default:
		if displayName != "" {
			rec.DisplayName = displayName
		}
	}

	rec.LastActiveAt = now
	if err := l.store.Put(ctx, rec); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrStorage)
	}
	return rec, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*UserRecord, error) {
	rec, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrUnknownUser) {
		return nil, apperror.Wrap(err, apperror.ErrUserNotFound)
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrStorage)
	}
	return rec, nil
}

// CheckAndReserve admits or denies one job for id. Privileged users are
// always admitted with no mutation. Standard users consume one unit of
// quota at admission time; two concurrent calls can never both take the
// last unit. An unknown id is a programming error upstream (EnsureUser
// runs on every interaction) and is reported as user-not-found.
func (l *Ledger) CheckAndReserve(ctx context.Context, id string) (bool, error) {
	defer l.lock(id)()

	rec, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrUnknownUser) {
		return false, apperror.Wrap(err, apperror.ErrUserNotFound)
	}
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrStorage)
	}

	if l.isPrivileged(rec) {
		return true, nil
	}

	if rec.UsageCount >= l.maxFreeUses {
		return false, nil
	}

	rec.UsageCount++
	rec.LastActiveAt = l.now()
	if err := l.store.Put(ctx, rec); err != nil {
		// All-or-nothing: the in-memory copy is discarded, nothing was
		// reserved.
		return false, apperror.Wrap(err, apperror.ErrStorage)
	}
	return true, nil
}

// SetVIP flips the VIP flag. Returns false when the user is unknown.
func (l *Ledger) SetVIP(ctx context.Context, id string, vip bool) (bool, error) {
	defer l.lock(id)()

	rec, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrUnknownUser) {
		return false, nil
	}
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrStorage)
	}

	rec.IsVIP = vip
	rec.LastActiveAt = l.now()
	if err := l.store.Put(ctx, rec); err != nil {
		return false, apperror.Wrap(err, apperror.ErrStorage)
	}
	return true, nil
}

// ResetUsage zeroes the usage counter. Returns false when the user is
// unknown.
func (l *Ledger) ResetUsage(ctx context.Context, id string) (bool, error) {
	defer l.lock(id)()

	rec, err := l.store.Get(ctx, id)
	if errors.Is(err, ErrUnknownUser) {
		return false, nil
	}
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrStorage)
	}

	rec.UsageCount = 0
	rec.LastActiveAt = l.now()
	if err := l.store.Put(ctx, rec); err != nil {
		return false, apperror.Wrap(err, apperror.ErrStorage)
	}
	return true, nil
}

func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	users, err := l.store.List(ctx)
	if err != nil {
		return Stats{}, apperror.Wrap(err, apperror.ErrStorage)
	}

	cutoff := l.now().Add(-activeWindow)
	stats := Stats{TotalUsers: len(users)}
	for _, u := range users {
		if u.IsVIP {
			stats.VIPUsers++
		}
		stats.TotalUsage += u.UsageCount
		if u.LastActiveAt.After(cutoff) {
			stats.ActiveUsers++
		}
	}
	return stats, nil
}

// IsPrivileged reports whether rec bypasses quota (VIP flag or the
// administrative identity).
func (l *Ledger) IsPrivileged(rec *UserRecord) bool {
	return l.isPrivileged(rec)
}

func (l *Ledger) isPrivileged(rec *UserRecord) bool {
	return rec.IsVIP || (l.adminID != "" && rec.ID == l.adminID)
}

// Remaining reports free-quota units left. Only meaningful for
// non-privileged users.
func (l *Ledger) Remaining(rec *UserRecord) int {
	remaining := l.maxFreeUses - rec.UsageCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
