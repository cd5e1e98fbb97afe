package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-node
// development runs. Safe for concurrent use.
type MemoryStore struct {
	users map[string]UserRecord
	mu    sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]UserRecord),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return nil, ErrUnknownUser
	}
	return &rec, nil
}

func (s *MemoryStore) Put(ctx context.Context, rec *UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[rec.ID] = *rec
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec)
	}
	return out, nil
}
