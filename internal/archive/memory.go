package archive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage for tests.
type MemoryStorage struct {
	objects map[string]memoryObject
	mu      sync.RWMutex
}

type memoryObject struct {
	data        []byte
	contentType string
	modTime     time.Time
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
	}
}

func (s *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, contentType string, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType, modTime: time.Now()}
	return nil
}

func (s *MemoryStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var objects []ObjectInfo
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, LastModified: obj.modTime})
		}
	}
	return objects, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// backdate moves an object's modification time for retention tests.
func (s *MemoryStorage) backdate(key string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[key]; ok {
		obj.modTime = t
		s.objects[key] = obj
	}
}
