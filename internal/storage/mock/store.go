package mock

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/storage"
)

var _ storage.ObjectStore = (*Store)(nil)

type object struct {
	data        []byte
	contentType string
}

// Store is an in-memory object store for testing.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object

	PutFunc func(ctx context.Context, key string, data []byte, contentType string) error
	GetFunc func(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// NewStore creates a new mock object store.
func NewStore() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if s.PutFunc != nil {
		return s.PutFunc(ctx, key, data, contentType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if s.GetFunc != nil {
		return s.GetFunc(ctx, key)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, domain.ErrOutputMissing
	}
	info := storage.ObjectInfo{Size: int64(len(obj.data)), ContentType: obj.contentType}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

// Len returns the number of stored objects (for test assertions).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
