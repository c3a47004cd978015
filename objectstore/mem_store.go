package objectstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/ethereum/go-ethereum/common"
)

// MemStore is an in-memory object snapshot. Reads never block on I/O, which
// is what the trigger index requires from its reader.
type MemStore struct {
	mu      sync.RWMutex
	objects map[common.Hash]*autotx.Object
}

func NewMemStore(objects ...*autotx.Object) *MemStore {
	s := &MemStore{
		objects: make(map[common.Hash]*autotx.Object, len(objects)),
	}
	for _, o := range objects {
		s.objects[o.ID] = o
	}
	return s
}

func (s *MemStore) GetObject(id common.Hash) (*autotx.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[id], nil
}

// Put inserts or replaces objects.
func (s *MemStore) Put(objects ...*autotx.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range objects {
		s.objects[o.ID] = o
	}
}

func (s *MemStore) Delete(ids ...common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.objects, id)
	}
}

func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ForEachObject visits a copy of the current object set in id order, so fn
// may call back into the store.
func (s *MemStore) ForEachObject(ctx context.Context, fn func(*autotx.Object) error) error {
	s.mu.RLock()
	ids := slices.SortedFunc(maps.Keys(s.objects), func(a, b common.Hash) int {
		return a.Cmp(b)
	})
	objects := make([]*autotx.Object, 0, len(ids))
	for _, id := range ids {
		objects = append(objects, s.objects[id])
	}
	s.mu.RUnlock()

	for _, o := range objects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}
