package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Key][]byte
	saves int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Key][]byte)}
}

func (s *MemoryStore) Save(ctx context.Context, key Key, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	s.mu.Lock()
	s.items[key] = data
	s.saves++
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, key Key, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	data, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

// ListLessonIDs returns the sorted ids of stored lesson content for a user and subject.
func (s *MemoryStore) ListLessonIDs(ctx context.Context, userID, subject string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for k := range s.items {
		if k.Kind == KindLessonContent && k.UserID == userID && k.Subject == subject {
			ids = append(ids, k.LessonID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns how many artifacts of kind are stored.
func (s *MemoryStore) Count(kind Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.items {
		if k.Kind == kind {
			n++
		}
	}
	return n
}

// Saves returns the total number of Save calls that succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
