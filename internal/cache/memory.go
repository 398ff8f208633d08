package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value    string
	deadline time.Time
}

type listEntry struct {
	values   []string
	deadline time.Time
}

// memoryStore keeps everything in two capped LRUs. Expiry is checked on read
// so per-entry ttl works without a sweeper goroutine.
type memoryStore struct {
	mu    sync.Mutex
	kv    *lru.Cache[string, entry]
	lists *lru.Cache[string, listEntry]
}

func NewMemoryStore(maxEntries int) (Store, error) {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	kv, err := lru.New[string, entry](maxEntries)
	if err != nil {
		return nil, err
	}
	lists, err := lru.New[string, listEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &memoryStore{kv: kv, lists: lists}, nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.kv.Get(key)
	if !ok {
		return "", false, nil
	}
	if !item.deadline.IsZero() && time.Now().After(item.deadline) {
		s.kv.Remove(key)
		return "", false, nil
	}
	return item.value, true, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deadline time.Time
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	s.kv.Add(key, entry{value: value, deadline: deadline})
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv.Remove(key)
	s.lists.Remove(key)
	return nil
}

func (s *memoryStore) PushList(ctx context.Context, key string, value string, max int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.lists.Get(key)
	if ok && !item.deadline.IsZero() && time.Now().After(item.deadline) {
		item = listEntry{}
	} else if !ok {
		item = listEntry{}
	}
	item.values = append(item.values, value)
	if max > 0 && len(item.values) > max {
		item.values = item.values[len(item.values)-max:]
	}
	if ttl > 0 {
		item.deadline = time.Now().Add(ttl)
	} else {
		item.deadline = time.Time{}
	}
	s.lists.Add(key, item)
	return nil
}

func (s *memoryStore) RangeList(ctx context.Context, key string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.lists.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !item.deadline.IsZero() && time.Now().After(item.deadline) {
		s.lists.Remove(key)
		return nil, false, nil
	}
	out := make([]string, len(item.values))
	copy(out, item.values)
	return out, true, nil
}
