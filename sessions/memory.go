package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps sessions in process with the same TTL semantics as the
// redis store.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(s)
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id)
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(s *Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := m.put(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Scan visits a snapshot of the live sessions; fn runs without the store lock
// held so it may call back into the store.
func (m *MemoryStore) Scan(ctx context.Context, fn func(s *Session) error) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := m.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := m.now()
	for id, it := range m.items {
		if now.After(it.expiresAt) {
			delete(m.items, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) get(id string) (*Session, error) {
	it, ok := m.items[id]
	if !ok || m.now().After(it.expiresAt) {
		delete(m.items, id)
		return nil, ErrNotFound
	}
	var s Session
	if err := json.Unmarshal(it.data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MemoryStore) put(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.items[s.ID] = memoryItem{data: data, expiresAt: m.now().Add(m.ttl)}
	return nil
}
