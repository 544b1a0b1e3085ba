package cart

import (
	"context"
	"sync"
)

// Store persists a single cart. Save replaces the whole cart; a Save that
// returns an error must leave the previously saved cart readable.
type Store interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, items []Item) error
}

// StoreFactory returns the store for one session's cart.
type StoreFactory func(sessionID string) Store

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the encoded cart in process memory. It goes through
// Encode/Decode so it behaves like the durable stores.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Decode(s.data)
}

func (s *MemoryStore) Save(_ context.Context, items []Item) error {
	data, err := Encode(items)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Raw returns the last saved payload.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

// MemoryStores hands out one MemoryStore per session id. Entries live until
// Forget is called for the session.
type MemoryStores struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

func NewMemoryStores() *MemoryStores {
	return &MemoryStores{stores: make(map[string]*MemoryStore)}
}

// Store is a StoreFactory.
func (m *MemoryStores) Store(sessionID string) Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[sessionID]
	if !ok {
		s = NewMemoryStore()
		m.stores[sessionID] = s
	}
	return s
}

// Forget drops the session's cart.
func (m *MemoryStores) Forget(sessionID string) {
	m.mu.Lock()
	delete(m.stores, sessionID)
	m.mu.Unlock()
}

func (m *MemoryStores) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}
