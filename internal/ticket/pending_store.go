package ticket

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a ticket id is unknown to a store.
var ErrNotFound = errors.New("ticket: not found")

// PendingStore holds in-flight tickets awaiting customer validation. Tickets
// live here until they are validated (and persisted) or cancelled.
type PendingStore interface {
	// Put stores or replaces a ticket.
	Put(ctx context.Context, t *Ticket) error
	// Get returns a copy of the ticket, or ErrNotFound.
	Get(ctx context.Context, id string) (*Ticket, error)
	// Update applies fn to the ticket under a per-ticket write lock and
	// stores the result. fn returning an error aborts the update.
	Update(ctx context.Context, id string, fn func(*Ticket) error) (*Ticket, error)
	// Delete removes the ticket. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// entry wraps one ticket with its own lock so updates to different tickets
// never contend.
type entry struct {
	mu sync.Mutex
	t  *Ticket
}

// MemoryStore is the default in-process pending store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty pending store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

func (s *MemoryStore) Put(_ context.Context, t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[t.ID]; ok {
		e.mu.Lock()
		e.t = t.Clone()
		e.mu.Unlock()
		return nil
	}
	s.entries[t.ID] = &entry{t: t.Clone()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Ticket, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Ticket) error) (*Ticket, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.t.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	e.t = working
	return working.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Len returns the number of pending tickets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
