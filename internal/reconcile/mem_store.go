package reconcile

import (
	"context"
	"sync"
	"time"
)

// MemStore is a process-local Store used in tests and single-node setups.
// Expired entries are treated as absent on read and swept lazily.
type MemStore struct {
	mu     sync.Mutex
	drafts map[string]*Draft
	now    func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{drafts: make(map[string]*Draft), now: time.Now}
}

// SetClock overrides the time source (tests only).
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemStore) Put(_ context.Context, d *Draft, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	cp.ExpiresAt = s.now().Add(ttl)
	s.drafts[d.BookingID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, bookingID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.live(bookingID)
	if d == nil {
		return nil, ErrDraftNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemStore) Consume(_ context.Context, bookingID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.live(bookingID)
	if d == nil {
		return nil, ErrDraftNotFound
	}
	delete(s.drafts, bookingID)
	return d, nil
}

// Len reports the number of unexpired drafts currently held.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.drafts {
		if !s.now().After(d.ExpiresAt) {
			n++
		}
	}
	return n
}

func (s *MemStore) Delete(_ context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, bookingID)
	return nil
}

// live returns the draft if present and unexpired; expired entries are
// dropped in place. Caller holds the lock.
func (s *MemStore) live(bookingID string) *Draft {
	d, ok := s.drafts[bookingID]
	if !ok {
		return nil
	}
	if s.now().After(d.ExpiresAt) {
		delete(s.drafts, bookingID)
		return nil
	}
	return d
}
