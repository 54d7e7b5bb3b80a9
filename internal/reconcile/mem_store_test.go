package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func draft(id string) *Draft {
	return &Draft{
		BookingID:   id,
		PatientID:   1,
		ProviderID:  2,
		ScheduledAt: time.Now().Add(time.Hour),
		Type:        "chat",
		FeeCents:    50000,
		CreatedAt:   time.Now(),
	}
}

func TestMemStorePutGet(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if err := s.Put(ctx, draft("b1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	d, err := s.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.BookingID != "b1" || d.FeeCents != 50000 {
		t.Errorf("draft = %+v", d)
	}
	// Get does not consume
	if _, err := s.Get(ctx, "b1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
}

func TestMemStoreConsumeOnce(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	if err := s.Put(ctx, draft("b1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Consume(ctx, "b1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := s.Consume(ctx, "b1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("second consume: %v, want not found", err)
	}
	if _, err := s.Get(ctx, "b1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("get after consume: %v, want not found", err)
	}
}

func TestMemStoreConcurrentConsume(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	if err := s.Put(ctx, draft("b1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, "b1"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	n := 0
	for range wins {
		n++
	}
	if n != 1 {
		t.Fatalf("winners = %d, want exactly 1", n)
	}
}

func TestMemStoreTTL(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	base := time.Now()
	s.SetClock(func() time.Time { return base })

	if err := s.Put(ctx, draft("b1"), 30*time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.SetClock(func() time.Time { return base.Add(29 * time.Minute) })
	if _, err := s.Get(ctx, "b1"); err != nil {
		t.Fatalf("get inside ttl: %v", err)
	}
	s.SetClock(func() time.Time { return base.Add(31 * time.Minute) })
	if _, err := s.Get(ctx, "b1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("get past ttl: %v, want not found", err)
	}
	if _, err := s.Consume(ctx, "b1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("consume past ttl: %v, want not found", err)
	}
}

func TestMemStoreDelete(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	if err := s.Put(ctx, draft("b1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "b1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "b1"); !errors.Is(err, ErrDraftNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}
