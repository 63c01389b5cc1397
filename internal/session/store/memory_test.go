package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"banking-session-core/internal/session/domain"
)

func newRecord(id, userID string, lastAccessed time.Time) *domain.SessionRecord {
	return &domain.SessionRecord{
		ID:             id,
		UserID:         userID,
		DeviceID:       "d1",
		OriginAddress:  "10.0.0.1",
		CreatedAt:      lastAccessed.Add(-time.Hour),
		LastAccessedAt: lastAccessed,
		ExpiresAt:      lastAccessed.Add(8 * time.Hour),
		Status:         domain.StatusActive,
		LoginMethod:    domain.LoginPassword,
	}
}

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	rec := newRecord("s1", "u1", now)
	rec.Metadata = map[string]string{"timezone": "Europe/Berlin"}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" || got.Metadata["timezone"] != "Europe/Berlin" {
		t.Errorf("Get returned %+v", got)
	}
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	_ = s.Put(ctx, newRecord("s1", "u1", now))

	got, _ := s.Get(ctx, "s1")
	got.Status = domain.StatusTerminated

	again, _ := s.Get(ctx, "s1")
	if again.Status != domain.StatusActive {
		t.Error("mutating a returned record must not affect the store")
	}
}

func TestMemoryStore_Remove(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	_ = s.Put(ctx, newRecord("s1", "u1", now))

	if err := s.Remove(ctx, "s1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Error("record should be gone after Remove")
	}
	list, _ := s.ListByUser(ctx, "u1")
	if len(list) != 0 {
		t.Errorf("user index still lists %d sessions", len(list))
	}
	// Removing an absent ID is a no-op.
	if err := s.Remove(ctx, "s1"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestMemoryStore_ListByUser_SortedByLastAccessDesc(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	_ = s.Put(ctx, newRecord("s-old", "u1", base))
	_ = s.Put(ctx, newRecord("s-new", "u1", base.Add(2*time.Hour)))
	_ = s.Put(ctx, newRecord("s-mid", "u1", base.Add(1*time.Hour)))
	_ = s.Put(ctx, newRecord("s-other", "u2", base))

	list, err := s.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListByUser returned %d records, want 3", len(list))
	}
	wantOrder := []string{"s-new", "s-mid", "s-old"}
	for i, want := range wantOrder {
		if list[i].ID != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestMemoryStore_Sweep_ExpiresActivePastExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	rec := newRecord("s1", "u1", base)
	rec.ExpiresAt = base.Add(time.Hour)
	_ = s.Put(ctx, rec)

	res, err := s.Sweep(ctx, base.Add(2*time.Hour), 24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Expired) != 1 || res.Expired[0].ID != "s1" {
		t.Fatalf("Expired = %+v, want s1", res.Expired)
	}
	got, _ := s.Get(ctx, "s1")
	if got.Status != domain.StatusExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
}

func TestMemoryStore_Sweep_RemovesTerminalPastRetention(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	stale := newRecord("s-stale", "u1", base)
	stale.Status = domain.StatusInvalidated
	_ = s.Put(ctx, stale)

	fresh := newRecord("s-fresh", "u1", base.Add(23*time.Hour))
	fresh.Status = domain.StatusInvalidated
	_ = s.Put(ctx, fresh)

	res, err := s.Sweep(ctx, base.Add(25*time.Hour), 24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Removed != 1 {
		t.Errorf("Removed = %d, want 1", res.Removed)
	}
	if _, err := s.Get(ctx, "s-stale"); !errors.Is(err, ErrNotFound) {
		t.Error("stale terminal record should be removed")
	}
	if _, err := s.Get(ctx, "s-fresh"); err != nil {
		t.Error("terminal record inside retention should remain")
	}
}

func TestMemoryStore_Sweep_LeavesLiveSessionsAlone(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	_ = s.Put(ctx, newRecord("s1", "u1", base))

	res, err := s.Sweep(ctx, base.Add(time.Minute), 24*time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(res.Expired) != 0 || res.Removed != 0 {
		t.Errorf("Sweep touched a live session: %+v", res)
	}
}

func TestMemoryStore_NoDuplicateIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	_ = s.Put(ctx, newRecord("s1", "u1", base))
	_ = s.Put(ctx, newRecord("s1", "u1", base.Add(time.Hour)))

	list, _ := s.ListByUser(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("ListByUser returned %d records after overwrite, want 1", len(list))
	}
	if !list[0].LastAccessedAt.Equal(base.Add(time.Hour)) {
		t.Error("Put should overwrite by session ID")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			_ = s.Put(ctx, newRecord(id, "u1", base.Add(time.Duration(i)*time.Second)))
			_, _ = s.Get(ctx, id)
			_, _ = s.ListByUser(ctx, "u1")
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Sweep(ctx, base.Add(time.Minute), 24*time.Hour)
		}()
	}
	wg.Wait()
}
