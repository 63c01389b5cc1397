package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"banking-session-core/internal/session/domain"
)

// sweepBatch bounds how many records one locked pass mutates, so a large
// sweep does not hold the write lock for its full duration.
const sweepBatch = 256

// MemoryStore is the in-memory Store implementation: a primary map by
// session ID plus a per-user index. Records are cloned on the way in and
// out so callers never share mutable state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	m      map[string]*domain.SessionRecord
	byUser map[string]map[string]struct{}
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:      make(map[string]*domain.SessionRecord),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, rec *domain.SessionRecord) error {
	cp := rec.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.m[cp.ID]; ok && old.UserID != cp.UserID {
		delete(s.byUser[old.UserID], cp.ID)
	}
	s.m[cp.ID] = cp
	idx, ok := s.byUser[cp.UserID]
	if !ok {
		idx = make(map[string]struct{})
		s.byUser[cp.UserID] = idx
	}
	idx[cp.ID] = struct{}{}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(sessionID)
	return nil
}

func (s *MemoryStore) removeLocked(sessionID string) {
	rec, ok := s.m[sessionID]
	if !ok {
		return
	}
	delete(s.m, sessionID)
	if idx, ok := s.byUser[rec.UserID]; ok {
		delete(idx, sessionID)
		if len(idx) == 0 {
			delete(s.byUser, rec.UserID)
		}
	}
}

// ListByUser implements Store.
func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]*domain.SessionRecord, error) {
	s.mu.RLock()
	out := make([]*domain.SessionRecord, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		if rec, ok := s.m[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessedAt.After(out[j].LastAccessedAt)
	})
	return out, nil
}

// Sweep implements Store. Candidates are collected under the read lock,
// then re-checked and applied in bounded batches under the write lock.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time, retention time.Duration) (SweepResult, error) {
	var res SweepResult

	s.mu.RLock()
	candidates := make([]string, 0)
	for id, rec := range s.m {
		if sweepAction(rec, now, retention) != sweepNone {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	for start := 0; start < len(candidates); start += sweepBatch {
		end := start + sweepBatch
		if end > len(candidates) {
			end = len(candidates)
		}
		s.mu.Lock()
		for _, id := range candidates[start:end] {
			rec, ok := s.m[id]
			if !ok {
				continue
			}
			switch sweepAction(rec, now, retention) {
			case sweepExpire:
				rec.Status = domain.StatusExpired
				res.Expired = append(res.Expired, rec.Clone())
			case sweepRemove:
				s.removeLocked(id)
				res.Removed++
			}
		}
		s.mu.Unlock()
	}
	return res, nil
}

type sweepVerdict int

const (
	sweepNone sweepVerdict = iota
	sweepExpire
	sweepRemove
)

// sweepAction decides what the sweep does with one record: Active past
// expiry becomes Expired; terminal records idle past retention are
// removed; everything else is left alone.
func sweepAction(rec *domain.SessionRecord, now time.Time, retention time.Duration) sweepVerdict {
	if rec.Status == domain.StatusActive {
		if !now.Before(rec.ExpiresAt) {
			return sweepExpire
		}
		return sweepNone
	}
	if now.Sub(rec.LastAccessedAt) > retention {
		return sweepRemove
	}
	return sweepNone
}
