package duplicate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]Record
}

// NewMemoryStore constructs a MemoryStore. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, records: make(map[string]Record)}
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, formID, fingerprint, _ string, ttl time.Duration, limit int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	key := formID + "\x1f" + fingerprint
	rec, ok := s.records[key]
	if !ok || rec.Expired(now) {
		rec = Record{}
	}
	if rec.Attempts >= limit {
		return false, nil
	}
	rec.Attempts++
	rec.ExpiresAt = nil
	if ttl > 0 {
		exp := now.Add(ttl)
		rec.ExpiresAt = &exp
	}
	s.records[key] = rec
	return true, nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, formID, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := formID + "\x1f" + fingerprint
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.Attempts--
	if rec.Attempts <= 0 {
		delete(s.records, key)
		return nil
	}
	s.records[key] = rec
	return nil
}

// Prune drops expired records and returns how many were removed.
func (s *MemoryStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}
