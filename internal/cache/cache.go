package cache

import (
	"sync"
	"time"

	"github.com/Naman6019/News-Agent/internal/feed"
)

// Stats represents seen-store statistics
type Stats struct {
	TotalEntries int     `json:"total_entries"`
	HitCount     int64   `json:"hit_count"`
	MissCount    int64   `json:"miss_count"`
	HitRate      float64 `json:"hit_rate"`
}

// SeenStore remembers delivered article IDs for the dedupe window so that
// back-to-back digests can skip repeats
type SeenStore struct {
	entries   map[string]time.Time
	mutex     sync.RWMutex
	window    time.Duration
	hitCount  int64
	missCount int64
}

// NewSeenStore creates an in-memory seen-store with the given dedupe window
func NewSeenStore(window time.Duration) *SeenStore {
	store := &SeenStore{
		entries: make(map[string]time.Time),
		window:  window,
	}

	// Start cleanup goroutine
	go store.cleanup()

	return store
}

// Seen reports whether the article ID was marked within the window
func (s *SeenStore) Seen(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	expiresAt, exists := s.entries[id]
	if !exists {
		s.missCount++
		return false
	}

	// Check if expired
	if time.Now().After(expiresAt) {
		delete(s.entries, id)
		s.missCount++
		return false
	}

	s.hitCount++
	return true
}

// Mark records article IDs as delivered
func (s *SeenStore) Mark(ids ...string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	expiresAt := time.Now().Add(s.window)
	for _, id := range ids {
		s.entries[id] = expiresAt
	}
}

// FilterNew drops articles whose IDs were already delivered
func (s *SeenStore) FilterNew(articles []feed.Article) []feed.Article {
	var fresh []feed.Article

	for _, article := range articles {
		if s.Seen(article.ID) {
			continue
		}
		fresh = append(fresh, article)
	}

	return fresh
}

// Clear removes all entries and resets the counters
func (s *SeenStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entries = make(map[string]time.Time)
	s.hitCount = 0
	s.missCount = 0
}

// GetStats returns seen-store statistics
func (s *SeenStore) GetStats() Stats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := Stats{
		TotalEntries: len(s.entries),
		HitCount:     s.hitCount,
		MissCount:    s.missCount,
	}

	if s.hitCount+s.missCount > 0 {
		stats.HitRate = float64(s.hitCount) / float64(s.hitCount+s.missCount)
	}

	return stats
}

// cleanup removes expired entries periodically
func (s *SeenStore) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanupExpired()
	}
}

// cleanupExpired removes expired entries
func (s *SeenStore) cleanupExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, expiresAt := range s.entries {
		if now.After(expiresAt) {
			delete(s.entries, id)
		}
	}
}
