package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DetailPrefix marks per-bill detail keys ("detail:<billId>").
const DetailPrefix = "detail:"

// DetailKey returns the cache key for one bill's enrichment result.
func DetailKey(billID string) string { return DetailPrefix + billID }

// Service is the process-wide cache shared by the scheduler and the enricher.
type Service interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Has(key string) bool
	// LastRefresh returns the time dataset was last refreshed, zero if never.
	LastRefresh(dataset string) time.Time
	SetLastRefresh(dataset string, t time.Time)
}

// Entry is a cached value with its insertion time.
type Entry struct {
	Key        string
	Value      any
	InsertedAt time.Time
}

// Memory keeps dataset entries ("bills", "votes") until they are replaced
// and detail entries in a bounded LRU whose items expire after a TTL.
type Memory struct {
	mu          sync.RWMutex
	datasets    map[string]Entry
	lastRefresh map[string]time.Time

	details *expirable.LRU[string, Entry]
}

// NewMemory builds a cache holding at most maxEntries detail entries, each
// living for detailTTL (0 keeps them until evicted by size).
func NewMemory(maxEntries int, detailTTL time.Duration) *Memory {
	return &Memory{
		datasets:    make(map[string]Entry),
		lastRefresh: make(map[string]time.Time),
		details:     expirable.NewLRU[string, Entry](maxEntries, nil, detailTTL),
	}
}

func isDetail(key string) bool { return strings.HasPrefix(key, DetailPrefix) }

func (m *Memory) Get(key string) (any, bool) {
	if isDetail(key) {
		entry, ok := m.details.Get(key)
		if !ok {
			return nil, false
		}
		return entry.Value, true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.datasets[key]
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (m *Memory) Set(key string, value any) {
	entry := Entry{Key: key, Value: value, InsertedAt: time.Now()}
	if isDetail(key) {
		m.details.Add(key, entry)
		return
	}

	m.mu.Lock()
	m.datasets[key] = entry
	m.mu.Unlock()
}

func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Entry returns the full entry stored under key.
func (m *Memory) Entry(key string) (Entry, bool) {
	if isDetail(key) {
		return m.details.Get(key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.datasets[key]
	return entry, ok
}

func (m *Memory) LastRefresh(dataset string) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRefresh[dataset]
}

func (m *Memory) SetLastRefresh(dataset string, t time.Time) {
	m.mu.Lock()
	m.lastRefresh[dataset] = t
	m.mu.Unlock()
}

// DetailCount reports how many detail entries are currently held.
func (m *Memory) DetailCount() int {
	return m.details.Len()
}
