package principalcache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/example/cloud-tracker/models"
)

type memoryEntry struct {
	identifier string
	principal  *models.Principal
	expiresAt  time.Time
	element    *list.Element
}

// MemoryBackend is an in-process LRU with a per-entry TTL
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	lru     *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// NewMemoryBackend creates a MemoryBackend holding at most maxSize principals
func NewMemoryBackend(maxSize int, ttl time.Duration) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &MemoryBackend{
		entries: make(map[string]*memoryEntry),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements Backend
func (m *MemoryBackend) Get(_ context.Context, identifier string) (*models.Principal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalize(identifier)
	entry, ok := m.entries[key]
	if !ok || !m.now().Before(entry.expiresAt) {
		if ok {
			m.remove(entry)
		}
		m.misses++
		return nil, false, nil
	}

	m.lru.MoveToFront(entry.element)
	m.hits++
	return entry.principal, true, nil
}

// Set implements Backend
func (m *MemoryBackend) Set(_ context.Context, identifier string, p *models.Principal) error {
	if p == nil {
		return errNilPrincipal
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalize(identifier)
	expiresAt := m.now().Add(m.ttl)

	if entry, ok := m.entries[key]; ok {
		entry.principal = clone(p)
		entry.expiresAt = expiresAt
		m.lru.MoveToFront(entry.element)
		return nil
	}

	for m.lru.Len() >= m.maxSize {
		m.remove(m.lru.Back().Value.(*memoryEntry))
	}

	entry := &memoryEntry{
		identifier: key,
		principal:  clone(p),
		expiresAt:  expiresAt,
	}
	entry.element = m.lru.PushFront(entry)
	m.entries[key] = entry
	return nil
}

// Delete implements Backend
func (m *MemoryBackend) Delete(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[normalize(identifier)]; ok {
		m.remove(entry)
	}
	return nil
}

// Len returns the number of cached principals, including expired ones not yet evicted
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}

// Stats returns hit and miss counts
func (m *MemoryBackend) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

// must be called with mu held
func (m *MemoryBackend) remove(entry *memoryEntry) {
	m.lru.Remove(entry.element)
	delete(m.entries, entry.identifier)
}
