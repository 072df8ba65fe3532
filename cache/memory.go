package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/RyanBlaney/sonido-camelot/analysis"
)

// DefaultMemoryEntries bounds a MemoryStore created with a non-positive size
const DefaultMemoryEntries = 256

// MemoryStore is an in-process LRU store. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type memoryEntry struct {
	key    string
	result *analysis.AnalysisResult
}

// NewMemoryStore creates a store holding at most maxEntries results
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*analysis.AnalysisResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	m.order.MoveToFront(elem)
	return cloneResult(elem.Value.(*memoryEntry).result), true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, result *analysis.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		elem.Value.(*memoryEntry).result = cloneResult(result)
		m.order.MoveToFront(elem)
		return nil
	}

	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, result: cloneResult(result)})

	for m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len(), nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	clear(m.entries)
	return nil
}
