package scriptcache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps scripts in process memory. It backs tests and
// deployments without a database; contents are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	scripts map[string]*Script
	costs   map[string][]int
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scripts: make(map[string]*Script),
		costs:   make(map[string][]int),
		now:     time.Now,
	}
}

func (m *MemoryStore) Lookup(_ context.Context, fp string) (*Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scripts[fp]
	if !ok {
		return nil, nil
	}
	s.UseCount++
	snapshot := *s
	snapshot.TokenCost = sum(m.costs[fp])
	return &snapshot, nil
}

func (m *MemoryStore) Save(_ context.Context, fp, text, description string, tokenCost int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s, ok := m.scripts[fp]
	if !ok {
		s = &Script{ID: uuid.NewString(), Fingerprint: fp, CreatedAt: now}
		m.scripts[fp] = s
	}
	s.Text = text
	s.Description = description
	s.UpdatedAt = now
	m.costs[fp] = append(m.costs[fp], tokenCost)
	return s.ID, nil
}

// Len returns the number of cached scripts.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scripts)
}

func sum(vs []int) int {
	total := 0
	for _, v := range vs {
		total += v
	}
	return total
}
