package sink

import (
	"context"
	"sync"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// MemorySink keeps transactions in memory, keyed by id_transacao. It runs
// the same row checks as PostgresSink.
type MemorySink struct {
	mu   sync.Mutex
	rows map[string]Transaction
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{rows: make(map[string]Transaction)}
}

func (m *MemorySink) Insert(ctx context.Context, t *table.Table) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	res := &Result{Total: t.Len()}
	for i := 0; i < t.Len(); i++ {
		row, err := BuildTransaction(t, i)
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: i + 1, NaturalKey: row.ID.String, Message: err.Error()})
			continue
		}
		if _, exists := m.rows[row.ID.String]; exists {
			res.Duplicates++
			continue
		}
		m.rows[row.ID.String] = row
		res.Inserted++
	}
	return res, nil
}

// Len returns the number of stored transactions.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Get returns the stored transaction with id.
func (m *MemorySink) Get(id string) (Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[id]
	return tx, ok
}
