package core

import (
	"sort"
	"sync"
	"time"
)

// Queue holds the files of the current run, keyed by session id.
type Queue struct {
	mu       sync.RWMutex
	sessions map[string]*FileSession
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{sessions: make(map[string]*FileSession)}
}

// Add registers fs. It panics on a duplicate id, which uuids rule out.
func (q *Queue) Add(fs *FileSession) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.sessions[fs.ID]; exists {
		panic("session already queued: " + fs.ID)
	}
	q.sessions[fs.ID] = fs
}

// Get returns the session with id.
func (q *Queue) Get(id string) (*FileSession, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	fs, ok := q.sessions[id]
	return fs, ok
}

// All returns every session, oldest first.
func (q *Queue) All() []*FileSession {
	q.mu.RLock()
	result := make([]*FileSession, 0, len(q.sessions))
	for _, fs := range q.sessions {
		result = append(result, fs)
	}
	q.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Remove drops id from the queue and reports whether it was there.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.sessions[id]
	delete(q.sessions, id)
	return ok
}

// Len returns the number of queued sessions.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.sessions)
}

// Clear empties the queue and returns what it held.
func (q *Queue) Clear() []*FileSession {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*FileSession, 0, len(q.sessions))
	for _, fs := range q.sessions {
		out = append(out, fs)
	}
	q.sessions = make(map[string]*FileSession)
	return out
}

// Evict removes terminal and unreadable sessions last updated before cutoff
// and returns how many went.
func (q *Queue) Evict(cutoff time.Time) int {
	var stale []string
	for _, fs := range q.All() {
		fs.mu.Lock()
		if (fs.Status.Terminal() || fs.Status == StatusReadFailed) && fs.UpdatedAt.Before(cutoff) {
			stale = append(stale, fs.ID)
		}
		fs.mu.Unlock()
	}
	for _, id := range stale {
		q.Remove(id)
	}
	return len(stale)
}
