package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/database"
)

// AuditStatus is the coarse outcome stored per file.
type AuditStatus string

const (
	AuditProcessing  AuditStatus = "PROCESSING"
	AuditCompleted   AuditStatus = "COMPLETED"
	AuditFailed      AuditStatus = "FAILED"
	AuditInterrupted AuditStatus = "INTERRUPTED"
)

// auditStatusFor maps a session status to its audit status.
func auditStatusFor(s Status) AuditStatus {
	switch s {
	case StatusCompleted:
		return AuditCompleted
	case StatusManualFailure, StatusReadFailed:
		return AuditFailed
	case StatusCancelled:
		return AuditInterrupted
	default:
		return AuditProcessing
	}
}

// AuditRecord is one row of ingest_audit.
type AuditRecord struct {
	ID               int64       `db:"id" json:"id"`
	FileHash         string      `db:"file_hash" json:"file_hash"`
	Filename         string      `db:"filename" json:"filename"`
	CorrectionSource Source      `db:"correction_source" json:"correction_source"`
	TokensSpent      int         `db:"tokens_spent" json:"tokens_spent"`
	TokensSaved      int         `db:"tokens_saved" json:"tokens_saved"`
	AIAttempts       int         `db:"ai_attempts" json:"ai_attempts"`
	Inserted         int         `db:"inserted" json:"inserted"`
	Duplicated       int         `db:"duplicated" json:"duplicated"`
	Errored          int         `db:"errored" json:"errored"`
	Status           AuditStatus `db:"status" json:"status"`
	FinalStage       string      `db:"final_stage" json:"final_stage"`
	ErrorType        string      `db:"error_type" json:"error_type,omitempty"`
	ErrorMessage     string      `db:"error_message" json:"error_message,omitempty"`
	DurationSeconds  float64     `db:"duration_seconds" json:"duration_seconds"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// AuditLog persists one record per file, written as the file moves.
type AuditLog interface {
	Insert(ctx context.Context, rec AuditRecord) (int64, error)
	Update(ctx context.Context, id int64, rec AuditRecord) error
}

// AuditFilter narrows List. Zero values match everything.
type AuditFilter struct {
	Status   AuditStatus
	FileHash string
	Since    time.Time
	Limit    int
}

// DefaultAuditLimit caps List when the filter sets no limit.
const DefaultAuditLimit = 100

// AuditSummary is the dashboard over every audited file.
type AuditSummary struct {
	Files           int     `db:"files" json:"files"`
	Completed       int     `db:"completed" json:"completed"`
	Failed          int     `db:"failed" json:"failed"`
	TokensSpent     int     `db:"tokens_spent" json:"tokens_spent"`
	TokensSaved     int     `db:"tokens_saved" json:"tokens_saved"`
	CacheHits       int     `db:"cache_hits" json:"cache_hits"`
	AICorrections   int     `db:"ai_corrections" json:"ai_corrections"`
	AvgDurationSecs float64 `db:"avg_duration_seconds" json:"avg_duration_seconds"`
}

// AuditReader is the read side used by the dashboard endpoints.
type AuditReader interface {
	List(ctx context.Context, f AuditFilter) ([]AuditRecord, error)
	Summary(ctx context.Context) (AuditSummary, error)
}

// PostgresAuditLog writes ingest_audit through pgx.
type PostgresAuditLog struct {
	db database.DBTX
}

func NewPostgresAuditLog(db database.DBTX) *PostgresAuditLog {
	return &PostgresAuditLog{db: db}
}

const insertAuditQuery = `
INSERT INTO ingest_audit (
    file_hash, filename, correction_source, tokens_spent, tokens_saved,
    ai_attempts, inserted, duplicated, errored, status, final_stage,
    error_type, error_message, duration_seconds
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`

func (a *PostgresAuditLog) Insert(ctx context.Context, rec AuditRecord) (int64, error) {
	var id int64
	err := a.db.QueryRow(ctx, insertAuditQuery,
		rec.FileHash, rec.Filename, string(rec.CorrectionSource), rec.TokensSpent, rec.TokensSaved,
		rec.AIAttempts, rec.Inserted, rec.Duplicated, rec.Errored, string(rec.Status), rec.FinalStage,
		rec.ErrorType, rec.ErrorMessage, rec.DurationSeconds,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert audit record: %w", err)
	}
	return id, nil
}

const updateAuditQuery = `
UPDATE ingest_audit
   SET correction_source = $2, tokens_spent = $3, tokens_saved = $4,
       ai_attempts = $5, inserted = $6, duplicated = $7, errored = $8,
       status = $9, final_stage = $10, error_type = $11, error_message = $12,
       duration_seconds = $13, updated_at = now()
 WHERE id = $1`

func (a *PostgresAuditLog) Update(ctx context.Context, id int64, rec AuditRecord) error {
	_, err := a.db.Exec(ctx, updateAuditQuery, id,
		string(rec.CorrectionSource), rec.TokensSpent, rec.TokensSaved,
		rec.AIAttempts, rec.Inserted, rec.Duplicated, rec.Errored,
		string(rec.Status), rec.FinalStage, rec.ErrorType, rec.ErrorMessage,
		rec.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("update audit record %d: %w", id, err)
	}
	return nil
}

// SQLAuditReader queries ingest_audit with sqlx.
type SQLAuditReader struct {
	db *sqlx.DB
}

func NewSQLAuditReader(db *sqlx.DB) *SQLAuditReader {
	return &SQLAuditReader{db: db}
}

func (r *SQLAuditReader) List(ctx context.Context, f AuditFilter) ([]AuditRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.FileHash != "" {
		where = append(where, "file_hash = ?")
		args = append(args, f.FileHash)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since)
	}

	q := `SELECT * FROM ingest_audit`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limitOrDefault(f.Limit))

	var out []AuditRecord
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return out, nil
}

const summaryQuery = `
SELECT COUNT(*)                                                   AS files,
       COUNT(*) FILTER (WHERE status = 'COMPLETED')               AS completed,
       COUNT(*) FILTER (WHERE status = 'FAILED')                  AS failed,
       COALESCE(SUM(tokens_spent), 0)                             AS tokens_spent,
       COALESCE(SUM(tokens_saved), 0)                             AS tokens_saved,
       COUNT(*) FILTER (WHERE correction_source = 'CACHE')        AS cache_hits,
       COUNT(*) FILTER (WHERE correction_source = 'AI')           AS ai_corrections,
       COALESCE(AVG(duration_seconds) FILTER (WHERE status <> 'PROCESSING'), 0) AS avg_duration_seconds
  FROM ingest_audit`

func (r *SQLAuditReader) Summary(ctx context.Context) (AuditSummary, error) {
	var s AuditSummary
	if err := r.db.GetContext(ctx, &s, summaryQuery); err != nil {
		return s, fmt.Errorf("audit summary: %w", err)
	}
	return s, nil
}

func limitOrDefault(n int) int {
	if n <= 0 || n > 1000 {
		return DefaultAuditLimit
	}
	return n
}

// MemoryAuditLog keeps records in process. It implements both AuditLog
// and AuditReader.
type MemoryAuditLog struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]AuditRecord
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{records: make(map[int64]AuditRecord)}
}

func (m *MemoryAuditLog) Insert(_ context.Context, rec AuditRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Now()
	rec.ID = m.nextID
	rec.CreatedAt, rec.UpdatedAt = now, now
	m.records[rec.ID] = rec
	return rec.ID, nil
}

func (m *MemoryAuditLog) Update(_ context.Context, id int64, rec AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.records[id]
	if !ok {
		return fmt.Errorf("update audit record %d: not found", id)
	}
	rec.ID = id
	rec.FileHash, rec.Filename = old.FileHash, old.Filename
	rec.CreatedAt, rec.UpdatedAt = old.CreatedAt, time.Now()
	m.records[id] = rec
	return nil
}

// Get returns the record with id.
func (m *MemoryAuditLog) Get(id int64) (AuditRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok
}

func (m *MemoryAuditLog) List(_ context.Context, f AuditFilter) ([]AuditRecord, error) {
	m.mu.RLock()
	out := make([]AuditRecord, 0, len(m.records))
	for _, rec := range m.records {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.FileHash != "" && rec.FileHash != f.FileHash {
			continue
		}
		if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, rec)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit := limitOrDefault(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryAuditLog) Summary(_ context.Context) (AuditSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		s        AuditSummary
		total    float64
		finished int
	)
	for _, rec := range m.records {
		s.Files++
		switch rec.Status {
		case AuditCompleted:
			s.Completed++
		case AuditFailed:
			s.Failed++
		}
		s.TokensSpent += rec.TokensSpent
		s.TokensSaved += rec.TokensSaved
		switch rec.CorrectionSource {
		case SourceCache:
			s.CacheHits++
		case SourceAI:
			s.AICorrections++
		}
		if rec.Status != AuditProcessing {
			total += rec.DurationSeconds
			finished++
		}
	}
	if finished > 0 {
		s.AvgDurationSecs = total / float64(finished)
	}
	return s, nil
}
