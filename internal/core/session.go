package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/correction"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/sink"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

// Status is where a file is in the ingest pipeline.
type Status string

const (
	StatusProcessing        Status = "PROCESSING"
	StatusReadyValid        Status = "READY_VALID"
	StatusPendingCorrection Status = "PENDING_CORRECTION"
	StatusReadyAI           Status = "READY_AI"
	StatusReadyCache        Status = "READY_CACHE"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
	StatusManualFailure     Status = "MANUAL_FAILURE"
	StatusReadFailed        Status = "READ_FAILED"
)

// transitions lists every allowed move. Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusProcessing: {StatusReadyValid, StatusPendingCorrection, StatusReadFailed},
	StatusPendingCorrection: {
		StatusPendingCorrection, StatusReadyAI, StatusReadyCache,
		StatusManualFailure, StatusCancelled,
	},
	StatusReadyValid: {StatusCompleted, StatusPendingCorrection, StatusCancelled},
	StatusReadyAI:    {StatusCompleted, StatusPendingCorrection, StatusCancelled},
	StatusReadyCache: {StatusCompleted, StatusPendingCorrection, StatusCancelled},
	StatusReadFailed: {StatusCancelled, StatusManualFailure},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusManualFailure
}

// Ready reports whether the file may be inserted.
func (s Status) Ready() bool {
	return s == StatusReadyValid || s == StatusReadyAI || s == StatusReadyCache
}

// Source records where a file's correction came from.
type Source string

const (
	SourceNone  Source = "NONE"
	SourceAI    Source = "AI"
	SourceCache Source = "CACHE"
)

// Error types recorded in the audit log.
const (
	ErrorTypeRead              = "READ_ERROR"
	ErrorTypeGeneration        = "GENERATION_ERROR"
	ErrorTypeScript            = "SCRIPT_ERROR"
	ErrorTypeRevalidation      = "REVALIDATION_FAILED"
	ErrorTypeInsertion         = "INSERTION_ERROR"
	ErrorTypeAttemptsExhausted = "ATTEMPTS_EXHAUSTED"
	ErrorTypeSkipped           = "SKIPPED"
)

// FileSession is one uploaded file and everything derived from it. All
// fields are guarded by mu; handlers read them through View.
type FileSession struct {
	mu sync.Mutex

	ID        string
	Filename  string
	FileHash  string
	Status    Status
	Encoding  string
	Delimiter rune

	Raw        *table.Table // as read
	Corrected  *table.Table // latest script output, nil until corrected
	Validation *validation.Result

	Source      Source
	Attempts    int
	IgnoreCache bool
	Correction  *correction.Generation
	Previous    *correction.Attempt
	Insertion   *sink.Result

	TokensSpent int
	TokensSaved int
	AIAttempts  int

	ErrorType    string
	ErrorMessage string

	auditID   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// transition moves the session to next. The caller holds mu.
func (fs *FileSession) transition(next Status) error {
	if !CanTransition(fs.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, fs.Status, next)
	}
	fs.Status = next
	fs.UpdatedAt = time.Now()
	return nil
}

// current returns the table the next step works on.
func (fs *FileSession) current() *table.Table {
	if fs.Corrected != nil {
		return fs.Corrected
	}
	return fs.Raw
}

// SessionView is a read-only snapshot of a FileSession.
type SessionView struct {
	ID           string                 `json:"id"`
	Filename     string                 `json:"filename"`
	Status       Status                 `json:"status"`
	Encoding     string                 `json:"encoding"`
	Delimiter    string                 `json:"delimiter"`
	Rows         int                    `json:"rows"`
	Columns      []string               `json:"columns"`
	Validation   *validation.Result     `json:"validation,omitempty"`
	Source       Source                 `json:"correction_source"`
	Attempts     int                    `json:"attempts"`
	Correction   *correction.Generation `json:"correction,omitempty"`
	Insertion    *sink.Result           `json:"insertion,omitempty"`
	TokensSpent  int                    `json:"tokens_spent"`
	TokensSaved  int                    `json:"tokens_saved"`
	ErrorType    string                 `json:"error_type,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// View takes a snapshot under the session lock.
func (fs *FileSession) View() SessionView {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.view()
}

func (fs *FileSession) view() SessionView {
	v := SessionView{
		ID:           fs.ID,
		Filename:     fs.Filename,
		Status:       fs.Status,
		Encoding:     fs.Encoding,
		Validation:   fs.Validation,
		Source:       fs.Source,
		Attempts:     fs.Attempts,
		Correction:   fs.Correction,
		Insertion:    fs.Insertion,
		TokensSpent:  fs.TokensSpent,
		TokensSaved:  fs.TokensSaved,
		ErrorType:    fs.ErrorType,
		ErrorMessage: fs.ErrorMessage,
		CreatedAt:    fs.CreatedAt,
		UpdatedAt:    fs.UpdatedAt,
	}
	if fs.Delimiter != 0 {
		v.Delimiter = string(fs.Delimiter)
	}
	if t := fs.current(); t != nil {
		v.Rows = t.Len()
		v.Columns = t.Columns()
	}
	return v
}
