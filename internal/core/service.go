package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/config"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/correction"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/logging"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/sink"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/validation"
)

// Generator produces correction scripts and remembers the ones that worked.
// *correction.CachingGenerator is the production implementation.
type Generator interface {
	Generate(ctx context.Context, req correction.Request) (*correction.Generation, error)
	Remember(ctx context.Context, gen *correction.Generation)
}

// Dependencies are the collaborators a Service drives.
type Dependencies struct {
	Validator *validation.Validator
	Generator Generator
	Executor  *correction.Executor // nil uses NewExecutor(cfg.MaxRows)
	Sink      sink.Sink
	Audit     AuditLog // nil keeps records in memory
}

// Service runs files through validate, correct and insert.
type Service struct {
	cfg       config.IngestConfig
	queue     *Queue
	limiter   *IngestLimiter
	validator *validation.Validator
	generator Generator
	executor  *correction.Executor
	sink      sink.Sink
	audit     AuditLog
}

// NewService wires a service over deps.
func NewService(cfg config.IngestConfig, deps Dependencies) *Service {
	if cfg.MaxCorrectionAttempts <= 0 {
		cfg.MaxCorrectionAttempts = 3
	}
	s := &Service{
		cfg:       cfg,
		queue:     NewQueue(),
		limiter:   NewIngestLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		validator: deps.Validator,
		generator: deps.Generator,
		executor:  deps.Executor,
		sink:      deps.Sink,
		audit:     deps.Audit,
	}
	if s.executor == nil {
		s.executor = correction.NewExecutor(cfg.MaxRows)
	}
	if s.audit == nil {
		s.audit = NewMemoryAuditLog()
	}
	return s
}

// Limiter exposes the ingest limiter for health reporting and shutdown.
func (s *Service) Limiter() *IngestLimiter { return s.limiter }

// Queue exposes the session queue.
func (s *Service) Queue() *Queue { return s.queue }

// Enqueue reads and validates one uploaded file and adds it to the queue.
func (s *Service) Enqueue(ctx context.Context, filename string, data []byte) (SessionView, error) {
	if len(data) == 0 {
		return SessionView{}, fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}
	if s.cfg.MaxFileSize > 0 && int64(len(data)) > s.cfg.MaxFileSize {
		return SessionView{}, fmt.Errorf("%s: %w: %d bytes exceeds %d", filename, ErrFileTooLarge, len(data), s.cfg.MaxFileSize)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return SessionView{}, err
	}
	defer s.limiter.Release()

	sum := sha256.Sum256(data)
	now := time.Now()
	fs := &FileSession{
		ID:        uuid.NewString(),
		Filename:  filename,
		FileHash:  hex.EncodeToString(sum[:]),
		Status:    StatusProcessing,
		Source:    SourceNone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	s.queue.Add(fs)

	log := logging.WithSession(ctx, fs.ID, filename)
	res := s.validator.ValidateBytes(data)
	fs.Encoding = res.Encoding
	fs.Delimiter = res.Delimiter
	fs.Raw = res.Table
	fs.Validation = res.Result

	next := StatusPendingCorrection
	switch {
	case res.Result.Has(validation.KindReadError):
		next = StatusReadFailed
		fs.ErrorType = ErrorTypeRead
		fs.ErrorMessage = "file could not be read: " + readMessage(res.Result)
	case res.Result.Valid:
		next = StatusReadyValid
	}
	if err := fs.transition(next); err != nil {
		return fs.view(), err
	}

	log.Info("file queued",
		"status", fs.Status,
		"encoding", fs.Encoding,
		"rows", rowCount(fs),
		"errors", res.Result.ErrorCount,
	)
	s.record(ctx, fs)
	return fs.view(), nil
}

// Correct runs one correction attempt on a PENDING_CORRECTION file.
//
// A script that cannot be parsed or fails while running, and a corrected
// table that still does not validate, each use up one attempt; the file
// stays pending with the failure recorded for the next attempt. When the
// attempts run out the file moves to MANUAL_FAILURE. Provider failures
// leave the file untouched and are returned.
func (s *Service) Correct(ctx context.Context, id string) (SessionView, error) {
	fs, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.Status == StatusManualFailure && fs.ErrorType == ErrorTypeAttemptsExhausted {
		return fs.view(), fmt.Errorf("%s: %w", fs.Filename, ErrAttemptsExhausted)
	}
	if fs.Status != StatusPendingCorrection {
		return fs.view(), fmt.Errorf("correct %s: %w: status is %s", fs.Filename, ErrInvalidTransition, fs.Status)
	}
	if fs.Attempts >= s.cfg.MaxCorrectionAttempts {
		s.exhaust(ctx, fs)
		return fs.view(), fmt.Errorf("%s: %w", fs.Filename, ErrAttemptsExhausted)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return fs.view(), err
	}
	defer s.limiter.Release()

	log := logging.WithSession(ctx, fs.ID, fs.Filename).With("attempt", fs.Attempts+1)
	input := fs.current()

	gen, err := s.generator.Generate(ctx, correction.Request{
		Table:       input,
		Result:      fs.Validation,
		IgnoreCache: fs.IgnoreCache,
		Previous:    fs.Previous,
	})
	if gen != nil && !gen.UsedCache {
		fs.AIAttempts++
		fs.TokensSpent += gen.TokensSpent
	}
	if err != nil {
		if !correction.IsScriptError(err) {
			log.Error("correction generation failed", "error", err)
			fs.ErrorType = ErrorTypeGeneration
			fs.ErrorMessage = err.Error()
			s.record(ctx, fs)
			return fs.view(), fmt.Errorf("correct %s: %w", fs.Filename, err)
		}
		script := ""
		if gen != nil {
			script = gen.ScriptText
		}
		s.failAttempt(ctx, fs, ErrorTypeScript, script, err.Error(), true)
		log.Warn("correction script rejected", "error", err)
		return fs.view(), nil
	}

	out, err := s.executor.Apply(input, gen.Script)
	if err != nil {
		s.failAttempt(ctx, fs, ErrorTypeScript, gen.ScriptText, err.Error(), true)
		log.Warn("correction script failed", "error", err, "used_cache", gen.UsedCache)
		return fs.view(), nil
	}

	result := s.validator.Validate(out)
	if !result.Valid {
		// the partial fix is the input of the next attempt
		fs.Corrected = out
		fs.Validation = result
		s.failAttempt(ctx, fs, ErrorTypeRevalidation, gen.ScriptText, validation.Report(result), false)
		log.Warn("corrected file still invalid", "errors", result.ErrorCount, "kinds", result.Kinds())
		return fs.view(), nil
	}

	fs.Corrected = out
	fs.Validation = result
	fs.Correction = gen
	fs.Previous = nil
	fs.IgnoreCache = false
	fs.ErrorType, fs.ErrorMessage = "", ""

	next := StatusReadyAI
	fs.Source = SourceAI
	if gen.UsedCache {
		next = StatusReadyCache
		fs.Source = SourceCache
		fs.TokensSaved += gen.TokensSaved
	} else {
		s.generator.Remember(ctx, gen)
	}
	if err := fs.transition(next); err != nil {
		return fs.view(), err
	}

	log.Info("file corrected", "source", fs.Source, "tokens_spent", gen.TokensSpent, "tokens_saved", gen.TokensSaved)
	s.record(ctx, fs)
	return fs.view(), nil
}

// failAttempt records a failed correction and moves the file to manual
// handling once no attempt is left. The caller holds fs.mu.
func (s *Service) failAttempt(ctx context.Context, fs *FileSession, errType, script, message string, ignoreCache bool) {
	fs.Attempts++
	fs.Previous = &correction.Attempt{Script: script, Message: message}
	fs.ErrorType = errType
	fs.ErrorMessage = message
	if ignoreCache {
		fs.IgnoreCache = true
	}

	if fs.Attempts >= s.cfg.MaxCorrectionAttempts {
		s.exhaust(ctx, fs)
		return
	}
	_ = fs.transition(StatusPendingCorrection)
	s.record(ctx, fs)
}

func (s *Service) exhaust(ctx context.Context, fs *FileSession) {
	last := fs.ErrorMessage
	fs.ErrorType = ErrorTypeAttemptsExhausted
	fs.ErrorMessage = fmt.Sprintf("%s after %d attempts", ErrAttemptsExhausted, fs.Attempts)
	if last != "" {
		fs.ErrorMessage += ": " + last
	}
	if fs.Status.Ready() {
		_ = fs.transition(StatusPendingCorrection)
	}
	_ = fs.transition(StatusManualFailure)
	logging.WithSession(ctx, fs.ID, fs.Filename).Warn("file moved to manual handling", "attempts", fs.Attempts)
	s.record(ctx, fs)
}

// Insert writes a READY file to the sink. A run that stores nothing sends
// the file back to correction with the insertion errors as context.
func (s *Service) Insert(ctx context.Context, id string) (SessionView, error) {
	fs, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Status.Ready() {
		return fs.view(), fmt.Errorf("insert %s: %w: status is %s", fs.Filename, ErrInvalidTransition, fs.Status)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return fs.view(), err
	}
	defer s.limiter.Release()

	log := logging.WithSession(ctx, fs.ID, fs.Filename)
	res, err := s.sink.Insert(ctx, fs.current())
	if err != nil {
		log.Error("insertion failed", "error", err)
		fs.ErrorType = ErrorTypeInsertion
		fs.ErrorMessage = err.Error()
		s.record(ctx, fs)
		return fs.view(), fmt.Errorf("insert %s: %w", fs.Filename, err)
	}
	fs.Insertion = res

	if sink.Classify(res) == sink.OutcomeCritical {
		message := "insertion failed: " + res.Summary(5)
		log.Warn("no row inserted, back to correction", "errors", len(res.Errors))

		script := ""
		if fs.Correction != nil {
			script = fs.Correction.ScriptText
		}
		if fs.Source != SourceNone {
			// a correction that produced nothing insertable counts against the file
			s.failAttempt(ctx, fs, ErrorTypeInsertion, script, message, true)
			return fs.view(), nil
		}
		fs.Previous = &correction.Attempt{Script: script, Message: message}
		fs.IgnoreCache = true
		fs.ErrorType, fs.ErrorMessage = ErrorTypeInsertion, message
		if err := fs.transition(StatusPendingCorrection); err != nil {
			return fs.view(), err
		}
		s.record(ctx, fs)
		return fs.view(), nil
	}

	fs.ErrorType, fs.ErrorMessage = "", ""
	if len(res.Errors) > 0 {
		fs.ErrorMessage = res.Summary(5)
	}
	if err := fs.transition(StatusCompleted); err != nil {
		return fs.view(), err
	}
	log.Info("file inserted",
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"errors", len(res.Errors),
		"source", fs.Source,
	)
	s.record(ctx, fs)
	return fs.view(), nil
}

// Skip hands a pending or unreadable file over to manual handling.
func (s *Service) Skip(ctx context.Context, id string) (SessionView, error) {
	fs, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.transition(StatusManualFailure); err != nil {
		return fs.view(), fmt.Errorf("skip %s: %w", fs.Filename, err)
	}
	if fs.ErrorType == "" {
		fs.ErrorType = ErrorTypeSkipped
	}
	fs.ErrorMessage = "skipped for manual handling"
	s.record(ctx, fs)
	return fs.view(), nil
}

// Remove cancels the file unless it already finished and drops it from
// the queue.
func (s *Service) Remove(ctx context.Context, id string) error {
	fs, err := s.session(id)
	if err != nil {
		return err
	}
	s.cancel(ctx, fs)
	s.queue.Remove(id)
	return nil
}

// Reset cancels every queued file and empties the queue. It returns the
// number of files dropped.
func (s *Service) Reset(ctx context.Context) int {
	sessions := s.queue.Clear()
	for _, fs := range sessions {
		s.cancel(ctx, fs)
	}
	logging.FromContext(ctx).Info("queue reset", "files", len(sessions))
	return len(sessions)
}

func (s *Service) cancel(ctx context.Context, fs *FileSession) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.Status.Terminal() {
		return
	}
	if err := fs.transition(StatusCancelled); err != nil {
		return
	}
	s.record(ctx, fs)
}

// Get returns a snapshot of one file.
func (s *Service) Get(id string) (SessionView, error) {
	fs, err := s.session(id)
	if err != nil {
		return SessionView{}, err
	}
	return fs.View(), nil
}

// List returns every queued file, oldest first.
func (s *Service) List() []SessionView {
	sessions := s.queue.All()
	out := make([]SessionView, len(sessions))
	for i, fs := range sessions {
		out[i] = fs.View()
	}
	return out
}

// Report renders the latest validation result as text, followed by the
// insertion summary when the file was inserted.
func (s *Service) Report(id string) (string, error) {
	fs, err := s.session(id)
	if err != nil {
		return "", err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	report := validation.Report(fs.Validation)
	if fs.Insertion != nil {
		report += "\n" + fs.Insertion.Summary(10)
	}
	return report, nil
}

// Preview summarises the table that would be inserted.
type Preview struct {
	Rows       int                 `json:"rows"`
	Columns    int                 `json:"columns"`
	Names      []string            `json:"column_names"`
	ValorTotal float64             `json:"valor_total"`
	Head       []map[string]string `json:"head"`
}

// DefaultPreviewRows is used when Preview is asked for no rows.
const DefaultPreviewRows = 10

// Preview returns counts, the valor total and the first n rows of the
// file's current table.
func (s *Service) Preview(id string, n int) (Preview, error) {
	fs, err := s.session(id)
	if err != nil {
		return Preview{}, err
	}
	if n <= 0 {
		n = DefaultPreviewRows
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	t := fs.current()
	if t == nil {
		return Preview{Head: []map[string]string{}}, nil
	}
	p := Preview{
		Rows:    t.Len(),
		Columns: len(t.Columns()),
		Names:   t.Columns(),
		Head:    t.Records(n),
	}
	if t.Has("valor") {
		for _, v := range t.Values("valor") {
			if f, ok := validation.ParseAmount(v); ok {
				p.ValorTotal += f
			}
		}
	}
	return p, nil
}

func (s *Service) session(id string) (*FileSession, error) {
	fs, ok := s.queue.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return fs, nil
}

// record writes the audit row for fs. The caller holds fs.mu. Failures
// are logged; the pipeline carries on without them.
func (s *Service) record(ctx context.Context, fs *FileSession) {
	ctx = context.WithoutCancel(ctx)
	rec := AuditRecord{
		FileHash:         fs.FileHash,
		Filename:         fs.Filename,
		CorrectionSource: fs.Source,
		TokensSpent:      fs.TokensSpent,
		TokensSaved:      fs.TokensSaved,
		AIAttempts:       fs.AIAttempts,
		Status:           auditStatusFor(fs.Status),
		FinalStage:       string(fs.Status),
		ErrorType:        fs.ErrorType,
		ErrorMessage:     fs.ErrorMessage,
		DurationSeconds:  time.Since(fs.CreatedAt).Seconds(),
	}
	if fs.Insertion != nil {
		rec.Inserted = fs.Insertion.Inserted
		rec.Duplicated = fs.Insertion.Duplicates
		rec.Errored = len(fs.Insertion.Errors)
	}

	log := logging.WithSession(ctx, fs.ID, fs.Filename)
	if fs.auditID == 0 {
		id, err := s.audit.Insert(ctx, rec)
		if err != nil {
			log.Warn("audit insert failed", "error", err)
			return
		}
		fs.auditID = id
		return
	}
	if err := s.audit.Update(ctx, fs.auditID, rec); err != nil {
		log.Warn("audit update failed", "audit_id", fs.auditID, "error", err)
	}
}

func readMessage(r *validation.Result) string {
	for _, e := range r.Errors {
		if re, ok := e.(validation.ReadError); ok {
			return re.Message
		}
	}
	return "unknown read error"
}

func rowCount(fs *FileSession) int {
	if t := fs.current(); t != nil {
		return t.Len()
	}
	return 0
}
