package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/core"
)

var errAuditDisabled = errors.New("audit log is not configured")

// parseAuditFilter reads status, hash, since and limit from the query.
// since accepts RFC 3339 or a plain date.
func parseAuditFilter(r *http.Request) core.AuditFilter {
	q := r.URL.Query()
	f := core.AuditFilter{
		Status:   core.AuditStatus(strings.ToUpper(q.Get("status"))),
		FileHash: q.Get("hash"),
		Limit:    parseIntParam(r, "limit", core.DefaultAuditLimit),
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			f.Since = t
		} else if t, err := time.Parse("2006-01-02", since); err == nil {
			f.Since = t
		}
	}
	return f
}

func (s *Server) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.respondError(w, r, errAuditDisabled)
		return
	}
	records, err := s.audit.List(r.Context(), parseAuditFilter(r))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("list audit: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]core.AuditRecord{"records": records})
}

func (s *Server) handleAuditSummary(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.respondError(w, r, errAuditDisabled)
		return
	}
	sum, err := s.audit.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, fmt.Errorf("audit summary: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleAuditExport downloads the filtered audit records as CSV.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.respondError(w, r, errAuditDisabled)
		return
	}
	records, err := s.audit.List(r.Context(), parseAuditFilter(r))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("export audit: %w", err))
		return
	}

	filename := fmt.Sprintf("ingest_audit_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"id", "timestamp", "file_hash", "filename", "status", "final_stage",
		"correction_source", "tokens_spent", "tokens_saved", "ai_attempts",
		"inserted", "duplicated", "errored", "duration_seconds",
		"error_type", "error_message",
	})
	for _, rec := range records {
		_ = cw.Write([]string{
			strconv.FormatInt(rec.ID, 10),
			rec.UpdatedAt.Format("2006-01-02 15:04:05"),
			rec.FileHash,
			rec.Filename,
			string(rec.Status),
			rec.FinalStage,
			string(rec.CorrectionSource),
			strconv.Itoa(rec.TokensSpent),
			strconv.Itoa(rec.TokensSaved),
			strconv.Itoa(rec.AIAttempts),
			strconv.Itoa(rec.Inserted),
			strconv.Itoa(rec.Duplicated),
			strconv.Itoa(rec.Errored),
			strconv.FormatFloat(rec.DurationSeconds, 'f', 3, 64),
			rec.ErrorType,
			rec.ErrorMessage,
		})
	}
	cw.Flush()
}
