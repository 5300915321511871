package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/core"
	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/web/templates"
)

// maxUploadFiles bounds the parts accepted by one upload request.
const maxUploadFiles = 20

// multipartMemory is the in-memory share of a parsed upload form.
const multipartMemory = 32 << 20

// UploadResult is the outcome for one uploaded part.
type UploadResult struct {
	Filename string            `json:"filename"`
	File     *core.SessionView `json:"file,omitempty"`
	Error    *ErrorResponse    `json:"error,omitempty"`
}

// handleUpload queues every file in the "files" field. Each file succeeds
// or fails on its own; the request fails only when none were queued.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Ingest.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize*maxUploadFiles+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("parse upload: %w", core.ErrFileTooLarge))
			return
		}
		s.respondError(w, r, fmt.Errorf("parse upload: %w", errNoFile))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		s.respondError(w, r, errNoFile)
		return
	}
	if len(headers) > maxUploadFiles {
		headers = headers[:maxUploadFiles]
	}

	results := make([]UploadResult, 0, len(headers))
	var firstErr error
	queued := 0
	for _, fh := range headers {
		res := UploadResult{Filename: fh.Filename}
		view, err := s.enqueuePart(r, fh, maxSize)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			msg := core.MapError(err)
			res.Error = &ErrorResponse{Error: err.Error(), Message: msg.Message, Action: msg.Action, Code: msg.Code}
		} else {
			res.File = &view
			queued++
		}
		results = append(results, res)
	}

	if queued == 0 {
		s.respondError(w, r, firstErr)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		for _, res := range results {
			if res.File != nil {
				_ = templates.FileRow(*res.File).Render(r.Context(), w)
				continue
			}
			_ = templates.ErrorAlert(res.Error.Message, res.Error.Action, res.Error.Code).Render(r.Context(), w)
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string][]UploadResult{"files": results})
}

func (s *Server) enqueuePart(r *http.Request, fh *multipart.FileHeader, maxSize int64) (core.SessionView, error) {
	if fh.Size > maxSize {
		return core.SessionView{}, fmt.Errorf("%s: %w", fh.Filename, core.ErrFileTooLarge)
	}
	f, err := fh.Open()
	if err != nil {
		return core.SessionView{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return core.SessionView{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return s.service.Enqueue(r.Context(), fh.Filename, data)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files := s.service.List()
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.QueueTable(files).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]core.SessionView{"files": files})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Get(fileID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondFile(w, r, http.StatusOK, view)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Report(fileID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, report)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Preview(fileID(r), parseIntParam(r, "n", core.DefaultPreviewRows))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	s.mutateFile(w, r, s.service.Correct)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	s.mutateFile(w, r, s.service.Insert)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	s.mutateFile(w, r, s.service.Skip)
}

// mutateFile runs one session operation and answers with the resulting view.
// A failed correction attempt is not an error: the view carries it.
func (s *Server) mutateFile(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (core.SessionView, error)) {
	view, err := op(r.Context(), fileID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondFile(w, r, http.StatusOK, view)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Remove(r.Context(), fileID(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		// empty body so hx-swap="outerHTML" drops the row
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	n := s.service.Reset(r.Context())
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.QueueTable(nil).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) respondFile(w http.ResponseWriter, r *http.Request, status int, view core.SessionView) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.FileRow(view).Render(r.Context(), w)
		return
	}
	writeJSON(w, status, view)
}
