package web

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// handlePreview parses a multipart "file" upload and holds the validated
// result. The response carries the preview id to confirm.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(w, r, errFileTooLarge)
			return
		}
		respondError(w, r, errNoFile)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.service.ParsePreview(r.Context(), chi.URLParam(r, "tenantID"), actorFrom(r),
		chi.URLParam(r, "schemaKey"), core.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// importResponse adds the summary line to the report.
type importResponse struct {
	core.ImportReport
	Summary string `json:"summary"`
}

func (s *Server) handleConfirmImport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.ConfirmImport(r.Context(), chi.URLParam(r, "tenantID"), actorFrom(r), chi.URLParam(r, "previewID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, importResponse{ImportReport: report, Summary: report.Summary()})
}

func (s *Server) handleDiscardPreview(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DiscardPreview(r.Context(), chi.URLParam(r, "tenantID"), actorFrom(r), chi.URLParam(r, "previewID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
