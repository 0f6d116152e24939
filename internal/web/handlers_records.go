package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// maxEditBody caps a PATCH body.
const maxEditBody = 1 << 20

// parseIntParam parses an integer query parameter, falling back to
// defaultVal when it is absent, malformed or negative.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

func (s *Server) handleRole(w http.ResponseWriter, r *http.Request) {
	eff, err := s.service.EffectiveRole(r.Context(), actorFrom(r), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, eff)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records, err := s.service.ListRecords(r.Context(), chi.URLParam(r, "tenantID"), actorFrom(r), core.RecordFilter{
		SchemaKey: q.Get("schema"),
		OwnerID:   q.Get("owner"),
		Tag:       q.Get("tag"),
		Limit:     parseIntParam(r, "limit", 100),
		Offset:    parseIntParam(r, "offset", 0),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

// editRequest is the PATCH body: canonical field name to raw value.
type editRequest struct {
	Values map[string]string `json:"values"`
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEditBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadBody, err))
		return
	}
	if len(req.Values) == 0 {
		respondError(w, r, fmt.Errorf("%w: values must not be empty", core.ErrInvalidValue))
		return
	}

	result, err := s.service.UpdateRecord(r.Context(), chi.URLParam(r, "tenantID"), actorFrom(r), chi.URLParam(r, "recordID"), req.Values)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.History(r.Context(), chi.URLParam(r, "tenantID"), actorFrom(r),
		chi.URLParam(r, "recordID"), parseIntParam(r, "limit", 100))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}
