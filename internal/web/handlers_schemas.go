package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// fieldResponse describes one importable column.
type fieldResponse struct {
	Name       string   `json:"name"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Required   bool     `json:"required,omitempty"`
	Default    string   `json:"default,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
	EnumValues []string `json:"enumValues,omitempty"`
}

// schemaResponse is the public shape of a core.Schema.
type schemaResponse struct {
	Key     string          `json:"key"`
	Label   string          `json:"label"`
	Columns []string        `json:"columns"`
	Fields  []fieldResponse `json:"fields"`
	Derived []string        `json:"derived,omitempty"`
}

func toSchemaResponse(s *core.Schema) schemaResponse {
	resp := schemaResponse{
		Key:     s.Key,
		Label:   s.Label,
		Columns: s.Columns(),
		Fields:  make([]fieldResponse, 0, len(s.Fields)),
	}
	for _, f := range s.Fields {
		resp.Fields = append(resp.Fields, fieldResponse{
			Name:       f.Name,
			Label:      f.DisplayName(),
			Type:       f.Type.String(),
			Required:   f.Required,
			Default:    f.Default,
			Aliases:    f.Aliases,
			EnumValues: f.EnumValues,
		})
	}
	for _, d := range s.Derived {
		resp.Derived = append(resp.Derived, d.Name)
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"imports":  s.service.Limiter().Status(),
		"previews": s.service.PendingPreviews(),
	}
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			body["status"] = "unavailable"
			body["error"] = core.MapError(err).Message
			writeJSON(w, r, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, body)
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := s.service.Schemas()
	out := make([]schemaResponse, 0, len(schemas))
	for _, sc := range schemas {
		out = append(out, toSchemaResponse(sc))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleTemplate serves a header-only file for a schema as CSV (default)
// or XLSX.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "schemaKey")
	schema, ok := core.Get(key)
	if !ok {
		respondError(w, r, fmt.Errorf("%w: %s", core.ErrUnknownSchema, key))
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-template.csv"`, schema.Key))
		_, _ = w.Write([]byte(core.Template(schema)))
	case "xlsx":
		data, err := core.TemplateXLSX(schema)
		if err != nil {
			respondError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-template.xlsx"`, schema.Key))
		_, _ = w.Write(data)
	default:
		respondError(w, r, fmt.Errorf("%w: format must be csv or xlsx", core.ErrInvalidValue))
	}
}
