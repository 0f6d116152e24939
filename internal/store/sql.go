package store

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// schemaStatements returns the DDL for a dialect split into statements.
func schemaStatements(dialect string) ([]string, error) {
	ddl, err := schemaFS.ReadFile("schema/" + dialect + ".sql")
	if err != nil {
		return nil, fmt.Errorf("read %s schema: %w", dialect, err)
	}
	var stmts []string
	for _, stmt := range strings.Split(string(ddl), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}

const recordColumns = `id, tenant_id, schema_key, owner_id, name, tag, data, created_at, updated_at`

const auditColumns = `id, tenant_id, entity_id, field_name, old_value, new_value, actor_id, actor_name, source, created_at`

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func encodeValues(v map[string]string) ([]byte, error) {
	if v == nil {
		v = map[string]string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record data: %w", err)
	}
	return data, nil
}

func decodeValues(data []byte) (map[string]string, error) {
	v := map[string]string{}
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode record data: %w", err)
	}
	return v, nil
}

// recordWhere builds the filter clause shared by both SQL dialects.
// placeholder renders the n-th (1-based) bind parameter.
func recordWhere(tenantID string, f core.RecordFilter, placeholder func(n int) string) (string, []any) {
	clauses := []string{"tenant_id = " + placeholder(1)}
	args := []any{tenantID}
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		clauses = append(clauses, col+" = "+placeholder(len(args)))
	}
	add("schema_key", f.SchemaKey)
	add("owner_id", f.OwnerID)
	add("tag", f.Tag)
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// limitClause renders LIMIT/OFFSET; a zero limit means no limit.
// unlimited is the dialect's spelling of "no limit" ("ALL" or "-1").
func limitClause(f core.RecordFilter, unlimited string) string {
	switch {
	case f.Limit > 0 && f.Offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	case f.Limit > 0:
		return fmt.Sprintf(" LIMIT %d", f.Limit)
	case f.Offset > 0:
		return fmt.Sprintf(" LIMIT %s OFFSET %d", unlimited, f.Offset)
	default:
		return ""
	}
}
