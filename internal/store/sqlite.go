package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// sqliteTime is fixed width so stored timestamps sort as text.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite is a core.Store in a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

var _ Backend = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema. ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		path = "stockroom.db"
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps a :memory: database alive.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	stmts, err := schemaStatements(DriverSQLite)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Driver reports "sqlite".
func (s *SQLite) Driver() string { return DriverSQLite }

// Close closes the database.
func (s *SQLite) Close() { _ = s.db.Close() }

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) UpsertMembership(ctx context.Context, m core.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenant_memberships (tenant_id, user_id, role, is_owner, is_primary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE
		SET role = excluded.role, is_owner = excluded.is_owner, is_primary = excluded.is_primary`,
		m.TenantID, m.UserID, string(m.Role), m.IsOwner, m.IsPrimary)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (s *SQLite) GetMembership(ctx context.Context, tenantID, userID string) (core.Membership, error) {
	m := core.Membership{TenantID: tenantID, UserID: userID}
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role, is_owner, is_primary FROM tenant_memberships
		WHERE tenant_id = ? AND user_id = ?`, tenantID, userID).
		Scan(&role, &m.IsOwner, &m.IsPrimary)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Membership{}, core.ErrNotMember
	}
	if err != nil {
		return core.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	m.Role = core.Role(role)
	return m, nil
}

func (s *SQLite) InsertRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	data, err := encodeValues(rec.Values)
	if err != nil {
		return core.Record{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inventory_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.SchemaKey, rec.OwnerID, rec.Name, rec.Tag, string(data),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return core.Record{}, sqliteError("insert record", err)
	}
	return cloneRecord(rec), nil
}

func (s *SQLite) UpdateRecord(ctx context.Context, tenantID, id string, patch core.RecordPatch) (core.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanSQLiteRecord(tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM inventory_records
		WHERE tenant_id = ? AND id = ?`, tenantID, id))
	if err != nil {
		return core.Record{}, err
	}

	applyPatch(&rec, patch)
	data, err := encodeValues(rec.Values)
	if err != nil {
		return core.Record{}, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_records
		SET owner_id = ?, name = ?, tag = ?, data = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		rec.OwnerID, rec.Name, rec.Tag, string(data), formatTime(rec.UpdatedAt), tenantID, id)
	if err != nil {
		return core.Record{}, sqliteError("update record", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *SQLite) GetRecord(ctx context.Context, tenantID, id string) (core.Record, error) {
	return scanSQLiteRecord(s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM inventory_records
		WHERE tenant_id = ? AND id = ?`, tenantID, id))
}

func (s *SQLite) SelectRecords(ctx context.Context, tenantID string, f core.RecordFilter) ([]core.Record, error) {
	where, args := recordWhere(tenantID, f, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM inventory_records`+where+
		` ORDER BY created_at, id`+limitClause(f, "-1"), args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []core.Record{}
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	return out, nil
}

func (s *SQLite) AppendAudit(ctx context.Context, recs []core.AuditRecord) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO record_audit (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range recs {
		var old sql.NullString
		if r.OldValue != nil {
			old = sql.NullString{String: *r.OldValue, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.TenantID, r.EntityID, r.FieldName, old, r.NewValue,
			r.ActorID, r.ActorDisplayName, string(r.Source), formatTime(r.Timestamp)); err != nil {
			return fmt.Errorf("insert audit record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLite) ListAudit(ctx context.Context, tenantID, entityID string, limit int) ([]core.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM record_audit
		WHERE tenant_id = ? AND entity_id = ? ORDER BY seq DESC`
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := s.db.QueryContext(ctx, query, tenantID, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []core.AuditRecord{}
	for rows.Next() {
		var (
			a       core.AuditRecord
			old     sql.NullString
			source  string
			created string
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.EntityID, &a.FieldName, &old, &a.NewValue,
			&a.ActorID, &a.ActorDisplayName, &source, &created); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		if old.Valid {
			v := old.String
			a.OldValue = &v
		}
		a.Source = core.AuditSource(source)
		if a.Timestamp, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}

func scanSQLiteRecord(row scanner) (core.Record, error) {
	var (
		rec              core.Record
		data             string
		created, updated string
	)
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.SchemaKey, &rec.OwnerID, &rec.Name, &rec.Tag,
		&data, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}
	if rec.Values, err = decodeValues([]byte(data)); err != nil {
		return core.Record{}, err
	}
	if rec.CreatedAt, err = parseTime(created); err != nil {
		return core.Record{}, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return core.Record{}, err
	}
	return rec, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(sqliteTime) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTime, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// sqliteError maps a unique constraint failure to core.ErrDuplicateTag.
func sqliteError(op string, err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return fmt.Errorf("%s: %w", op, core.ErrDuplicateTag)
	}
	return fmt.Errorf("%s: %w", op, err)
}
