package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint failure.
const pgUniqueViolation = "23505"

// Postgres is a core.Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Backend = (*Postgres)(nil)

// OpenPostgres connects, pings, and applies the schema.
func OpenPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := NewPostgres(pool)
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool. The schema is not applied.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables and indexes if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	stmts, err := schemaStatements(DriverPostgres)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Driver reports "postgres".
func (p *Postgres) Driver() string { return DriverPostgres }

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// Ping checks connectivity for health reporting.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) UpsertMembership(ctx context.Context, m core.Membership) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO tenant_memberships (tenant_id, user_id, role, is_owner, is_primary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, user_id) DO UPDATE
		SET role = EXCLUDED.role, is_owner = EXCLUDED.is_owner, is_primary = EXCLUDED.is_primary`,
		m.TenantID, m.UserID, string(m.Role), m.IsOwner, m.IsPrimary)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (p *Postgres) GetMembership(ctx context.Context, tenantID, userID string) (core.Membership, error) {
	m := core.Membership{TenantID: tenantID, UserID: userID}
	var role string
	err := p.pool.QueryRow(ctx, `
		SELECT role, is_owner, is_primary FROM tenant_memberships
		WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID).
		Scan(&role, &m.IsOwner, &m.IsPrimary)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Membership{}, core.ErrNotMember
	}
	if err != nil {
		return core.Membership{}, fmt.Errorf("get membership: %w", err)
	}
	m.Role = core.Role(role)
	return m, nil
}

func (p *Postgres) InsertRecord(ctx context.Context, rec core.Record) (core.Record, error) {
	data, err := encodeValues(rec.Values)
	if err != nil {
		return core.Record{}, err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO inventory_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.TenantID, rec.SchemaKey, rec.OwnerID, rec.Name, rec.Tag, data, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return core.Record{}, pgError("insert record", err)
	}
	return cloneRecord(rec), nil
}

func (p *Postgres) UpdateRecord(ctx context.Context, tenantID, id string, patch core.RecordPatch) (core.Record, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return core.Record{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rec, err := scanPgRecord(tx.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM inventory_records
		WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id))
	if err != nil {
		return core.Record{}, err
	}

	applyPatch(&rec, patch)
	data, err := encodeValues(rec.Values)
	if err != nil {
		return core.Record{}, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE inventory_records
		SET owner_id = $3, name = $4, tag = $5, data = $6, updated_at = $7
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, rec.OwnerID, rec.Name, rec.Tag, data, rec.UpdatedAt)
	if err != nil {
		return core.Record{}, pgError("update record", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return core.Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (p *Postgres) GetRecord(ctx context.Context, tenantID, id string) (core.Record, error) {
	return scanPgRecord(p.pool.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM inventory_records
		WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (p *Postgres) SelectRecords(ctx context.Context, tenantID string, f core.RecordFilter) ([]core.Record, error) {
	where, args := recordWhere(tenantID, f, func(n int) string { return "$" + strconv.Itoa(n) })
	rows, err := p.pool.Query(ctx, `SELECT `+recordColumns+` FROM inventory_records`+where+
		` ORDER BY created_at, id`+limitClause(f, "ALL"), args...)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer rows.Close()

	out := []core.Record{}
	for rows.Next() {
		rec, err := scanPgRecord(rows)
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

func (p *Postgres) AppendAudit(ctx context.Context, recs []core.AuditRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{r.ID, r.TenantID, r.EntityID, r.FieldName, r.OldValue, r.NewValue,
			r.ActorID, r.ActorDisplayName, string(r.Source), r.Timestamp}
	}
	_, err := p.pool.CopyFrom(ctx,
		pgx.Identifier{"record_audit"},
		[]string{"id", "tenant_id", "entity_id", "field_name", "old_value", "new_value", "actor_id", "actor_name", "source", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy audit records: %w", err)
	}
	return nil
}

func (p *Postgres) ListAudit(ctx context.Context, tenantID, entityID string, limit int) ([]core.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM record_audit
		WHERE tenant_id = $1 AND entity_id = $2 ORDER BY seq DESC`
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := p.pool.Query(ctx, query, tenantID, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	out := []core.AuditRecord{}
	for rows.Next() {
		var (
			a      core.AuditRecord
			source string
		)
		if err := rows.Scan(&a.ID, &a.TenantID, &a.EntityID, &a.FieldName, &a.OldValue, &a.NewValue,
			&a.ActorID, &a.ActorDisplayName, &source, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		a.Source = core.AuditSource(source)
		a.Timestamp = a.Timestamp.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}

func scanPgRecord(row scanner) (core.Record, error) {
	var (
		rec  core.Record
		data []byte
	)
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.SchemaKey, &rec.OwnerID, &rec.Name, &rec.Tag,
		&data, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Record{}, core.ErrNotFound
	}
	if err != nil {
		return core.Record{}, fmt.Errorf("scan record: %w", err)
	}
	if rec.Values, err = decodeValues(data); err != nil {
		return core.Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

// pgError maps a unique violation to core.ErrDuplicateTag.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, core.ErrDuplicateTag)
	}
	return fmt.Errorf("%s: %w", op, err)
}
