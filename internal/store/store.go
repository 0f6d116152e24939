// Package store provides the persistence adapters behind core.Store.
//
// Three drivers are available: an in-memory store for tests and demos,
// PostgreSQL through pgxpool, and an embedded SQLite database through the
// pure Go modernc driver. All of them enforce the same rules: a non-empty
// tag is unique per tenant and schema, the audit table is append-only, and
// every read is scoped to one tenant.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Backend is a core.Store that owns a connection and can seed memberships.
type Backend interface {
	core.Store
	UpsertMembership(ctx context.Context, m core.Membership) error
	Driver() string
	Close()
}

// Config selects and tunes a backend.
type Config struct {
	Driver          string
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects to the configured backend and applies its schema.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		pg, err := OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case DriverSQLite:
		lite, err := OpenSQLite(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return lite, nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// applyPatch merges patch into rec and bumps UpdatedAt.
func applyPatch(rec *core.Record, patch core.RecordPatch) {
	values := copyValues(rec.Values)
	for k, v := range patch.Values {
		values[k] = v
	}
	rec.Values = values
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Tag != nil {
		rec.Tag = *patch.Tag
	}
	if patch.OwnerID != nil {
		rec.OwnerID = *patch.OwnerID
	}
	rec.UpdatedAt = time.Now().UTC()
}
