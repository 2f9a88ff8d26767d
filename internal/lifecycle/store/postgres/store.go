// Package postgres persists the document lifecycle in PostgreSQL. Every store
// method runs on the transaction carried in ctx when there is one.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/sentinel"
	txcontext "signflow/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Postgres error codes that mean "another transaction holds the row".
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeUniqueViolation      = "23505"
)

// Store implements every lifecycle store port and ports.StoreTx.
type Store struct {
	db      *sql.DB
	audit   ports.AuditLog
	timeout time.Duration
}

type Option func(*Store)

func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// New constructs the store. auditLog must write through the transaction in
// ctx so audit rows commit with the lifecycle rows.
func New(db *sql.DB, auditLog ports.AuditLog, opts ...Option) *Store {
	s := &Store{db: db, audit: auditLog}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stores returns the store ports. Outside RunInTx each call autocommits.
func (s *Store) Stores() ports.Stores {
	return ports.Stores{
		Catalog:   s,
		Snapshots: s,
		Events:    s,
		Shares:    s,
		Otp:       s,
		Esign:     s,
		Audit:     s.audit,
	}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lifecycle tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s.Stores()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isConflict(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("commit lifecycle tx: %w", err)
	}
	return nil
}

func (s *Store) q(ctx context.Context) txcontext.Querier {
	return txcontext.Or(ctx, s.db)
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return true
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// ListCatalog returns every catalog row ordered by sequence number.
func (s *Store) ListCatalog(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT code, sequence_number, is_final
		FROM status_catalog
		ORDER BY sequence_number, code
	`)
	if err != nil {
		return nil, fmt.Errorf("query status catalog: %w", err)
	}
	defer rows.Close()

	var out []models.CatalogEntry
	for rows.Next() {
		var e models.CatalogEntry
		if err := rows.Scan(&e.Code, &e.SequenceNumber, &e.IsFinal); err != nil {
			return nil, fmt.Errorf("scan status catalog: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status catalog: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// jsonParam renders v for a JSONB parameter; nil maps become SQL NULL.
func jsonParam(d models.Details) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeDetails(raw []byte) (models.Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d models.Details
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}
