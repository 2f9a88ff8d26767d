// Package ports declares the persistence and collaborator boundaries of the
// document lifecycle. Stores are pure I/O: they return sentinel errors and
// never make domain decisions.
package ports

import (
	"context"

	"github.com/google/uuid"

	"signflow/internal/lifecycle/models"
	"signflow/pkg/platform/audit"
)

// LockMode selects how a row lock is acquired.
type LockMode int

const (
	// LockWait blocks until the row lock is granted.
	LockWait LockMode = iota
	// LockNoWait fails immediately with sentinel.ErrConflict when the row is held.
	LockNoWait
)

type CatalogStore interface {
	ListCatalog(ctx context.Context) ([]models.CatalogEntry, error)
}

type SnapshotStore interface {
	FindSnapshot(ctx context.Context, documentID int64) (*models.Snapshot, error)
	// LockSnapshot reads the snapshot and holds its row lock until the
	// surrounding transaction ends.
	LockSnapshot(ctx context.Context, documentID int64, mode LockMode) (*models.Snapshot, error)
	// CreateSnapshotIfAbsent inserts snap unless one already exists and
	// reports whether it did.
	CreateSnapshotIfAbsent(ctx context.Context, snap *models.Snapshot) (bool, error)
	UpdateSnapshot(ctx context.Context, snap *models.Snapshot) error
}

type EventStore interface {
	// AppendStatusEvent assigns event.ID.
	AppendStatusEvent(ctx context.Context, event *models.StatusEvent) error
	ListStatusEvents(ctx context.Context, documentID int64) ([]*models.StatusEvent, error)
}

type ShareStore interface {
	CreateBatch(ctx context.Context, batch *models.ShareBatch) error
	CreateRecipients(ctx context.Context, recipients []*models.ShareRecipient) error
	FindBatch(ctx context.Context, batchID uuid.UUID) (*models.ShareBatch, error)
	// ListBatches returns batches newest first.
	ListBatches(ctx context.Context, documentID int64) ([]*models.ShareBatch, error)
	// ListRecipients returns recipients in insertion order.
	ListRecipients(ctx context.Context, batchID uuid.UUID) ([]*models.ShareRecipient, error)
}

type OtpStore interface {
	// UpsertRoleSession replaces the document_role session for
	// (DocumentID, Role), keeping its id when one exists, and returns the
	// stored row.
	UpsertRoleSession(ctx context.Context, session *models.OtpSession) (*models.OtpSession, error)
	LockRoleSession(ctx context.Context, documentID int64, role string) (*models.OtpSession, error)
	ListRoleSessions(ctx context.Context, documentID int64) ([]*models.OtpSession, error)

	CreateSession(ctx context.Context, session *models.OtpSession) error
	FindSession(ctx context.Context, id uuid.UUID) (*models.OtpSession, error)
	LockSession(ctx context.Context, id uuid.UUID) (*models.OtpSession, error)
	UpdateSession(ctx context.Context, session *models.OtpSession) error

	// AppendOtpEvent assigns event.ID.
	AppendOtpEvent(ctx context.Context, event *models.OtpEvent) error
	ListOtpEvents(ctx context.Context, documentID int64) ([]*models.OtpEvent, error)
}

type EsignStore interface {
	// AppendEsignEvent assigns event.ID.
	AppendEsignEvent(ctx context.Context, event *models.EsignEvent) error
	ListEsignEvents(ctx context.Context, documentID int64) ([]*models.EsignEvent, error)
}

// AuditLog receives domain audit events inside the unit of work.
type AuditLog interface {
	Append(ctx context.Context, event audit.Event) error
}

// Stores is the full set of lifecycle stores bound to one unit of work, or
// to committed state when obtained outside RunInTx.
type Stores struct {
	Catalog   CatalogStore
	Snapshots SnapshotStore
	Events    EventStore
	Shares    ShareStore
	Otp       OtpStore
	Esign     EsignStore
	Audit     AuditLog
}

// StoreTx runs fn atomically. Every write made through the supplied stores
// commits together or not at all. fn must only use the stores and context it
// is given.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
