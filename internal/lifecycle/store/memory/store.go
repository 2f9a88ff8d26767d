// Package memory is the in-process lifecycle store used in development and
// tests. A single coarse lock serializes units of work; each unit writes to a
// staged copy of the tables that replaces the committed copy only on success.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/audit"
)

const defaultTxTimeout = 5 * time.Second

type roleKey struct {
	documentID int64
	role       string
}

// tables holds committed or staged rows. Stored pointers are never mutated in
// place, so a shallow copy is a valid snapshot.
type tables struct {
	snapshots   map[int64]*models.Snapshot
	events      []*models.StatusEvent
	batches     []*models.ShareBatch
	recipients  []*models.ShareRecipient
	sessions    map[uuid.UUID]*models.OtpSession
	roleIndex   map[roleKey]uuid.UUID
	otpEvents   []*models.OtpEvent
	esignEvents []*models.EsignEvent

	nextEventID      int64
	nextOtpEventID   int64
	nextEsignEventID int64

	pendingAudit []audit.Event
}

func newTables() *tables {
	return &tables{
		snapshots: make(map[int64]*models.Snapshot),
		sessions:  make(map[uuid.UUID]*models.OtpSession),
		roleIndex: make(map[roleKey]uuid.UUID),
	}
}

func (t *tables) clone() *tables {
	return &tables{
		snapshots:        maps.Clone(t.snapshots),
		events:           slices.Clone(t.events),
		batches:          slices.Clone(t.batches),
		recipients:       slices.Clone(t.recipients),
		sessions:         maps.Clone(t.sessions),
		roleIndex:        maps.Clone(t.roleIndex),
		otpEvents:        slices.Clone(t.otpEvents),
		esignEvents:      slices.Clone(t.esignEvents),
		nextEventID:      t.nextEventID,
		nextOtpEventID:   t.nextOtpEventID,
		nextEsignEventID: t.nextEsignEventID,
	}
}

// Store implements ports.StoreTx and hands out committed-state views.
// The catalog is reference data outside the unit of work and has its own lock.
type Store struct {
	mu sync.Mutex
	t  *tables

	catalogMu sync.RWMutex
	catalog   []models.CatalogEntry

	audit   audit.Store
	timeout time.Duration
}

type Option func(*Store)

// WithAuditSink receives audit events once their unit of work commits.
func WithAuditSink(sink audit.Store) Option {
	return func(s *Store) {
		s.audit = sink
	}
}

func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// New creates a store seeded with catalog.
func New(catalog []models.CatalogEntry, opts ...Option) *Store {
	s := &Store{t: newTables(), catalog: slices.Clone(catalog)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stores returns views over committed state. Each call locks independently;
// never use them inside RunInTx.
func (s *Store) Stores() ports.Stores {
	v := &view{store: s}
	return v.stores()
}

// SetCatalog replaces the catalog rows.
func (s *Store) SetCatalog(entries []models.CatalogEntry) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	s.catalog = slices.Clone(entries)
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	staged := s.t.clone()
	v := &view{store: s, staged: staged}
	if err := fn(ctx, v.stores()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	pending := staged.pendingAudit
	staged.pendingAudit = nil
	s.t = staged
	if s.audit != nil {
		for _, e := range pending {
			if err := s.audit.Append(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}
