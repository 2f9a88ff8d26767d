package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	"signflow/pkg/platform/audit"
	"signflow/pkg/platform/sentinel"
)

// view binds store methods either to a staged unit of work (already under
// the store lock) or to committed state.
type view struct {
	store  *Store
	staged *tables
}

func (v *view) stores() ports.Stores {
	return ports.Stores{
		Catalog:   v,
		Snapshots: v,
		Events:    v,
		Shares:    v,
		Otp:       v,
		Esign:     v,
		Audit:     v,
	}
}

func (v *view) with(fn func(t *tables) error) error {
	if v.staged != nil {
		return fn(v.staged)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.t)
}

// Catalog

func (v *view) ListCatalog(_ context.Context) ([]models.CatalogEntry, error) {
	v.store.catalogMu.RLock()
	defer v.store.catalogMu.RUnlock()
	return slices.Clone(v.store.catalog), nil
}

// Snapshots

func (v *view) FindSnapshot(_ context.Context, documentID int64) (*models.Snapshot, error) {
	var out *models.Snapshot
	err := v.with(func(t *tables) error {
		snap, ok := t.snapshots[documentID]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = snap.Clone()
		return nil
	})
	return out, err
}

// LockSnapshot reads the snapshot. The unit of work already holds the store
// lock, so no row lock is needed and LockNoWait never conflicts.
func (v *view) LockSnapshot(ctx context.Context, documentID int64, _ ports.LockMode) (*models.Snapshot, error) {
	return v.FindSnapshot(ctx, documentID)
}

func (v *view) CreateSnapshotIfAbsent(_ context.Context, snap *models.Snapshot) (bool, error) {
	created := false
	err := v.with(func(t *tables) error {
		if _, ok := t.snapshots[snap.DocumentID]; ok {
			return nil
		}
		t.snapshots[snap.DocumentID] = snap.Clone()
		created = true
		return nil
	})
	return created, err
}

func (v *view) UpdateSnapshot(_ context.Context, snap *models.Snapshot) error {
	return v.with(func(t *tables) error {
		if _, ok := t.snapshots[snap.DocumentID]; !ok {
			return sentinel.ErrNotFound
		}
		t.snapshots[snap.DocumentID] = snap.Clone()
		return nil
	})
}

// Status events

func (v *view) AppendStatusEvent(_ context.Context, event *models.StatusEvent) error {
	return v.with(func(t *tables) error {
		t.nextEventID++
		event.ID = t.nextEventID
		stored := *event
		stored.Details = event.Details.Clone()
		t.events = append(t.events, &stored)
		return nil
	})
}

func (v *view) ListStatusEvents(_ context.Context, documentID int64) ([]*models.StatusEvent, error) {
	var out []*models.StatusEvent
	err := v.with(func(t *tables) error {
		for _, e := range t.events {
			if e.DocumentID == documentID {
				c := *e
				c.Details = e.Details.Clone()
				out = append(out, &c)
			}
		}
		return nil
	})
	models.SortStatusEvents(out)
	return out, err
}

// Share batches

func (v *view) CreateBatch(_ context.Context, batch *models.ShareBatch) error {
	return v.with(func(t *tables) error {
		for _, b := range t.batches {
			if b.ID == batch.ID {
				return sentinel.ErrConflict
			}
		}
		c := *batch
		c.Channels = slices.Clone(batch.Channels)
		t.batches = append(t.batches, &c)
		return nil
	})
}

func (v *view) CreateRecipients(_ context.Context, recipients []*models.ShareRecipient) error {
	return v.with(func(t *tables) error {
		for _, r := range recipients {
			c := *r
			c.Details = r.Details.Clone()
			t.recipients = append(t.recipients, &c)
		}
		return nil
	})
}

func (v *view) FindBatch(_ context.Context, batchID uuid.UUID) (*models.ShareBatch, error) {
	var out *models.ShareBatch
	err := v.with(func(t *tables) error {
		for _, b := range t.batches {
			if b.ID == batchID {
				c := *b
				c.Channels = slices.Clone(b.Channels)
				out = &c
				return nil
			}
		}
		return sentinel.ErrNotFound
	})
	return out, err
}

func (v *view) ListBatches(_ context.Context, documentID int64) ([]*models.ShareBatch, error) {
	var out []*models.ShareBatch
	err := v.with(func(t *tables) error {
		// newest first; later inserts win ties
		for i := len(t.batches) - 1; i >= 0; i-- {
			b := t.batches[i]
			if b.DocumentID == documentID {
				c := *b
				c.Channels = slices.Clone(b.Channels)
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (v *view) ListRecipients(_ context.Context, batchID uuid.UUID) ([]*models.ShareRecipient, error) {
	var out []*models.ShareRecipient
	err := v.with(func(t *tables) error {
		for _, r := range t.recipients {
			if r.BatchID == batchID {
				c := *r
				c.Details = r.Details.Clone()
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

// OTP sessions

func (v *view) UpsertRoleSession(_ context.Context, session *models.OtpSession) (*models.OtpSession, error) {
	var out *models.OtpSession
	err := v.with(func(t *tables) error {
		key := roleKey{documentID: session.DocumentID, role: session.Role}
		stored := session.Clone()
		stored.Kind = models.SessionDocumentRole
		if id, ok := t.roleIndex[key]; ok {
			stored.ID = id
		} else if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		t.sessions[stored.ID] = stored
		t.roleIndex[key] = stored.ID
		out = stored.Clone()
		return nil
	})
	return out, err
}

func (v *view) LockRoleSession(_ context.Context, documentID int64, role string) (*models.OtpSession, error) {
	var out *models.OtpSession
	err := v.with(func(t *tables) error {
		id, ok := t.roleIndex[roleKey{documentID: documentID, role: role}]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = t.sessions[id].Clone()
		return nil
	})
	return out, err
}

func (v *view) ListRoleSessions(_ context.Context, documentID int64) ([]*models.OtpSession, error) {
	var out []*models.OtpSession
	err := v.with(func(t *tables) error {
		for key, id := range t.roleIndex {
			if key.documentID == documentID {
				out = append(out, t.sessions[id].Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out, err
}

func (v *view) CreateSession(_ context.Context, session *models.OtpSession) error {
	return v.with(func(t *tables) error {
		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		if _, ok := t.sessions[session.ID]; ok {
			return sentinel.ErrConflict
		}
		t.sessions[session.ID] = session.Clone()
		return nil
	})
}

func (v *view) FindSession(_ context.Context, id uuid.UUID) (*models.OtpSession, error) {
	var out *models.OtpSession
	err := v.with(func(t *tables) error {
		s, ok := t.sessions[id]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = s.Clone()
		return nil
	})
	return out, err
}

func (v *view) LockSession(ctx context.Context, id uuid.UUID) (*models.OtpSession, error) {
	return v.FindSession(ctx, id)
}

func (v *view) UpdateSession(_ context.Context, session *models.OtpSession) error {
	return v.with(func(t *tables) error {
		if _, ok := t.sessions[session.ID]; !ok {
			return sentinel.ErrNotFound
		}
		t.sessions[session.ID] = session.Clone()
		return nil
	})
}

func (v *view) AppendOtpEvent(_ context.Context, event *models.OtpEvent) error {
	return v.with(func(t *tables) error {
		t.nextOtpEventID++
		event.ID = t.nextOtpEventID
		c := *event
		c.Details = event.Details.Clone()
		t.otpEvents = append(t.otpEvents, &c)
		return nil
	})
}

func (v *view) ListOtpEvents(_ context.Context, documentID int64) ([]*models.OtpEvent, error) {
	var out []*models.OtpEvent
	err := v.with(func(t *tables) error {
		for _, e := range t.otpEvents {
			if e.DocumentID == documentID {
				c := *e
				c.Details = e.Details.Clone()
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// E-sign events

func (v *view) AppendEsignEvent(_ context.Context, event *models.EsignEvent) error {
	return v.with(func(t *tables) error {
		t.nextEsignEventID++
		event.ID = t.nextEsignEventID
		c := *event
		c.Details = event.Details.Clone()
		t.esignEvents = append(t.esignEvents, &c)
		return nil
	})
}

func (v *view) ListEsignEvents(_ context.Context, documentID int64) ([]*models.EsignEvent, error) {
	var out []*models.EsignEvent
	err := v.with(func(t *tables) error {
		for _, e := range t.esignEvents {
			if e.DocumentID == documentID {
				c := *e
				c.Details = e.Details.Clone()
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// Audit

// Append buffers event until the unit of work commits. Outside a unit of
// work it goes straight to the sink.
func (v *view) Append(ctx context.Context, event audit.Event) error {
	if v.staged != nil {
		v.staged.pendingAudit = append(v.staged.pendingAudit, event)
		return nil
	}
	if v.store.audit == nil {
		return nil
	}
	return v.store.audit.Append(ctx, event)
}
