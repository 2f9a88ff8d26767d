package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	"signflow/pkg/platform/sentinel"
)

const snapshotColumns = `document_id, current_status, completed_statuses, steps_done, progress_pct, reason, changed_by, changed_at`

func (s *Store) FindSnapshot(ctx context.Context, documentID int64) (*models.Snapshot, error) {
	snap, err := scanSnapshot(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM document_status_snapshot WHERE document_id = $1`, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find snapshot: %w", err)
	}
	return snap, nil
}

// LockSnapshot selects the row FOR UPDATE. With LockNoWait a held row fails
// immediately with sentinel.ErrConflict.
func (s *Store) LockSnapshot(ctx context.Context, documentID int64, mode ports.LockMode) (*models.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM document_status_snapshot WHERE document_id = $1 FOR UPDATE`
	if mode == ports.LockNoWait {
		query += ` NOWAIT`
	}
	snap, err := scanSnapshot(s.q(ctx).QueryRowContext(ctx, query, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		if isConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("lock snapshot: %w", err)
	}
	return snap, nil
}

// CreateSnapshotIfAbsent inserts the row unless a concurrent creator won.
func (s *Store) CreateSnapshotIfAbsent(ctx context.Context, snap *models.Snapshot) (bool, error) {
	completed, err := json.Marshal(snap.CompletedStatuses)
	if err != nil {
		return false, fmt.Errorf("marshal completed statuses: %w", err)
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO document_status_snapshot (`+snapshotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO NOTHING
	`, snap.DocumentID, snap.CurrentStatus, string(completed), snap.StepsDone, snap.ProgressPct,
		snap.Reason, snap.ChangedBy, snap.ChangedAt)
	if err != nil {
		return false, fmt.Errorf("create snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create snapshot rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *Store) UpdateSnapshot(ctx context.Context, snap *models.Snapshot) error {
	completed, err := json.Marshal(snap.CompletedStatuses)
	if err != nil {
		return fmt.Errorf("marshal completed statuses: %w", err)
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE document_status_snapshot
		SET current_status = $2,
			completed_statuses = $3,
			steps_done = $4,
			progress_pct = $5,
			reason = $6,
			changed_by = $7,
			changed_at = $8
		WHERE document_id = $1
	`, snap.DocumentID, snap.CurrentStatus, string(completed), snap.StepsDone, snap.ProgressPct,
		snap.Reason, snap.ChangedBy, snap.ChangedAt)
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update snapshot rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanSnapshot(row rowScanner) (*models.Snapshot, error) {
	var snap models.Snapshot
	var completed []byte
	if err := row.Scan(&snap.DocumentID, &snap.CurrentStatus, &completed, &snap.StepsDone,
		&snap.ProgressPct, &snap.Reason, &snap.ChangedBy, &snap.ChangedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(completed, &snap.CompletedStatuses); err != nil {
		return nil, fmt.Errorf("decode completed statuses: %w", err)
	}
	return &snap, nil
}

// AppendStatusEvent inserts the event and assigns its id.
func (s *Store) AppendStatusEvent(ctx context.Context, event *models.StatusEvent) error {
	details, err := jsonParam(event.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	err = s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO document_status_events (document_id, old_status, new_status, reason, details, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, event.DocumentID, event.OldStatus, event.NewStatus, event.Reason, details, event.ChangedBy, event.ChangedAt).
		Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("append status event: %w", err)
	}
	return nil
}

func (s *Store) ListStatusEvents(ctx context.Context, documentID int64) ([]*models.StatusEvent, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, document_id, old_status, new_status, reason, details, changed_by, changed_at
		FROM document_status_events
		WHERE document_id = $1
		ORDER BY changed_at, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query status events: %w", err)
	}
	defer rows.Close()

	var out []*models.StatusEvent
	for rows.Next() {
		var e models.StatusEvent
		var old sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &e.DocumentID, &old, &e.NewStatus, &e.Reason, &details, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		if old.Valid {
			e.OldStatus = &old.String
		}
		if e.Details, err = decodeDetails(details); err != nil {
			return nil, fmt.Errorf("decode status event details: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status events: %w", err)
	}
	return out, nil
}
