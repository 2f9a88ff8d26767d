package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"signflow/internal/lifecycle/models"
	"signflow/pkg/platform/sentinel"
)

const batchColumns = `id, document_id, array_to_json(channels)::text, message, public_link, created_by, created_at`

func (s *Store) CreateBatch(ctx context.Context, batch *models.ShareBatch) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO share_batches (id, document_id, channels, message, public_link, created_by, created_at)
		VALUES ($1, $2, $3::text[], $4, $5, $6, $7)
	`, batch.ID, batch.DocumentID, pq.Array(batch.Channels), batch.Message, batch.PublicLink, batch.CreatedBy, batch.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create share batch: %w", err)
	}
	return nil
}

// CreateRecipients inserts recipients in slice order; seq preserves it.
func (s *Store) CreateRecipients(ctx context.Context, recipients []*models.ShareRecipient) error {
	q := s.q(ctx)
	for _, r := range recipients {
		details, err := jsonParam(r.Details)
		if err != nil {
			return fmt.Errorf("marshal recipient details: %w", err)
		}
		_, err = q.ExecContext(ctx, `
			INSERT INTO share_recipients (id, batch_id, name, type, value, role, channel, status, gateway_ref, details)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, r.ID, r.BatchID, r.Name, string(r.Type), r.Value, string(r.Role), r.Channel, string(r.Status), r.GatewayRef, details)
		if err != nil {
			return fmt.Errorf("create share recipient: %w", err)
		}
	}
	return nil
}

func (s *Store) FindBatch(ctx context.Context, batchID uuid.UUID) (*models.ShareBatch, error) {
	b, err := scanBatch(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM share_batches WHERE id = $1`, batchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find share batch: %w", err)
	}
	return b, nil
}

func (s *Store) ListBatches(ctx context.Context, documentID int64) ([]*models.ShareBatch, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+batchColumns+`
		FROM share_batches
		WHERE document_id = $1
		ORDER BY created_at DESC, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query share batches: %w", err)
	}
	defer rows.Close()

	var out []*models.ShareBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share batch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share batches: %w", err)
	}
	return out, nil
}

func (s *Store) ListRecipients(ctx context.Context, batchID uuid.UUID) ([]*models.ShareRecipient, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, batch_id, name, type, value, role, channel, status, gateway_ref, details
		FROM share_recipients
		WHERE batch_id = $1
		ORDER BY seq
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query share recipients: %w", err)
	}
	defer rows.Close()

	var out []*models.ShareRecipient
	for rows.Next() {
		var r models.ShareRecipient
		var typ, role, status string
		var details []byte
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Name, &typ, &r.Value, &role, &r.Channel, &status, &r.GatewayRef, &details); err != nil {
			return nil, fmt.Errorf("scan share recipient: %w", err)
		}
		r.Type = models.RecipientType(typ)
		r.Role = models.RecipientRole(role)
		r.Status = models.RecipientStatus(status)
		if r.Details, err = decodeDetails(details); err != nil {
			return nil, fmt.Errorf("decode recipient details: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share recipients: %w", err)
	}
	return out, nil
}

func scanBatch(row rowScanner) (*models.ShareBatch, error) {
	var b models.ShareBatch
	var channels string
	if err := row.Scan(&b.ID, &b.DocumentID, &channels, &b.Message, &b.PublicLink, &b.CreatedBy, &b.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(channels), &b.Channels); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return &b, nil
}
