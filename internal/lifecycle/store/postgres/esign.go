package postgres

import (
	"context"
	"fmt"

	"signflow/internal/lifecycle/models"
)

func (s *Store) AppendEsignEvent(ctx context.Context, event *models.EsignEvent) error {
	details, err := jsonParam(event.Details)
	if err != nil {
		return fmt.Errorf("marshal esign event details: %w", err)
	}
	err = s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO esign_events (document_id, provider, event, actor, status, details, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, event.DocumentID, event.Provider, event.Event, event.Actor, event.Status, details, event.CreatedBy, event.CreatedAt).
		Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("append esign event: %w", err)
	}
	return nil
}

func (s *Store) ListEsignEvents(ctx context.Context, documentID int64) ([]*models.EsignEvent, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, document_id, provider, event, actor, status, details, created_by, created_at
		FROM esign_events
		WHERE document_id = $1
		ORDER BY created_at, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query esign events: %w", err)
	}
	defer rows.Close()

	var out []*models.EsignEvent
	for rows.Next() {
		var e models.EsignEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Provider, &e.Event, &e.Actor, &e.Status, &details, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan esign event: %w", err)
		}
		if e.Details, err = decodeDetails(details); err != nil {
			return nil, fmt.Errorf("decode esign event details: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate esign events: %w", err)
	}
	return out, nil
}
