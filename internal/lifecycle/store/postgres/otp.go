package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"signflow/internal/lifecycle/models"
	"signflow/pkg/platform/sentinel"
)

const sessionColumns = `id, kind, document_id, role, channel, sent_to, code_hash, otp_ref, expires_at,
	attempts, max_attempts, verified_at, created_by, created_at, updated_at,
	signer_name, signer_status, redirect_url`

// UpsertRoleSession replaces the (document, role) session in one statement so
// concurrent resends cannot create a second row.
func (s *Store) UpsertRoleSession(ctx context.Context, session *models.OtpSession) (*models.OtpSession, error) {
	id := session.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	stored, err := scanSession(s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO otp_sessions (id, kind, document_id, role, channel, sent_to, code_hash, otp_ref, expires_at,
			attempts, max_attempts, verified_at, created_by, created_at, updated_at)
		VALUES ($1, 'document_role', $2, $3, $4, $5, $6, $7, $8, 0, $9, NULL, $10, $11, $11)
		ON CONFLICT (document_id, role) WHERE kind = 'document_role' DO UPDATE SET
			channel = EXCLUDED.channel,
			sent_to = EXCLUDED.sent_to,
			code_hash = EXCLUDED.code_hash,
			otp_ref = EXCLUDED.otp_ref,
			expires_at = EXCLUDED.expires_at,
			attempts = 0,
			max_attempts = EXCLUDED.max_attempts,
			verified_at = NULL,
			created_by = EXCLUDED.created_by,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		RETURNING `+sessionColumns,
		id, session.DocumentID, session.Role, session.Channel, session.SentTo, session.CodeHash, session.OtpRef,
		session.ExpiresAt, session.MaxAttempts, session.CreatedBy, session.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert otp session: %w", err)
	}
	return stored, nil
}

func (s *Store) LockRoleSession(ctx context.Context, documentID int64, role string) (*models.OtpSession, error) {
	session, err := scanSession(s.q(ctx).QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM otp_sessions
		WHERE document_id = $1 AND role = $2 AND kind = 'document_role'
		FOR UPDATE
	`, documentID, role))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		if isConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("lock otp session: %w", err)
	}
	return session, nil
}

func (s *Store) ListRoleSessions(ctx context.Context, documentID int64) ([]*models.OtpSession, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM otp_sessions
		WHERE document_id = $1 AND kind = 'document_role'
		ORDER BY role
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query otp sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.OtpSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan otp session: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate otp sessions: %w", err)
	}
	return out, nil
}

func (s *Store) CreateSession(ctx context.Context, session *models.OtpSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO otp_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, session.ID, string(session.Kind), session.DocumentID, session.Role, session.Channel, session.SentTo,
		session.CodeHash, session.OtpRef, session.ExpiresAt, session.Attempts, session.MaxAttempts,
		session.VerifiedAt, session.CreatedBy, session.CreatedAt, session.UpdatedAt,
		session.SignerName, string(session.SignerStatus), session.RedirectURL)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create otp session: %w", err)
	}
	return nil
}

func (s *Store) FindSession(ctx context.Context, id uuid.UUID) (*models.OtpSession, error) {
	session, err := scanSession(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM otp_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find otp session: %w", err)
	}
	return session, nil
}

func (s *Store) LockSession(ctx context.Context, id uuid.UUID) (*models.OtpSession, error) {
	session, err := scanSession(s.q(ctx).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM otp_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		if isConflict(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("lock otp session: %w", err)
	}
	return session, nil
}

// UpdateSession writes the mutable fields. verified_at is only ever set, never
// cleared, here; reissue goes through UpsertRoleSession.
func (s *Store) UpdateSession(ctx context.Context, session *models.OtpSession) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE otp_sessions
		SET attempts = $2,
			verified_at = COALESCE(verified_at, $3),
			updated_at = $4,
			signer_status = $5,
			redirect_url = $6
		WHERE id = $1
	`, session.ID, session.Attempts, session.VerifiedAt, session.UpdatedAt,
		string(session.SignerStatus), session.RedirectURL)
	if err != nil {
		return fmt.Errorf("update otp session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update otp session rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanSession(row rowScanner) (*models.OtpSession, error) {
	var s models.OtpSession
	var kind, signerStatus string
	var verifiedAt sql.NullTime
	if err := row.Scan(&s.ID, &kind, &s.DocumentID, &s.Role, &s.Channel, &s.SentTo, &s.CodeHash, &s.OtpRef,
		&s.ExpiresAt, &s.Attempts, &s.MaxAttempts, &verifiedAt, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
		&s.SignerName, &signerStatus, &s.RedirectURL); err != nil {
		return nil, err
	}
	s.Kind = models.SessionKind(kind)
	s.SignerStatus = models.SignerStatus(signerStatus)
	if verifiedAt.Valid {
		s.VerifiedAt = &verifiedAt.Time
	}
	return &s, nil
}

func (s *Store) AppendOtpEvent(ctx context.Context, event *models.OtpEvent) error {
	details, err := jsonParam(event.Details)
	if err != nil {
		return fmt.Errorf("marshal otp event details: %w", err)
	}
	err = s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO otp_events (document_id, session_id, role, event, details, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, event.DocumentID, event.SessionID, event.Role, event.Event, details, event.CreatedBy, event.CreatedAt).
		Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("append otp event: %w", err)
	}
	return nil
}

func (s *Store) ListOtpEvents(ctx context.Context, documentID int64) ([]*models.OtpEvent, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, document_id, session_id, role, event, details, created_by, created_at
		FROM otp_events
		WHERE document_id = $1
		ORDER BY created_at, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query otp events: %w", err)
	}
	defer rows.Close()

	var out []*models.OtpEvent
	for rows.Next() {
		var e models.OtpEvent
		var details []byte
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.SessionID, &e.Role, &e.Event, &details, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan otp event: %w", err)
		}
		if e.Details, err = decodeDetails(details); err != nil {
			return nil, fmt.Errorf("decode otp event details: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate otp events: %w", err)
	}
	return out, nil
}
