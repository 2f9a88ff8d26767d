// Package verification gates signer identity behind one-time codes. Sessions
// keyed by (document, role) back the seller/buyer verification flags; sessions
// keyed by their own id back the mock e-sign signer flow. Both share the
// OtpSession attempt and expiry rules.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	"signflow/internal/lifecycle/status"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/audit"
	"signflow/pkg/platform/sentinel"
	"signflow/pkg/requestcontext"
)

const maxCodeLength = 72

// Config holds the verification defaults.
type Config struct {
	// Roles must all be verified for a document to count as verified.
	Roles []string
	// AdvanceStatus, when set, is applied once every role is verified.
	AdvanceStatus string
	TTL           time.Duration
	MaxAttempts   int
	// EchoCode returns the plaintext code in descriptors. Never enable in production.
	EchoCode        bool
	BcryptCost      int
	RedirectBaseURL string
	DedupTTL        time.Duration
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if len(out.Roles) == 0 {
		out.Roles = []string{"seller", "buyer"}
	}
	if out.TTL <= 0 {
		out.TTL = 300 * time.Second
	}
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 5
	}
	if out.BcryptCost == 0 {
		out.BcryptCost = bcrypt.DefaultCost
	}
	if out.RedirectBaseURL == "" {
		out.RedirectBaseURL = "https://esign.mock.local/sign"
	}
	if out.DedupTTL <= 0 {
		out.DedupTTL = 24 * time.Hour
	}
	return out
}

type Service struct {
	tx      ports.StoreTx
	stores  ports.Stores
	engine  *status.Engine
	cfg     Config
	sender  ports.Sender
	deduper ports.Deduper
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	newID        func() uuid.UUID
	generateCode func() (string, error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSender delivers codes after the session is stored.
func WithSender(sender ports.Sender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

// WithDeduper drops repeated provider callbacks.
func WithDeduper(d ports.Deduper) Option {
	return func(s *Service) {
		s.deduper = d
	}
}

func NewService(tx ports.StoreTx, stores ports.Stores, engine *status.Engine, cfg *Config, opts ...Option) *Service {
	s := &Service{
		tx:           tx,
		stores:       stores,
		engine:       engine,
		cfg:          cfg.withDefaults(),
		logger:       slog.Default(),
		tracer:       otel.Tracer("signflow/lifecycle/verification"),
		newID:        uuid.New,
		generateCode: generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSessionRequest issues a code for one role of a document.
type CreateSessionRequest struct {
	DocumentID int64
	Role       string
	Channel    string
	SentTo     string
	// Code is generated when empty.
	Code        string
	TTL         time.Duration
	MaxAttempts int
	CreatedBy   string
	OtpRef      string
}

// SessionDescriptor is the caller-facing view of a session. It never carries
// the hash; Code is set only when echoing is enabled.
type SessionDescriptor struct {
	SessionID   uuid.UUID `json:"session_id"`
	DocumentID  int64     `json:"document_id"`
	Role        string    `json:"role"`
	Channel     string    `json:"channel"`
	SentTo      string    `json:"sent_to"`
	OtpRef      string    `json:"otp_ref,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	MaxAttempts int       `json:"max_attempts"`
	Code        string    `json:"code,omitempty"`
}

// VerifyRequest checks a code for one role of a document.
type VerifyRequest struct {
	DocumentID int64
	Role       string
	Code       string
}

type VerifyResult struct {
	Verified   bool      `json:"verified"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Status is the per-role verification state of a document.
type Status struct {
	Flags        map[string]bool `json:"flags"`
	BothVerified bool            `json:"both_verified"`
}

// CreateSession replaces any session for (document, role) with a fresh code:
// attempts reset and verification cleared.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionDescriptor, error) {
	role := normalizeRole(req.Role)
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	sentTo := strings.TrimSpace(req.SentTo)
	switch {
	case role == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "role is required")
	case channel == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "channel is required")
	case sentTo == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sent_to is required")
	}

	ctx, span := s.tracer.Start(ctx, "verification.CreateSession", trace.WithAttributes(
		attribute.Int64("document.id", req.DocumentID),
		attribute.String("otp.role", role),
	))
	defer span.End()

	code, hash, err := s.prepareCode(req.Code)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	ttl, maxAttempts := s.limits(req.TTL, req.MaxAttempts)
	now := requestcontext.Now(ctx)
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = requestcontext.ActorID(ctx)
	}

	var stored *models.OtpSession
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		if _, err := s.engine.EnsureSnapshotTx(ctx, stores, req.DocumentID); err != nil {
			return err
		}
		var err error
		stored, err = stores.Otp.UpsertRoleSession(ctx, &models.OtpSession{
			ID:          s.newID(),
			Kind:        models.SessionDocumentRole,
			DocumentID:  req.DocumentID,
			Role:        role,
			Channel:     channel,
			SentTo:      sentTo,
			CodeHash:    hash,
			OtpRef:      strings.TrimSpace(req.OtpRef),
			ExpiresAt:   now.Add(ttl),
			MaxAttempts: maxAttempts,
			CreatedBy:   createdBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store otp session")
		}
		if err := s.appendOtpEvent(ctx, stores, stored, models.OtpEventIssued, models.Details{
			"channel":    channel,
			"expires_at": stored.ExpiresAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
		return s.appendAudit(ctx, stores, audit.EventOtpIssued, req.DocumentID, "session:"+stored.ID.String(), role, "")
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, translate(err)
	}

	s.metrics.IncOtpIssued()
	s.logAudit(ctx, string(audit.EventOtpIssued),
		"document_id", req.DocumentID,
		"role", role,
		"channel", channel,
		"session_id", stored.ID.String(),
	)
	s.deliver(ctx, stored, code, ttl)
	return s.describe(stored, code), nil
}

// Verify checks code against the (document, role) session. Failed attempts
// are committed before the error is returned.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	role := normalizeRole(req.Role)
	if role == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "role is required")
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" || len(req.Code) > maxCodeLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "code is required")
	}

	ctx, span := s.tracer.Start(ctx, "verification.Verify", trace.WithAttributes(
		attribute.Int64("document.id", req.DocumentID),
		attribute.String("otp.role", role),
	))
	defer span.End()

	var (
		outcome    models.VerifyOutcome
		verifyErr  error
		result     VerifyResult
		transition status.TransitionResult
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		session, err := stores.Otp.LockRoleSession(ctx, req.DocumentID, role)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no otp session for document %d role %s", req.DocumentID, role))
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load otp session")
		}

		outcome, verifyErr = s.check(ctx, stores, session, req.Code)
		if outcome == "" {
			return verifyErr
		}
		if verifyErr != nil {
			return nil
		}

		result = VerifyResult{Verified: true, VerifiedAt: *session.VerifiedAt}
		if outcome == models.OutcomeVerified {
			transition, err = s.advanceIfVerified(ctx, stores, req.DocumentID)
			return err
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, translate(err)
	}

	s.metrics.IncOtpVerification(string(outcome))
	if verifyErr != nil {
		recordSpanError(span, verifyErr)
		s.logger.WarnContext(ctx, "otp verification failed",
			"document_id", req.DocumentID,
			"role", role,
			"outcome", string(outcome),
		)
		return nil, verifyErr
	}
	s.engine.AfterCommit(ctx, transition)
	s.logAudit(ctx, string(audit.EventOtpVerified),
		"document_id", req.DocumentID,
		"role", role,
		"outcome", string(outcome),
	)
	return &result, nil
}

// check runs one verification attempt and records it. An empty outcome means
// the comparison itself failed and the unit of work must roll back.
func (s *Service) check(ctx context.Context, stores ports.Stores, session *models.OtpSession, code string) (models.VerifyOutcome, error) {
	outcome, verifyErr := session.Verify(code, requestcontext.Now(ctx), matchCode)
	if outcome == "" {
		return "", dErrors.Wrap(verifyErr, dErrors.CodeInternal, "failed to verify otp code")
	}
	if outcome == models.OutcomeVerified || outcome == models.OutcomeInvalidCode {
		if err := stores.Otp.UpdateSession(ctx, session); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update otp session")
		}
	}

	event := otpEventFor(outcome)
	details := models.Details{"attempts": session.Attempts, "max_attempts": session.MaxAttempts}
	if outcome == models.OutcomeAlreadyVerified {
		details["repeat"] = true
	}
	if err := s.appendOtpEvent(ctx, stores, session, event, details); err != nil {
		return "", err
	}

	action := audit.EventOtpVerified
	if verifyErr != nil {
		action = audit.EventOtpVerificationFailed
	}
	if err := s.appendAudit(ctx, stores, action, session.DocumentID, "session:"+session.ID.String(), string(outcome), ""); err != nil {
		return "", err
	}
	return outcome, verifyErr
}

func (s *Service) advanceIfVerified(ctx context.Context, stores ports.Stores, documentID int64) (status.TransitionResult, error) {
	if s.cfg.AdvanceStatus == "" {
		return status.TransitionResult{}, nil
	}
	sessions, err := stores.Otp.ListRoleSessions(ctx, documentID)
	if err != nil {
		return status.TransitionResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load otp sessions")
	}
	if !allVerified(s.flags(sessions)) {
		return status.TransitionResult{}, nil
	}
	return s.engine.SetStatusTx(ctx, stores, status.SetStatusRequest{
		DocumentID: documentID,
		NewStatus:  s.cfg.AdvanceStatus,
		Reason:     "all parties verified",
	})
}

// Flags reports, for every required role, whether its session is verified.
func (s *Service) Flags(ctx context.Context, documentID int64) (map[string]bool, error) {
	sessions, err := s.stores.Otp.ListRoleSessions(ctx, documentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load otp sessions")
	}
	return s.flags(sessions), nil
}

// BothVerified is true when every required role is verified.
func (s *Service) BothVerified(ctx context.Context, documentID int64) (bool, error) {
	flags, err := s.Flags(ctx, documentID)
	if err != nil {
		return false, err
	}
	return allVerified(flags), nil
}

// Status combines Flags and BothVerified.
func (s *Service) Status(ctx context.Context, documentID int64) (*Status, error) {
	flags, err := s.Flags(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &Status{Flags: flags, BothVerified: allVerified(flags)}, nil
}

func (s *Service) flags(sessions []*models.OtpSession) map[string]bool {
	flags := make(map[string]bool, len(s.cfg.Roles))
	for _, role := range s.cfg.Roles {
		flags[role] = false
	}
	for _, session := range sessions {
		if _, required := flags[session.Role]; required && session.IsVerified() {
			flags[session.Role] = true
		}
	}
	return flags
}

func allVerified(flags map[string]bool) bool {
	if len(flags) == 0 {
		return false
	}
	for _, ok := range flags {
		if !ok {
			return false
		}
	}
	return true
}

func (s *Service) prepareCode(code string) (string, string, error) {
	code = strings.TrimSpace(code)
	if len(code) > maxCodeLength {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "code is too long")
	}
	if code == "" {
		generated, err := s.generateCode()
		if err != nil {
			return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate otp code")
		}
		code = generated
	}
	hash, err := hashCode(code, s.cfg.BcryptCost)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash otp code")
	}
	return code, hash, nil
}

func (s *Service) limits(ttl time.Duration, maxAttempts int) (time.Duration, int) {
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	if maxAttempts <= 0 {
		maxAttempts = s.cfg.MaxAttempts
	}
	return ttl, maxAttempts
}

// deliver hands the plaintext code to the sender and records the outcome.
// Delivery problems are logged and never fail the caller.
func (s *Service) deliver(ctx context.Context, session *models.OtpSession, code string, ttl time.Duration) {
	if s.sender == nil {
		return
	}
	result, sendErr := s.sender.Send(ctx, session.Channel, session.SentTo, code, ttl)
	event, outcome := models.OtpEventDelivered, "delivered"
	details := models.Details{"channel": session.Channel}
	if sendErr != nil {
		event, outcome = models.OtpEventDeliveryFailed, "failed"
		details["error"] = sendErr.Error()
	} else {
		if result.GatewayRef != "" {
			details["gateway_ref"] = result.GatewayRef
		}
		if result.Status != "" {
			details["status"] = result.Status
		}
	}
	s.metrics.IncOtpDelivery(outcome)

	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		if err := s.appendOtpEvent(ctx, stores, session, event, details); err != nil {
			return err
		}
		if sendErr != nil {
			return s.appendAudit(ctx, stores, audit.EventOtpDeliveryFailed, session.DocumentID,
				"session:"+session.ID.String(), session.Channel, sendErr.Error())
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record otp delivery",
			"document_id", session.DocumentID,
			"session_id", session.ID.String(),
			"error", err,
		)
	}
	if sendErr != nil {
		s.logger.WarnContext(ctx, "otp delivery failed",
			"document_id", session.DocumentID,
			"channel", session.Channel,
			"error", sendErr,
		)
	}
}

func (s *Service) describe(session *models.OtpSession, code string) *SessionDescriptor {
	d := &SessionDescriptor{
		SessionID:   session.ID,
		DocumentID:  session.DocumentID,
		Role:        session.Role,
		Channel:     session.Channel,
		SentTo:      session.SentTo,
		OtpRef:      session.OtpRef,
		ExpiresAt:   session.ExpiresAt,
		MaxAttempts: session.MaxAttempts,
	}
	if s.cfg.EchoCode {
		d.Code = code
	}
	return d
}

func (s *Service) appendOtpEvent(ctx context.Context, stores ports.Stores, session *models.OtpSession, event string, details models.Details) error {
	err := stores.Otp.AppendOtpEvent(ctx, &models.OtpEvent{
		DocumentID: session.DocumentID,
		SessionID:  session.ID,
		Role:       session.Role,
		Event:      event,
		Details:    details,
		CreatedBy:  requestcontext.ActorID(ctx),
		CreatedAt:  requestcontext.Now(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record otp event")
	}
	return nil
}

func (s *Service) appendAudit(ctx context.Context, stores ports.Stores, action audit.AuditEvent, documentID int64, subject, decision, reason string) error {
	if stores.Audit == nil {
		return nil
	}
	err := stores.Audit.Append(ctx, audit.Event{
		Category:   action.Category(),
		Timestamp:  requestcontext.Now(ctx),
		DocumentID: documentID,
		Subject:    subject,
		Action:     string(action),
		Decision:   decision,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    requestcontext.ActorID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

func otpEventFor(outcome models.VerifyOutcome) string {
	switch outcome {
	case models.OutcomeInvalidCode:
		return models.OtpEventInvalidCode
	case models.OutcomeExpired:
		return models.OtpEventExpired
	case models.OutcomeAttemptsExceeded:
		return models.OtpEventAttemptsExceeded
	default:
		return models.OtpEventVerified
	}
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// translate maps store sentinels that escaped a unit of work. Domain errors
// pass through.
func translate(err error) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent update; retry")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "verification failed")
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
