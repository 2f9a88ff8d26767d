package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/audit"
	"signflow/pkg/platform/sentinel"
	"signflow/pkg/requestcontext"
)

const mockProvider = "mock"

// E-sign event names written by the signer flow.
const (
	EsignOtpSent     = "otp_sent"
	EsignOtpVerified = "otp_verified"
	EsignOtpFailed   = "otp_failed"
	EsignRedirected  = "redirected"
	EsignSigned      = "signed"
	EsignDeclined    = "declined"
)

// StartSignerRequest opens a signer session and issues its code.
type StartSignerRequest struct {
	DocumentID  int64
	SignerName  string
	Role        string
	Channel     string
	SentTo      string
	Code        string
	TTL         time.Duration
	MaxAttempts int
	CreatedBy   string
}

// SignerDescriptor is the caller-facing view of a signer session.
type SignerDescriptor struct {
	SessionID   uuid.UUID           `json:"session_id"`
	DocumentID  int64               `json:"document_id"`
	SignerName  string              `json:"signer_name"`
	Role        string              `json:"role,omitempty"`
	Channel     string              `json:"channel"`
	SentTo      string              `json:"sent_to"`
	Status      models.SignerStatus `json:"status"`
	ExpiresAt   time.Time           `json:"expires_at"`
	MaxAttempts int                 `json:"max_attempts"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Code        string              `json:"code,omitempty"`
}

// StartSigner creates a signer session in otp_sent.
func (s *Service) StartSigner(ctx context.Context, req StartSignerRequest) (*SignerDescriptor, error) {
	name := strings.TrimSpace(req.SignerName)
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	sentTo := strings.TrimSpace(req.SentTo)
	switch {
	case name == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "signer_name is required")
	case channel == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "channel is required")
	case sentTo == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sent_to is required")
	}

	ctx, span := s.tracer.Start(ctx, "verification.StartSigner",
		trace.WithAttributes(attribute.Int64("document.id", req.DocumentID)))
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
	session := &models.OtpSession{
		ID:           s.newID(),
		Kind:         models.SessionSigner,
		DocumentID:   req.DocumentID,
		Role:         normalizeRole(req.Role),
		Channel:      channel,
		SentTo:       sentTo,
		CodeHash:     hash,
		ExpiresAt:    now.Add(ttl),
		MaxAttempts:  maxAttempts,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
		SignerName:   name,
		SignerStatus: models.SignerOtpSent,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		if _, err := s.engine.EnsureSnapshotTx(ctx, stores, req.DocumentID); err != nil {
			return err
		}
		if err := stores.Otp.CreateSession(ctx, session); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store signer session")
		}
		if err := s.appendEsignEvent(ctx, stores, session, EsignOtpSent, models.Details{"channel": channel}); err != nil {
			return err
		}
		return s.appendAudit(ctx, stores, audit.EventSignerStarted, req.DocumentID, "signer:"+session.ID.String(), string(session.SignerStatus), "")
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, translate(err)
	}

	s.metrics.IncOtpIssued()
	s.metrics.IncSignerTransition(string(models.SignerOtpSent))
	s.logAudit(ctx, string(audit.EventSignerStarted),
		"document_id", req.DocumentID,
		"session_id", session.ID.String(),
	)
	s.deliver(ctx, session, code, ttl)

	d := describeSigner(session)
	if s.cfg.EchoCode {
		d.Code = code
	}
	return d, nil
}

// VerifySigner applies the shared attempt and expiry rules to a signer
// session and moves it to otp_verified on success.
func (s *Service) VerifySigner(ctx context.Context, sessionID uuid.UUID, code string) (*SignerDescriptor, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxCodeLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "code is required")
	}
	ctx, span := s.tracer.Start(ctx, "verification.VerifySigner",
		trace.WithAttributes(attribute.String("session.id", sessionID.String())))
	defer span.End()

	var (
		outcome   models.VerifyOutcome
		verifyErr error
		session   *models.OtpSession
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		var err error
		session, err = s.lockSigner(ctx, stores, sessionID)
		if err != nil {
			return err
		}
		if session.SignerStatus == models.SignerDeclined || session.SignerStatus == models.SignerSigned {
			return dErrors.New(dErrors.CodeInvalidState, "signer session is already "+string(session.SignerStatus))
		}

		outcome, verifyErr = session.Verify(code, requestcontext.Now(ctx), matchCode)
		switch {
		case outcome == "":
			return dErrors.Wrap(verifyErr, dErrors.CodeInternal, "failed to verify otp code")
		case verifyErr != nil:
			if outcome == models.OutcomeInvalidCode {
				if err := stores.Otp.UpdateSession(ctx, session); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update signer session")
				}
			}
			if err := s.appendEsignEvent(ctx, stores, session, EsignOtpFailed, models.Details{
				"reason":   string(outcome),
				"attempts": session.Attempts,
			}); err != nil {
				return err
			}
			return s.appendAudit(ctx, stores, audit.EventOtpVerificationFailed, session.DocumentID,
				"signer:"+session.ID.String(), string(outcome), "")
		case outcome == models.OutcomeAlreadyVerified:
			return nil
		}

		if err := session.AdvanceSigner(models.SignerOtpVerified, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := stores.Otp.UpdateSession(ctx, session); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update signer session")
		}
		return s.appendEsignEvent(ctx, stores, session, EsignOtpVerified, nil)
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, translate(err)
	}

	s.metrics.IncOtpVerification(string(outcome))
	if verifyErr != nil {
		recordSpanError(span, verifyErr)
		return nil, verifyErr
	}
	if outcome == models.OutcomeVerified {
		s.metrics.IncSignerTransition(string(models.SignerOtpVerified))
	}
	return describeSigner(session), nil
}

// RedirectSigner moves a verified signer to the provider's signing page.
func (s *Service) RedirectSigner(ctx context.Context, sessionID uuid.UUID) (*SignerDescriptor, error) {
	return s.advanceSigner(ctx, sessionID, models.SignerRedirected, audit.EventSignerRedirected, func(session *models.OtpSession) models.Details {
		session.RedirectURL = s.redirectURL(session)
		return userAgentDetails(requestcontext.UserAgent(ctx), session.RedirectURL)
	})
}

// CompleteSigner records that a redirected signer finished signing.
func (s *Service) CompleteSigner(ctx context.Context, sessionID uuid.UUID, actor string) (*SignerDescriptor, error) {
	return s.advanceSigner(ctx, sessionID, models.SignerSigned, audit.EventSignerSigned, func(*models.OtpSession) models.Details {
		if actor == "" {
			return nil
		}
		return models.Details{"actor": actor}
	})
}

func (s *Service) advanceSigner(
	ctx context.Context,
	sessionID uuid.UUID,
	next models.SignerStatus,
	action audit.AuditEvent,
	prepare func(*models.OtpSession) models.Details,
) (*SignerDescriptor, error) {
	ctx, span := s.tracer.Start(ctx, "verification.AdvanceSigner", trace.WithAttributes(
		attribute.String("session.id", sessionID.String()),
		attribute.String("signer.status", string(next)),
	))
	defer span.End()

	var session *models.OtpSession
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		var err error
		session, err = s.lockSigner(ctx, stores, sessionID)
		if err != nil {
			return err
		}
		if err := session.AdvanceSigner(next, requestcontext.Now(ctx)); err != nil {
			return err
		}
		details := prepare(session)
		if err := stores.Otp.UpdateSession(ctx, session); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update signer session")
		}
		if err := s.appendEsignEvent(ctx, stores, session, string(next), details); err != nil {
			return err
		}
		return s.appendAudit(ctx, stores, action, session.DocumentID, "signer:"+session.ID.String(), string(next), "")
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, translate(err)
	}

	s.metrics.IncSignerTransition(string(next))
	s.logAudit(ctx, string(action),
		"document_id", session.DocumentID,
		"session_id", session.ID.String(),
		"signer_status", string(next),
	)
	return describeSigner(session), nil
}

func (s *Service) lockSigner(ctx context.Context, stores ports.Stores, sessionID uuid.UUID) (*models.OtpSession, error) {
	session, err := stores.Otp.LockSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, signerNotFound(sessionID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signer session")
	}
	if session.Kind != models.SessionSigner {
		return nil, signerNotFound(sessionID)
	}
	return session, nil
}

func (s *Service) redirectURL(session *models.OtpSession) string {
	q := url.Values{}
	q.Set("session", session.ID.String())
	q.Set("document", fmt.Sprint(session.DocumentID))
	return strings.TrimRight(s.cfg.RedirectBaseURL, "/") + "?" + q.Encode()
}

func (s *Service) appendEsignEvent(ctx context.Context, stores ports.Stores, session *models.OtpSession, event string, details models.Details) error {
	if details == nil {
		details = models.Details{}
	}
	details["session_id"] = session.ID.String()
	err := stores.Esign.AppendEsignEvent(ctx, &models.EsignEvent{
		DocumentID: session.DocumentID,
		Provider:   mockProvider,
		Event:      event,
		Actor:      session.SignerName,
		Status:     string(session.SignerStatus),
		Details:    details,
		CreatedBy:  requestcontext.ActorID(ctx),
		CreatedAt:  requestcontext.Now(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record esign event")
	}
	return nil
}

func describeSigner(session *models.OtpSession) *SignerDescriptor {
	return &SignerDescriptor{
		SessionID:   session.ID,
		DocumentID:  session.DocumentID,
		SignerName:  session.SignerName,
		Role:        session.Role,
		Channel:     session.Channel,
		SentTo:      session.SentTo,
		Status:      session.SignerStatus,
		ExpiresAt:   session.ExpiresAt,
		MaxAttempts: session.MaxAttempts,
		RedirectURL: session.RedirectURL,
	}
}

func userAgentDetails(raw, redirectURL string) models.Details {
	details := models.Details{"redirect_url": redirectURL}
	if raw == "" {
		return details
	}
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	details["browser"] = browser
	details["browser_version"] = version
	details["os"] = ua.OS()
	details["mobile"] = ua.Mobile()
	details["bot"] = ua.Bot()
	return details
}

func signerNotFound(id uuid.UUID) error {
	return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("signer session %s not found", id))
}
