package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "signflow/pkg/domain-errors"
)

// SessionKind distinguishes how an OTP session is addressed.
type SessionKind string

const (
	// SessionDocumentRole sessions are keyed by (document, role); at most one
	// exists per key and a resend replaces it.
	SessionDocumentRole SessionKind = "document_role"
	// SessionSigner sessions are keyed by their own id and carry a signer status.
	SessionSigner SessionKind = "signer"
)

// SignerStatus is the progress of a signer through the mock e-sign flow.
type SignerStatus string

const (
	SignerOtpSent     SignerStatus = "otp_sent"
	SignerOtpVerified SignerStatus = "otp_verified"
	SignerRedirected  SignerStatus = "redirected"
	SignerSigned      SignerStatus = "signed"
	SignerDeclined    SignerStatus = "declined"
)

var signerTransitions = map[SignerStatus][]SignerStatus{
	SignerOtpSent:     {SignerOtpVerified, SignerDeclined},
	SignerOtpVerified: {SignerRedirected, SignerDeclined},
	SignerRedirected:  {SignerSigned, SignerDeclined},
}

// CanTransitionTo reports whether next directly follows s.
func (s SignerStatus) CanTransitionTo(next SignerStatus) bool {
	for _, allowed := range signerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OtpSession is a hashed one-time-code challenge.
//
// Invariants:
//   - CodeHash is never the plaintext code
//   - Attempts never exceeds MaxAttempts
//   - VerifiedAt is immutable once set
type OtpSession struct {
	ID          uuid.UUID   `json:"id"`
	Kind        SessionKind `json:"kind"`
	DocumentID  int64       `json:"document_id"`
	Role        string      `json:"role"`
	Channel     string      `json:"channel"`
	SentTo      string      `json:"sent_to"`
	CodeHash    string      `json:"-"`
	OtpRef      string      `json:"otp_ref,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at"`
	Attempts    int         `json:"attempts"`
	MaxAttempts int         `json:"max_attempts"`
	VerifiedAt  *time.Time  `json:"verified_at,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	SignerName   string       `json:"signer_name,omitempty"`
	SignerStatus SignerStatus `json:"signer_status,omitempty"`
	RedirectURL  string       `json:"redirect_url,omitempty"`
}

// IsVerified reports whether the code was ever accepted.
func (s *OtpSession) IsVerified() bool {
	return s.VerifiedAt != nil
}

// Reissue replaces the challenge in place: new code hash, recipient and expiry,
// attempts reset and verification cleared. The session id is kept.
func (s *OtpSession) Reissue(replacement *OtpSession) {
	s.Channel = replacement.Channel
	s.SentTo = replacement.SentTo
	s.CodeHash = replacement.CodeHash
	s.OtpRef = replacement.OtpRef
	s.ExpiresAt = replacement.ExpiresAt
	s.MaxAttempts = replacement.MaxAttempts
	s.Attempts = 0
	s.VerifiedAt = nil
	s.CreatedBy = replacement.CreatedBy
	s.CreatedAt = replacement.CreatedAt
	s.UpdatedAt = replacement.CreatedAt
}

// VerifyOutcome is what a single Verify call did to the session.
type VerifyOutcome string

const (
	OutcomeVerified         VerifyOutcome = "verified"
	OutcomeAlreadyVerified  VerifyOutcome = "already_verified"
	OutcomeInvalidCode      VerifyOutcome = "invalid_code"
	OutcomeExpired          VerifyOutcome = "expired"
	OutcomeAttemptsExceeded VerifyOutcome = "attempts_exceeded"
)

// CodeMatcher compares a plaintext code with a stored hash in constant time.
type CodeMatcher func(hash, code string) (bool, error)

// Verify checks code against the session. The attempt cap is checked before
// expiry, and both before the code is compared. A mismatch consumes one
// attempt; callers must persist the session even when an error is returned.
// A correct code on an already verified session succeeds without touching
// VerifiedAt.
func (s *OtpSession) Verify(code string, now time.Time, match CodeMatcher) (VerifyOutcome, error) {
	if s.Attempts >= s.MaxAttempts {
		return OutcomeAttemptsExceeded, dErrors.New(dErrors.CodeAttemptsExceeded, "maximum verification attempts reached")
	}
	if now.After(s.ExpiresAt) {
		return OutcomeExpired, dErrors.New(dErrors.CodeExpired, "verification code has expired")
	}
	ok, err := match(s.CodeHash, code)
	if err != nil {
		return "", err
	}
	if !ok {
		s.Attempts++
		s.UpdatedAt = now
		return OutcomeInvalidCode, dErrors.New(dErrors.CodeInvalidCode, "verification code is invalid")
	}
	if s.IsVerified() {
		return OutcomeAlreadyVerified, nil
	}
	verifiedAt := now
	s.VerifiedAt = &verifiedAt
	s.UpdatedAt = now
	return OutcomeVerified, nil
}

// AdvanceSigner moves a signer session to next.
func (s *OtpSession) AdvanceSigner(next SignerStatus, now time.Time) error {
	if s.Kind != SessionSigner {
		return dErrors.New(dErrors.CodeInvalidState, "session is not a signer session")
	}
	if !s.SignerStatus.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidState, "signer cannot move from "+string(s.SignerStatus)+" to "+string(next))
	}
	s.SignerStatus = next
	s.UpdatedAt = now
	return nil
}

// Clone returns a copy safe to hand out of a store.
func (s *OtpSession) Clone() *OtpSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.VerifiedAt != nil {
		v := *s.VerifiedAt
		c.VerifiedAt = &v
	}
	return &c
}

// OtpEvent is the OTP manager's own audit record.
type OtpEvent struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Role       string    `json:"role"`
	Event      string    `json:"event"`
	Details    Details   `json:"details,omitempty"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// OTP event names.
const (
	OtpEventIssued           = "issued"
	OtpEventDelivered        = "delivered"
	OtpEventDeliveryFailed   = "delivery_failed"
	OtpEventVerified         = "verified"
	OtpEventInvalidCode      = "invalid_code"
	OtpEventExpired          = "expired"
	OtpEventAttemptsExceeded = "attempts_exceeded"
)

// DeliveryResult is what the external delivery channel reported.
type DeliveryResult struct {
	GatewayRef string
	Status     string
}
