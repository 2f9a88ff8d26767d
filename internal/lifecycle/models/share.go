package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "signflow/pkg/domain-errors"
)

// RecipientType is the kind of address a share recipient is reached at.
type RecipientType string

const (
	RecipientPhone RecipientType = "phone"
	RecipientEmail RecipientType = "email"
)

func (t RecipientType) IsValid() bool {
	return t == RecipientPhone || t == RecipientEmail
}

// RecipientRole is the party a recipient represents.
type RecipientRole string

const (
	RoleSeller RecipientRole = "Seller"
	RoleBuyer  RecipientRole = "Buyer"
	RoleCustom RecipientRole = "Custom"
)

func (r RecipientRole) IsValid() bool {
	return r == RoleSeller || r == RoleBuyer || r == RoleCustom
}

// RecipientStatus is the delivery outcome recorded for a recipient.
type RecipientStatus string

const (
	RecipientSent      RecipientStatus = "sent"
	RecipientGenerated RecipientStatus = "generated"
	RecipientFailed    RecipientStatus = "failed"
)

func (s RecipientStatus) IsValid() bool {
	return s == RecipientSent || s == RecipientGenerated || s == RecipientFailed
}

// ShareBatch is one "send this document to N recipients" action.
type ShareBatch struct {
	ID         uuid.UUID `json:"id"`
	DocumentID int64     `json:"document_id"`
	Channels   []string  `json:"channels"`
	Message    string    `json:"message,omitempty"`
	PublicLink string    `json:"public_link,omitempty"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ShareRecipient is one addressee of a batch.
type ShareRecipient struct {
	ID         uuid.UUID       `json:"id"`
	BatchID    uuid.UUID       `json:"batch_id"`
	Name       string          `json:"name,omitempty"`
	Type       RecipientType   `json:"type"`
	Value      string          `json:"value"`
	Role       RecipientRole   `json:"role"`
	Channel    string          `json:"channel"`
	Status     RecipientStatus `json:"status"`
	GatewayRef string          `json:"gateway_ref,omitempty"`
	Details    Details         `json:"details,omitempty"`
}

// NewShareRecipient validates and normalizes a recipient of batch. Empty role
// defaults to Custom, empty channel to defaultChannel, empty status to generated.
func NewShareRecipient(recipientID, batchID uuid.UUID, r ShareRecipient, defaultChannel string) (*ShareRecipient, error) {
	r.Type = RecipientType(strings.ToLower(strings.TrimSpace(string(r.Type))))
	r.Value = strings.TrimSpace(r.Value)
	r.Name = strings.TrimSpace(r.Name)
	if r.Type == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient type is required")
	}
	if !r.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient type must be phone or email")
	}
	if r.Value == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient value is required")
	}
	if r.Role == "" {
		r.Role = RoleCustom
	}
	if !r.Role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient role must be Seller, Buyer or Custom")
	}
	if r.Channel == "" {
		r.Channel = defaultChannel
	}
	if r.Status == "" {
		r.Status = RecipientGenerated
	}
	if !r.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient status must be sent, generated or failed")
	}
	r.ID = recipientID
	r.BatchID = batchID
	r.Details = r.Details.Clone()
	return &r, nil
}
