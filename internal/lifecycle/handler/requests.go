package handler

import (
	"signflow/internal/lifecycle/models"
)

// setStatusRequest accepts "status" as an alias of "new_status".
type setStatusRequest struct {
	NewStatus string         `json:"new_status"`
	Status    string         `json:"status"`
	Reason    string         `json:"reason"`
	ChangedBy string         `json:"changed_by"`
	Details   models.Details `json:"details"`
}

func (r setStatusRequest) target() string {
	if r.NewStatus != "" {
		return r.NewStatus
	}
	return r.Status
}

// bulkSetStatusRequest accepts "document_ids" as an alias of "ids".
type bulkSetStatusRequest struct {
	IDs         []int64        `json:"ids"`
	DocumentIDs []int64        `json:"document_ids"`
	NewStatus   string         `json:"new_status"`
	Status      string         `json:"status"`
	Reason      string         `json:"reason"`
	ChangedBy   string         `json:"changed_by"`
	Details     models.Details `json:"details"`
}

func (r bulkSetStatusRequest) ids() []int64 {
	if len(r.IDs) > 0 {
		return r.IDs
	}
	return r.DocumentIDs
}

func (r bulkSetStatusRequest) target() string {
	if r.NewStatus != "" {
		return r.NewStatus
	}
	return r.Status
}

// nonNil keeps empty list responses encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

type bulkSetStatusResponse struct {
	Count     int                `json:"count"`
	Snapshots []*models.Snapshot `json:"snapshots"`
}

type recipientRequest struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Value      string         `json:"value"`
	Role       string         `json:"role"`
	Channel    string         `json:"channel"`
	Status     string         `json:"status"`
	GatewayRef string         `json:"gateway_ref"`
	Details    models.Details `json:"details"`
}

func (r recipientRequest) toModel() models.ShareRecipient {
	return models.ShareRecipient{
		Name:       r.Name,
		Type:       models.RecipientType(r.Type),
		Value:      r.Value,
		Role:       models.RecipientRole(r.Role),
		Channel:    r.Channel,
		Status:     models.RecipientStatus(r.Status),
		GatewayRef: r.GatewayRef,
		Details:    r.Details,
	}
}

type createShareBatchRequest struct {
	Channels   []string           `json:"channels"`
	Message    string             `json:"message"`
	PublicLink string             `json:"public_link"`
	CreatedBy  string             `json:"created_by"`
	Recipients []recipientRequest `json:"recipients"`
}

type createOtpRequest struct {
	Role        string `json:"role"`
	Channel     string `json:"channel"`
	SentTo      string `json:"sent_to"`
	Code        string `json:"code"`
	TTLSeconds  int    `json:"ttl_seconds"`
	MaxAttempts int    `json:"max_attempts"`
	CreatedBy   string `json:"created_by"`
	OtpRef      string `json:"otp_ref"`
}

type verifyOtpRequest struct {
	Role string `json:"role"`
	Code string `json:"code"`
}

type startSignerRequest struct {
	SignerName  string `json:"signer_name"`
	Role        string `json:"role"`
	Channel     string `json:"channel"`
	SentTo      string `json:"sent_to"`
	Code        string `json:"code"`
	TTLSeconds  int    `json:"ttl_seconds"`
	MaxAttempts int    `json:"max_attempts"`
	CreatedBy   string `json:"created_by"`
}

type verifySignerRequest struct {
	Code string `json:"code"`
}

type completeSignerRequest struct {
	Actor string `json:"actor"`
}

type redirectResponse struct {
	SessionID   string              `json:"session_id"`
	Status      models.SignerStatus `json:"status"`
	RedirectURL string              `json:"redirect_url"`
}

// providerEventRequest is the mock provider callback body.
type providerEventRequest struct {
	EventID    string         `json:"event_id"`
	SessionID  string         `json:"session_id"`
	DocumentID int64          `json:"document_id"`
	Event      string         `json:"event"`
	Actor      string         `json:"actor"`
	Payload    models.Details `json:"payload"`
}
