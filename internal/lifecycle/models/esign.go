package models

import "time"

// EsignEvent is the signer-facing audit stream, independent of status events.
type EsignEvent struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Provider   string    `json:"provider"`
	Event      string    `json:"event"`
	Actor      string    `json:"actor,omitempty"`
	Status     string    `json:"status,omitempty"`
	Details    Details   `json:"details,omitempty"`
	CreatedBy  string    `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProviderEvent is an inbound callback from an e-sign provider.
type ProviderEvent struct {
	Provider   string
	EventID    string
	SessionID  string
	DocumentID int64
	Event      string
	Actor      string
	Payload    Details
}
