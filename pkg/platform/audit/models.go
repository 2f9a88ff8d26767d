package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: document
	// status changes and signatures. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers identity-verification outcomes worth alerting on.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	DocumentID int64
	Subject    string
	Action     string
	Decision   string
	Reason     string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	// ActorID is who performed the action, as asserted by the upstream proxy.
	ActorID string
}

type AuditEvent string

const (
	// Lifecycle events
	EventSnapshotInitialized   AuditEvent = "document_snapshot_initialized"
	EventDocumentStatusChanged AuditEvent = "document_status_changed"
	EventShareBatchCreated     AuditEvent = "share_batch_created"

	// Verification events
	EventOtpIssued             AuditEvent = "otp_issued"
	EventOtpVerified           AuditEvent = "otp_verified"
	EventOtpVerificationFailed AuditEvent = "otp_verification_failed"
	EventOtpDeliveryFailed     AuditEvent = "otp_delivery_failed"

	// Signer events
	EventSignerStarted       AuditEvent = "signer_started"
	EventSignerRedirected    AuditEvent = "signer_redirected"
	EventSignerSigned        AuditEvent = "signer_signed"
	EventSignerDeclined      AuditEvent = "signer_declined"
	EventProviderCallback    AuditEvent = "esign_provider_callback"
	EventProviderCallbackDup AuditEvent = "esign_provider_callback_duplicate"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentStatusChanged: CategoryCompliance,
	EventSignerSigned:          CategoryCompliance,
	EventSignerDeclined:        CategoryCompliance,
	EventOtpVerified:           CategoryCompliance,

	EventOtpVerificationFailed: CategorySecurity,
	EventOtpDeliveryFailed:     CategorySecurity,

	EventSnapshotInitialized: CategoryOperations,
	EventShareBatchCreated:   CategoryOperations,
	EventOtpIssued:           CategoryOperations,
	EventSignerStarted:       CategoryOperations,
	EventSignerRedirected:    CategoryOperations,
	EventProviderCallback:    CategoryOperations,
	EventProviderCallbackDup: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is one persisted, not yet published audit event.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}
