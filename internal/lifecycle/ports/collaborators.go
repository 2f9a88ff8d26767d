package ports

import (
	"context"
	"time"

	"signflow/internal/lifecycle/models"
)

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators.go -package=mocks

// DocumentRepository resolves documents owned by the document-generation
// system. Missing documents return sentinel.ErrNotFound.
type DocumentRepository interface {
	FindDocument(ctx context.Context, id int64) (*models.Document, error)
}

// Sender delivers a plaintext OTP code to a recipient.
type Sender interface {
	Send(ctx context.Context, channel, to, code string, ttl time.Duration) (models.DeliveryResult, error)
}

// LinkPresigner produces a time-limited public URL for a stored document.
type LinkPresigner interface {
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Deduper claims a key once. Claim reports false when the key was already
// claimed within ttl.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
