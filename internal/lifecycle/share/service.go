// Package share records share batches: one document sent to many recipients
// over one or more channels. Creating a batch also moves the document to its
// shared status.
package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	"signflow/internal/lifecycle/status"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/email"
	"signflow/pkg/platform/audit"
	"signflow/pkg/platform/sentinel"
	"signflow/pkg/requestcontext"
)

const (
	defaultSharedStatus = "shared"
	defaultLinkTTL      = 7 * 24 * time.Hour
)

// CreateBatchRequest describes one share action.
type CreateBatchRequest struct {
	DocumentID int64
	Channels   []string
	Message    string
	PublicLink string
	CreatedBy  string
	Recipients []models.ShareRecipient
}

// BatchResult is a created batch with its stored recipients.
type BatchResult struct {
	Batch      *models.ShareBatch       `json:"batch"`
	Recipients []*models.ShareRecipient `json:"recipients"`
}

type Service struct {
	tx           ports.StoreTx
	stores       ports.Stores
	engine       *status.Engine
	documents    ports.DocumentRepository
	presigner    ports.LinkPresigner
	linkTTL      time.Duration
	sharedStatus string
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	newID        func() uuid.UUID
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

// WithLinkPresigner fills empty public links with a presigned URL for the
// document's stored file.
func WithLinkPresigner(p ports.LinkPresigner, ttl time.Duration) Option {
	return func(s *Service) {
		s.presigner = p
		if ttl > 0 {
			s.linkTTL = ttl
		}
	}
}

// WithSharedStatus overrides the status a shared document moves to.
func WithSharedStatus(code string) Option {
	return func(s *Service) {
		if code = strings.TrimSpace(code); code != "" {
			s.sharedStatus = code
		}
	}
}

func NewService(tx ports.StoreTx, stores ports.Stores, engine *status.Engine, documents ports.DocumentRepository, opts ...Option) *Service {
	s := &Service{
		tx:           tx,
		stores:       stores,
		engine:       engine,
		documents:    documents,
		linkTTL:      defaultLinkTTL,
		sharedStatus: defaultSharedStatus,
		logger:       slog.Default(),
		tracer:       otel.Tracer("signflow/lifecycle/share"),
		newID:        uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBatch stores the batch and its recipients and moves the document to
// the shared status, all in one unit of work.
func (s *Service) CreateBatch(ctx context.Context, req CreateBatchRequest) (*BatchResult, error) {
	channels := normalizeChannels(req.Channels)
	if len(channels) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "channels must contain at least one channel")
	}
	if len(req.Recipients) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recipients must contain at least one recipient")
	}

	now := requestcontext.Now(ctx)
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = requestcontext.ActorID(ctx)
	}
	batch := &models.ShareBatch{
		ID:         s.newID(),
		DocumentID: req.DocumentID,
		Channels:   channels,
		Message:    strings.TrimSpace(req.Message),
		PublicLink: strings.TrimSpace(req.PublicLink),
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}
	recipients := make([]*models.ShareRecipient, 0, len(req.Recipients))
	for i, r := range req.Recipients {
		recipient, err := models.NewShareRecipient(s.newID(), batch.ID, r, channels[0])
		if err != nil {
			return nil, invalidRecipient(i, err)
		}
		if recipient.Name == "" && recipient.Type == models.RecipientEmail {
			recipient.Name = email.DisplayName(recipient.Value)
		}
		recipients = append(recipients, recipient)
	}

	start := time.Now()
	defer s.metrics.ObserveOperation("create_share_batch", start)
	ctx, span := s.tracer.Start(ctx, "share.CreateBatch", trace.WithAttributes(
		attribute.Int64("document.id", req.DocumentID),
		attribute.Int("recipients.count", len(recipients)),
	))
	defer span.End()

	if batch.PublicLink == "" && s.presigner != nil {
		link, err := s.presignLink(ctx, req.DocumentID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		batch.PublicLink = link
	}

	var transition status.TransitionResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		if _, err := s.engine.EnsureSnapshotTx(ctx, stores, req.DocumentID); err != nil {
			return err
		}
		if err := stores.Shares.CreateBatch(ctx, batch); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create share batch")
		}
		if err := stores.Shares.CreateRecipients(ctx, recipients); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create share recipients")
		}
		if err := s.appendAudit(ctx, stores, batch, len(recipients)); err != nil {
			return err
		}

		catalog, err := s.engine.Catalog().LoadWith(ctx, stores.Catalog)
		if err != nil {
			return err
		}
		if !catalog.Contains(s.sharedStatus) {
			s.logger.WarnContext(ctx, "shared status missing from catalog; share transition skipped",
				"document_id", req.DocumentID,
				"status", s.sharedStatus,
			)
			return nil
		}
		snap, err := stores.Snapshots.LockSnapshot(ctx, req.DocumentID, ports.LockWait)
		if err != nil {
			return err
		}
		if reachedShared(catalog, snap.CurrentStatus, s.sharedStatus) {
			return nil
		}
		transition, err = s.engine.SetStatusTx(ctx, stores, status.SetStatusRequest{
			DocumentID: req.DocumentID,
			NewStatus:  s.sharedStatus,
			Reason:     "share batch created",
			ChangedBy:  createdBy,
			Details:    models.Details{"batch_id": batch.ID.String(), "channels": channels},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, translate(err, req.DocumentID)
	}

	s.engine.AfterCommit(ctx, transition)
	s.metrics.IncShareBatch(len(recipients))
	s.logAudit(ctx, string(audit.EventShareBatchCreated),
		"document_id", req.DocumentID,
		"batch_id", batch.ID.String(),
		"recipients", len(recipients),
		"channels", strings.Join(channels, ","),
	)
	return &BatchResult{Batch: batch, Recipients: recipients}, nil
}

// reachedShared reports whether current sits at or past shared in catalog
// order. A status missing from the catalog never counts as past it.
func reachedShared(catalog models.Catalog, current, shared string) bool {
	cur, ok := catalog.Find(current)
	if !ok {
		return false
	}
	target, _ := catalog.Find(shared)
	return cur.SequenceNumber >= target.SequenceNumber
}

// ListBatches returns the document's batches newest first.
func (s *Service) ListBatches(ctx context.Context, documentID int64) ([]*models.ShareBatch, error) {
	batches, err := s.stores.Shares.ListBatches(ctx, documentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list share batches")
	}
	if batches == nil {
		batches = []*models.ShareBatch{}
	}
	return batches, nil
}

// Recipients returns a batch's recipients in the order they were added.
func (s *Service) Recipients(ctx context.Context, batchID uuid.UUID) ([]*models.ShareRecipient, error) {
	if _, err := s.stores.Shares.FindBatch(ctx, batchID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("share batch %s not found", batchID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load share batch")
	}
	recipients, err := s.stores.Shares.ListRecipients(ctx, batchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list share recipients")
	}
	if recipients == nil {
		recipients = []*models.ShareRecipient{}
	}
	return recipients, nil
}

func (s *Service) presignLink(ctx context.Context, documentID int64) (string, error) {
	doc, err := s.documents.FindDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("document %d not found", documentID))
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	if doc.StorageKey == "" {
		return "", nil
	}
	link, err := s.presigner.PresignURL(ctx, doc.StorageKey, s.linkTTL)
	if err != nil {
		// the batch is still useful without a link
		s.logger.WarnContext(ctx, "failed to presign public link",
			"document_id", documentID,
			"error", err,
		)
		return "", nil
	}
	return link, nil
}

func (s *Service) appendAudit(ctx context.Context, stores ports.Stores, batch *models.ShareBatch, recipients int) error {
	if stores.Audit == nil {
		return nil
	}
	err := stores.Audit.Append(ctx, audit.Event{
		Category:   audit.EventShareBatchCreated.Category(),
		Timestamp:  batch.CreatedAt,
		DocumentID: batch.DocumentID,
		Subject:    "share_batch:" + batch.ID.String(),
		Action:     string(audit.EventShareBatchCreated),
		Decision:   strconv.Itoa(recipients) + " recipients",
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    batch.CreatedBy,
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

func normalizeChannels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, ch := range in {
		ch = strings.ToLower(strings.TrimSpace(ch))
		if ch == "" {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}

func invalidRecipient(index int, err error) error {
	msg := err.Error()
	if de, ok := dErrors.As(err); ok {
		msg = de.Message
	}
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("recipients[%d]: %s", index, msg))
}

func translate(err error, documentID int64) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("document %d not found", documentID))
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "document is being updated concurrently; retry")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "share batch failed")
}
