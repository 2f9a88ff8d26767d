// Package status owns document status snapshots and the status event log.
// The Engine is the only writer of both.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/audit"
	"signflow/pkg/platform/sentinel"
	"signflow/pkg/requestcontext"
)

const defaultSeedStatus = "created"

// SetStatusRequest asks for one document to move to NewStatus.
type SetStatusRequest struct {
	DocumentID int64
	NewStatus  string
	Reason     string
	ChangedBy  string
	Details    models.Details
}

// BulkSetStatusRequest asks for every document in DocumentIDs to move to
// NewStatus atomically.
type BulkSetStatusRequest struct {
	DocumentIDs []int64
	NewStatus   string
	Reason      string
	ChangedBy   string
	Details     models.Details
}

// TransitionResult is the outcome of a transition inside a unit of work.
// Event is nil when the request was a same-status no-op.
type TransitionResult struct {
	Snapshot *models.Snapshot
	Event    *models.StatusEvent
}

// Engine applies status transitions.
type Engine struct {
	tx         ports.StoreTx
	stores     ports.Stores
	documents  ports.DocumentRepository
	catalog    *Catalog
	seedStatus string
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSeedStatus sets the status a document starts in.
func WithSeedStatus(code string) Option {
	return func(e *Engine) {
		if code = strings.TrimSpace(code); code != "" {
			e.seedStatus = code
		}
	}
}

// NewEngine constructs an Engine. stores are the committed-state views used
// for reads outside a unit of work.
func NewEngine(tx ports.StoreTx, stores ports.Stores, documents ports.DocumentRepository, catalog *Catalog, opts ...Option) *Engine {
	e := &Engine{
		tx:         tx,
		stores:     stores,
		documents:  documents,
		catalog:    catalog,
		seedStatus: defaultSeedStatus,
		logger:     slog.Default(),
		tracer:     otel.Tracer("signflow/lifecycle/status"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog exposes the catalog the engine validates against.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// EnsureSnapshot returns the document's snapshot, creating it together with
// its seed event on first access.
func (e *Engine) EnsureSnapshot(ctx context.Context, documentID int64) (*models.Snapshot, error) {
	snap, err := e.stores.Snapshots.FindSnapshot(ctx, documentID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot")
	}

	ctx, span := e.tracer.Start(ctx, "status.EnsureSnapshot",
		trace.WithAttributes(attribute.Int64("document.id", documentID)))
	defer span.End()

	err = e.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		var err error
		snap, err = e.EnsureSnapshotTx(ctx, stores, documentID)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, translateStoreError(err, documentID)
	}
	return snap, nil
}

// EnsureSnapshotTx is EnsureSnapshot inside the caller's unit of work.
func (e *Engine) EnsureSnapshotTx(ctx context.Context, stores ports.Stores, documentID int64) (*models.Snapshot, error) {
	snap, err := stores.Snapshots.FindSnapshot(ctx, documentID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot")
	}

	doc, err := e.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	catalog, err := e.catalog.LoadWith(ctx, stores.Catalog)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	snap, seed := models.NewSeedSnapshot(documentID, e.seedStatus, doc.OwnerID, catalog.TotalSteps(), now)
	created, err := stores.Snapshots.CreateSnapshotIfAbsent(ctx, snap)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create snapshot")
	}
	if !created {
		// a concurrent first access won; its seed event is already written
		existing, err := stores.Snapshots.FindSnapshot(ctx, documentID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot")
		}
		return existing, nil
	}
	if err := stores.Events.AppendStatusEvent(ctx, seed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record seed event")
	}
	if err := e.appendAudit(ctx, stores, audit.EventSnapshotInitialized, documentID, seed.NewStatus, seed.Reason, doc.OwnerID); err != nil {
		return nil, err
	}
	e.metrics.IncSnapshotInitialized()
	return snap, nil
}

// SetStatus moves one document to req.NewStatus. A request for the current
// status returns the snapshot unchanged and writes no event.
func (e *Engine) SetStatus(ctx context.Context, req SetStatusRequest) (*models.Snapshot, error) {
	start := time.Now()
	defer e.metrics.ObserveOperation("set_status", start)

	ctx, span := e.tracer.Start(ctx, "status.SetStatus", trace.WithAttributes(
		attribute.Int64("document.id", req.DocumentID),
		attribute.String("status.new", req.NewStatus),
	))
	defer span.End()

	var result TransitionResult
	err := e.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		var err error
		result, err = e.SetStatusTx(ctx, stores, req)
		return err
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, translateStoreError(err, req.DocumentID)
	}
	e.afterCommit(ctx, result)
	span.SetAttributes(attribute.Bool("status.changed", result.Event != nil))
	return result.Snapshot, nil
}

// SetStatusTx is SetStatus inside the caller's unit of work. The snapshot row
// stays locked until that unit of work ends.
func (e *Engine) SetStatusTx(ctx context.Context, stores ports.Stores, req SetStatusRequest) (TransitionResult, error) {
	if _, err := e.EnsureSnapshotTx(ctx, stores, req.DocumentID); err != nil {
		return TransitionResult{}, err
	}
	catalog, err := e.catalog.LoadWith(ctx, stores.Catalog)
	if err != nil {
		return TransitionResult{}, err
	}
	newStatus := strings.TrimSpace(req.NewStatus)
	if !catalog.Contains(newStatus) {
		return TransitionResult{}, dErrors.New(dErrors.CodeInvalidStatus, fmt.Sprintf("status %q is not in the catalog", req.NewStatus))
	}
	return e.transition(ctx, stores, catalog, req.DocumentID, newStatus, req.Reason, req.ChangedBy, req.Details, ports.LockWait)
}

// BulkSetStatus moves every listed document in one unit of work. Snapshots
// are locked in input order without waiting; any held lock, missing document
// or other failure aborts the whole batch. Results follow input order.
func (e *Engine) BulkSetStatus(ctx context.Context, req BulkSetStatusRequest) ([]*models.Snapshot, error) {
	if len(req.DocumentIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ids must be a non-empty array")
	}
	newStatus := strings.TrimSpace(req.NewStatus)
	if newStatus == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "new_status is required")
	}

	start := time.Now()
	defer e.metrics.ObserveOperation("bulk_set_status", start)

	ctx, span := e.tracer.Start(ctx, "status.BulkSetStatus", trace.WithAttributes(
		attribute.Int("documents.count", len(req.DocumentIDs)),
		attribute.String("status.new", newStatus),
	))
	defer span.End()

	var results []TransitionResult
	var current int64
	err := e.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		results = results[:0]
		for _, id := range req.DocumentIDs {
			current = id
			if _, err := e.EnsureSnapshotTx(ctx, stores, id); err != nil {
				return err
			}
		}
		catalog, err := e.catalog.LoadWith(ctx, stores.Catalog)
		if err != nil {
			return err
		}
		if !catalog.Contains(newStatus) {
			return dErrors.New(dErrors.CodeInvalidStatus, fmt.Sprintf("status %q is not in the catalog", newStatus))
		}
		for _, id := range req.DocumentIDs {
			current = id
			res, err := e.transition(ctx, stores, catalog, id, newStatus, req.Reason, req.ChangedBy, req.Details, ports.LockNoWait)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		if errors.Is(err, sentinel.ErrConflict) || dErrors.HasCode(err, dErrors.CodeConflict) {
			e.metrics.IncBulkLockConflict()
		}
		return nil, translateStoreError(err, current)
	}

	snapshots := make([]*models.Snapshot, len(results))
	for i, res := range results {
		e.afterCommit(ctx, res)
		snapshots[i] = res.Snapshot
	}
	return snapshots, nil
}

func (e *Engine) transition(
	ctx context.Context,
	stores ports.Stores,
	catalog models.Catalog,
	documentID int64,
	newStatus, reason, changedBy string,
	details models.Details,
	mode ports.LockMode,
) (TransitionResult, error) {
	snap, err := stores.Snapshots.LockSnapshot(ctx, documentID, mode)
	if err != nil {
		return TransitionResult{}, err
	}
	if !snap.RequiresTransition(newStatus) {
		return TransitionResult{Snapshot: snap}, nil
	}

	if changedBy == "" {
		changedBy = requestcontext.ActorID(ctx)
	}
	if changedBy == "" {
		doc, err := e.findDocument(ctx, documentID)
		if err != nil {
			return TransitionResult{}, err
		}
		changedBy = doc.OwnerID
	}

	oldStatus := snap.CurrentStatus
	event := snap.ApplyTransition(newStatus, reason, changedBy, details, catalog.TotalSteps(), requestcontext.Now(ctx))
	if err := stores.Snapshots.UpdateSnapshot(ctx, snap); err != nil {
		return TransitionResult{}, err
	}
	if err := stores.Events.AppendStatusEvent(ctx, event); err != nil {
		return TransitionResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record status event")
	}
	if err := e.appendAudit(ctx, stores, audit.EventDocumentStatusChanged, documentID,
		oldStatus+"->"+newStatus, reason, changedBy); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Snapshot: snap, Event: event}, nil
}

func (e *Engine) afterCommit(ctx context.Context, res TransitionResult) {
	if res.Event == nil {
		return
	}
	e.metrics.IncTransition(res.Event.NewStatus)
	e.logAudit(ctx, string(audit.EventDocumentStatusChanged),
		"document_id", res.Event.DocumentID,
		"old_status", derefOr(res.Event.OldStatus, ""),
		"new_status", res.Event.NewStatus,
		"changed_by", res.Event.ChangedBy,
		"progress_pct", res.Snapshot.ProgressPct,
	)
}

// AfterCommit records metrics and audit logs for a transition made through
// SetStatusTx once the caller's unit of work has committed.
func (e *Engine) AfterCommit(ctx context.Context, res TransitionResult) {
	e.afterCommit(ctx, res)
}

func (e *Engine) findDocument(ctx context.Context, documentID int64) (*models.Document, error) {
	doc, err := e.documents.FindDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, documentNotFound(documentID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load document")
	}
	return doc, nil
}

func (e *Engine) appendAudit(ctx context.Context, stores ports.Stores, action audit.AuditEvent, documentID int64, decision, reason, actor string) error {
	if stores.Audit == nil {
		return nil
	}
	err := stores.Audit.Append(ctx, audit.Event{
		Category:   action.Category(),
		Timestamp:  requestcontext.Now(ctx),
		DocumentID: documentID,
		Subject:    "document:" + strconv.FormatInt(documentID, 10),
		Action:     string(action),
		Decision:   decision,
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		ActorID:    actor,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (e *Engine) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if e.logger != nil {
		e.logger.InfoContext(ctx, event, args...)
	}
}

func documentNotFound(documentID int64) error {
	return dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("document %d not found", documentID))
}

// translateStoreError maps store sentinels that escaped a unit of work to
// domain errors. Domain errors pass through unchanged.
func translateStoreError(err error, documentID int64) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return documentNotFound(documentID)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict,
			fmt.Sprintf("document %d is being updated concurrently; retry", documentID))
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "status update failed")
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
