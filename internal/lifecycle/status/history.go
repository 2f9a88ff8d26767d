package status

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"signflow/internal/lifecycle/models"
	dErrors "signflow/pkg/domain-errors"
)

// Snapshot returns the document's current state, initializing it on first
// access.
func (e *Engine) Snapshot(ctx context.Context, documentID int64) (*models.Snapshot, error) {
	return e.EnsureSnapshot(ctx, documentID)
}

// History returns the document's status events oldest first. It never
// creates a snapshot: an unknown document is NotFound and a known document
// without events yields an empty list.
func (e *Engine) History(ctx context.Context, documentID int64) ([]*models.StatusEvent, error) {
	events, err := e.stores.Events.ListStatusEvents(ctx, documentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load status history")
	}
	if len(events) == 0 {
		if _, err := e.findDocument(ctx, documentID); err != nil {
			return nil, err
		}
		return []*models.StatusEvent{}, nil
	}
	models.SortStatusEvents(events)
	return events, nil
}

// Timeline merges status, OTP and e-sign events into one chronological
// read-only view.
func (e *Engine) Timeline(ctx context.Context, documentID int64) ([]models.TimelineEntry, error) {
	ctx, span := e.tracer.Start(ctx, "status.Timeline",
		trace.WithAttributes(attribute.Int64("document.id", documentID)))
	defer span.End()

	var (
		statusEvents []*models.StatusEvent
		otpEvents    []*models.OtpEvent
		esignEvents  []*models.EsignEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		statusEvents, err = e.stores.Events.ListStatusEvents(gctx, documentID)
		return err
	})
	g.Go(func() error {
		var err error
		otpEvents, err = e.stores.Otp.ListOtpEvents(gctx, documentID)
		return err
	})
	g.Go(func() error {
		var err error
		esignEvents, err = e.stores.Esign.ListEsignEvents(gctx, documentID)
		return err
	})
	if err := g.Wait(); err != nil {
		recordSpanError(span, err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "timeline read timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load timeline")
	}

	entries := make([]models.TimelineEntry, 0, len(statusEvents)+len(otpEvents)+len(esignEvents))
	for _, ev := range statusEvents {
		entries = append(entries, models.StatusTimelineEntry(ev))
	}
	for _, ev := range otpEvents {
		entries = append(entries, models.OtpTimelineEntry(ev))
	}
	for _, ev := range esignEvents {
		entries = append(entries, models.EsignTimelineEntry(ev))
	}
	if len(entries) == 0 {
		if _, err := e.findDocument(ctx, documentID); err != nil {
			return nil, err
		}
	}
	models.SortTimeline(entries)
	span.SetAttributes(attribute.Int("timeline.entries", len(entries)))
	return entries, nil
}

// ListCatalog returns the status catalog ordered by step.
func (e *Engine) ListCatalog(ctx context.Context) (models.Catalog, error) {
	return e.catalog.List(ctx)
}
