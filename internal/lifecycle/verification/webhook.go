package verification

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/audit"
	"signflow/pkg/requestcontext"
)

// providerOutcomes maps provider event names to the signer status they imply.
var providerOutcomes = map[string]models.SignerStatus{
	"signed":    models.SignerSigned,
	"completed": models.SignerSigned,
	"declined":  models.SignerDeclined,
	"rejected":  models.SignerDeclined,
}

// HandleProviderEvent records an inbound provider callback. Repeated event
// ids are dropped. When the callback names a signer session and reports a
// final outcome, the session moves to signed or declined if its current
// status allows it; otherwise the event is still recorded.
func (s *Service) HandleProviderEvent(ctx context.Context, ev models.ProviderEvent) error {
	provider := strings.ToLower(strings.TrimSpace(ev.Provider))
	eventName := strings.ToLower(strings.TrimSpace(ev.Event))
	if provider == "" || eventName == "" {
		s.metrics.IncWebhook(provider, "invalid")
		return dErrors.New(dErrors.CodeInvalidInput, "provider and event are required")
	}

	ctx, span := s.tracer.Start(ctx, "verification.HandleProviderEvent", trace.WithAttributes(
		attribute.String("esign.provider", provider),
		attribute.String("esign.event", eventName),
	))
	defer span.End()

	if ev.EventID != "" && s.deduper != nil {
		first, err := s.deduper.Claim(ctx, "esign:"+provider+":"+ev.EventID, s.cfg.DedupTTL)
		if err != nil {
			// fail open
			s.logger.WarnContext(ctx, "webhook dedupe unavailable", "provider", provider, "error", err)
		} else if !first {
			s.metrics.IncWebhook(provider, "duplicate")
			s.logAudit(ctx, string(audit.EventProviderCallbackDup),
				"provider", provider,
				"event_id", ev.EventID,
			)
			return nil
		}
	}

	var sessionID uuid.UUID
	if ev.SessionID != "" {
		id, err := uuid.Parse(ev.SessionID)
		if err != nil {
			s.metrics.IncWebhook(provider, "invalid")
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "session_id must be a UUID")
		}
		sessionID = id
	}

	var (
		documentID = ev.DocumentID
		moved      models.SignerStatus
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		var session *models.OtpSession
		if sessionID != uuid.Nil {
			var err error
			session, err = s.lockSigner(ctx, stores, sessionID)
			if err != nil {
				return err
			}
			if documentID == 0 {
				documentID = session.DocumentID
			}
			if session.DocumentID != documentID {
				return dErrors.New(dErrors.CodeInvalidInput, "session does not belong to document")
			}
		}
		if documentID == 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "document_id or session_id is required")
		}

		details := ev.Payload.Clone()
		if details == nil {
			details = models.Details{}
		}
		if ev.EventID != "" {
			details["event_id"] = ev.EventID
		}
		statusLabel := ""
		if session != nil {
			details["session_id"] = session.ID.String()
			if next, ok := providerOutcomes[eventName]; ok {
				if err := session.AdvanceSigner(next, requestcontext.Now(ctx)); err != nil {
					if !dErrors.HasCode(err, dErrors.CodeInvalidState) {
						return err
					}
					details["ignored"] = err.Error()
				} else {
					if err := stores.Otp.UpdateSession(ctx, session); err != nil {
						return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update signer session")
					}
					moved = next
				}
			}
			statusLabel = string(session.SignerStatus)
		}

		actor := ev.Actor
		if actor == "" && session != nil {
			actor = session.SignerName
		}
		if err := stores.Esign.AppendEsignEvent(ctx, &models.EsignEvent{
			DocumentID: documentID,
			Provider:   provider,
			Event:      eventName,
			Actor:      actor,
			Status:     statusLabel,
			Details:    details,
			CreatedBy:  "provider:" + provider,
			CreatedAt:  requestcontext.Now(ctx),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record esign event")
		}

		action := audit.EventProviderCallback
		switch moved {
		case models.SignerSigned:
			action = audit.EventSignerSigned
		case models.SignerDeclined:
			action = audit.EventSignerDeclined
		}
		return s.appendAudit(ctx, stores, action, documentID, "provider:"+provider, eventName, ev.EventID)
	})
	if err != nil {
		recordSpanError(span, err)
		s.metrics.IncWebhook(provider, "failed")
		return translate(err)
	}

	s.metrics.IncWebhook(provider, "processed")
	if moved != "" {
		s.metrics.IncSignerTransition(string(moved))
	}
	s.logAudit(ctx, string(audit.EventProviderCallback),
		"provider", provider,
		"event", eventName,
		"document_id", documentID,
		"signer_status", string(moved),
	)
	return nil
}
