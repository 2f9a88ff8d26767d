package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"signflow/internal/lifecycle/models"
	"signflow/internal/platform/middleware"
	"signflow/pkg/platform/httputil"
)

type webhookAck struct {
	Status string `json:"status"`
}

// handleProviderWebhook always acknowledges. The callback is processed in the
// background on a context that outlives the request, bounded by the webhook
// timeout; failures are only logged.
func (h *Handler) handleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")

	var req providerEventRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "discarding malformed provider callback",
			"request_id", middleware.GetRequestID(ctx),
			"provider", provider,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusAccepted, webhookAck{Status: "accepted"})
		return
	}

	ev := models.ProviderEvent{
		Provider:   provider,
		EventID:    req.EventID,
		SessionID:  req.SessionID,
		DocumentID: req.DocumentID,
		Event:      req.Event,
		Actor:      req.Actor,
		Payload:    req.Payload,
	}

	bg := context.WithoutCancel(ctx)
	h.webhooks.Add(1)
	go func() {
		defer h.webhooks.Done()
		pctx, cancel := context.WithTimeout(bg, h.webhookTimeout)
		defer cancel()
		if err := h.verification.HandleProviderEvent(pctx, ev); err != nil {
			h.logger.WarnContext(pctx, "provider callback processing failed",
				"request_id", middleware.GetRequestID(pctx),
				"provider", provider,
				"event_id", ev.EventID,
				"error", err,
			)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, webhookAck{Status: "accepted"})
}
