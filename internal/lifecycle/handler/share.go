package handler

import (
	"net/http"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/share"
	"signflow/pkg/platform/httputil"
)

func (h *Handler) handleCreateShareBatch(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid share batch request", err)
		return
	}
	var req createShareBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid share batch request", err)
		return
	}
	recipients := make([]models.ShareRecipient, 0, len(req.Recipients))
	for _, rr := range req.Recipients {
		recipients = append(recipients, rr.toModel())
	}
	res, err := h.share.CreateBatch(r.Context(), share.CreateBatchRequest{
		DocumentID: id,
		Channels:   req.Channels,
		Message:    req.Message,
		PublicLink: req.PublicLink,
		CreatedBy:  req.CreatedBy,
		Recipients: recipients,
	})
	if err != nil {
		h.fail(w, r, "failed to create share batch", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleListShareBatches(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid share batch request", err)
		return
	}
	batches, err := h.share.ListBatches(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to list share batches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(batches))
}

func (h *Handler) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuidParam(r, "batchId")
	if err != nil {
		h.fail(w, r, "invalid recipients request", err)
		return
	}
	recipients, err := h.share.Recipients(r.Context(), batchID)
	if err != nil {
		h.fail(w, r, "failed to list recipients", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(recipients))
}
