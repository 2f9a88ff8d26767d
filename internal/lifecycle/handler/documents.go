package handler

import (
	"net/http"

	"signflow/internal/lifecycle/status"
	"signflow/pkg/platform/httputil"
)

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid snapshot request", err)
		return
	}
	snap, err := h.status.Snapshot(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load snapshot", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid history request", err)
		return
	}
	events, err := h.status.History(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(events))
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid timeline request", err)
		return
	}
	entries, err := h.status.Timeline(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load timeline", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(entries))
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid status request", err)
		return
	}
	var req setStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid status request", err)
		return
	}
	snap, err := h.status.SetStatus(r.Context(), status.SetStatusRequest{
		DocumentID: id,
		NewStatus:  req.target(),
		Reason:     req.Reason,
		ChangedBy:  req.ChangedBy,
		Details:    req.Details,
	})
	if err != nil {
		h.fail(w, r, "failed to set status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleBulkSetStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkSetStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid bulk status request", err)
		return
	}
	snaps, err := h.status.BulkSetStatus(r.Context(), status.BulkSetStatusRequest{
		DocumentIDs: req.ids(),
		NewStatus:   req.target(),
		Reason:      req.Reason,
		ChangedBy:   req.ChangedBy,
		Details:     req.Details,
	})
	if err != nil {
		h.fail(w, r, "failed to bulk set status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, bulkSetStatusResponse{Count: len(snaps), Snapshots: snaps})
}

func (h *Handler) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.status.ListCatalog(r.Context())
	if err != nil {
		h.fail(w, r, "failed to load status catalog", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, nonNil(catalog))
}
