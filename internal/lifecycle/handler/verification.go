package handler

import (
	"net/http"

	"signflow/internal/lifecycle/verification"
	"signflow/pkg/platform/httputil"
)

func (h *Handler) handleCreateOtp(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid otp request", err)
		return
	}
	var req createOtpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid otp request", err)
		return
	}
	desc, err := h.verification.CreateSession(r.Context(), verification.CreateSessionRequest{
		DocumentID:  id,
		Role:        req.Role,
		Channel:     req.Channel,
		SentTo:      req.SentTo,
		Code:        req.Code,
		TTL:         seconds(req.TTLSeconds),
		MaxAttempts: req.MaxAttempts,
		CreatedBy:   req.CreatedBy,
		OtpRef:      req.OtpRef,
	})
	if err != nil {
		h.fail(w, r, "failed to create otp session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, desc)
}

func (h *Handler) handleVerifyOtp(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid otp verify request", err)
		return
	}
	var req verifyOtpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid otp verify request", err)
		return
	}
	res, err := h.verification.Verify(r.Context(), verification.VerifyRequest{
		DocumentID: id,
		Role:       req.Role,
		Code:       req.Code,
	})
	if err != nil {
		h.fail(w, r, "otp verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid verification request", err)
		return
	}
	st, err := h.verification.Status(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to load verification status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) handleStartSigner(w http.ResponseWriter, r *http.Request) {
	id, err := documentIDParam(r)
	if err != nil {
		h.fail(w, r, "invalid signer request", err)
		return
	}
	var req startSignerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid signer request", err)
		return
	}
	desc, err := h.verification.StartSigner(r.Context(), verification.StartSignerRequest{
		DocumentID:  id,
		SignerName:  req.SignerName,
		Role:        req.Role,
		Channel:     req.Channel,
		SentTo:      req.SentTo,
		Code:        req.Code,
		TTL:         seconds(req.TTLSeconds),
		MaxAttempts: req.MaxAttempts,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		h.fail(w, r, "failed to start signer session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, desc)
}

func (h *Handler) handleVerifySigner(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "sessionId")
	if err != nil {
		h.fail(w, r, "invalid signer verify request", err)
		return
	}
	var req verifySignerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid signer verify request", err)
		return
	}
	desc, err := h.verification.VerifySigner(r.Context(), sessionID, req.Code)
	if err != nil {
		h.fail(w, r, "signer verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, desc)
}

func (h *Handler) handleRedirectSigner(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "sessionId")
	if err != nil {
		h.fail(w, r, "invalid signer redirect request", err)
		return
	}
	desc, err := h.verification.RedirectSigner(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, "signer redirect failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, redirectResponse{
		SessionID:   desc.SessionID.String(),
		Status:      desc.Status,
		RedirectURL: desc.RedirectURL,
	})
}

// handleCompleteSigner accepts an optional body naming the actor.
func (h *Handler) handleCompleteSigner(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuidParam(r, "sessionId")
	if err != nil {
		h.fail(w, r, "invalid signer complete request", err)
		return
	}
	var req completeSignerRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.fail(w, r, "invalid signer complete request", err)
			return
		}
	}
	desc, err := h.verification.CompleteSigner(r.Context(), sessionID, req.Actor)
	if err != nil {
		h.fail(w, r, "signer completion failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, desc)
}
