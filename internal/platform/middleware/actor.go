package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"signflow/pkg/platform/httputil"
	"signflow/pkg/requestcontext"
)

// HeaderActorID is set by the upstream auth proxy to the caller identity.
const HeaderActorID = "X-Actor-ID"

const maxActorIDLength = 128

// ActorID copies the X-Actor-ID header into the request context. The header
// is optional; callers without it fall back to per-operation defaults.
func ActorID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(HeaderActorID))
			if actor == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(actor) > maxActorIDLength || strings.ContainsAny(actor, "\r\n") {
				ctx := r.Context()
				logger.WarnContext(ctx, "rejected malformed actor header",
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
					"error":             "bad_request",
					"error_description": "invalid X-Actor-ID header",
				})
				return
			}
			ctx := requestcontext.WithActorID(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
