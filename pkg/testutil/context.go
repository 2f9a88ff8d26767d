package testutil

import (
	"net/http"

	"signflow/pkg/requestcontext"
)

// WithActor sets the caller identity the way the actor middleware would.
func WithActor(req *http.Request, actorID string) *http.Request {
	return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
}
