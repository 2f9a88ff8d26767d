package httpserver

import (
	"net/http"
	"time"

	"signflow/internal/platform/config"
)

// New builds an HTTP server with sane defaults for this project. The write
// timeout leaves headroom over the per-request timeout middleware.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
