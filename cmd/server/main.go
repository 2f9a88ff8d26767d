package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signflow/internal/lifecycle/handler"
	"signflow/internal/platform/config"
	"signflow/internal/platform/httpserver"
	"signflow/internal/platform/logger"
	"signflow/internal/platform/metrics"
	"signflow/internal/platform/otel"
	"signflow/internal/platform/ratelimit"
	"signflow/pkg/platform/httputil"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/lifecycle.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	h := handler.New(app.engine, app.share, app.verification,
		handler.WithLogger(log),
		handler.WithMetrics(metrics.New()),
		handler.WithRequestTimeout(cfg.Server.RequestTimeout),
		handler.WithWebhookTimeout(cfg.Esign.WebhookTimeout),
		handler.WithVerifyLimit(ratelimit.Middleware(app.limiter, ratelimit.Policy{
			Name:   "verify",
			Limit:  cfg.RateLimit.VerifyLimit,
			Window: cfg.RateLimit.VerifyWindow,
		}, log)),
	)

	r := chi.NewRouter()
	r.Get("/healthz", app.healthz)
	r.Handle("/metrics", promhttp.Handler())
	h.Register(r)

	srv := httpserver.New(cfg.Server, r)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		app.runRelay(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting signflow", "addr", cfg.Server.Addr, "store", app.storeKind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	stop()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := h.Wait(shutdownCtx); err != nil {
		log.Warn("provider callbacks still running at shutdown", "error", err)
	}
	<-relayDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "error", err)
	}
	return nil
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.health(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
