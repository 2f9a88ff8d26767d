package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/share"
	"signflow/internal/lifecycle/status"
	"signflow/internal/lifecycle/verification"
	"signflow/internal/platform/metrics"
	"signflow/internal/platform/middleware"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/httputil"
	"signflow/pkg/platform/middleware/metadata"
	"signflow/pkg/platform/middleware/requesttime"
)

//go:generate mockgen -source=handler.go -destination=mocks/services.go -package=mocks

// StatusService is the transition engine surface used by the document routes.
type StatusService interface {
	Snapshot(ctx context.Context, documentID int64) (*models.Snapshot, error)
	History(ctx context.Context, documentID int64) ([]*models.StatusEvent, error)
	Timeline(ctx context.Context, documentID int64) ([]models.TimelineEntry, error)
	SetStatus(ctx context.Context, req status.SetStatusRequest) (*models.Snapshot, error)
	BulkSetStatus(ctx context.Context, req status.BulkSetStatusRequest) ([]*models.Snapshot, error)
	ListCatalog(ctx context.Context) (models.Catalog, error)
}

// ShareService creates and lists share batches.
type ShareService interface {
	CreateBatch(ctx context.Context, req share.CreateBatchRequest) (*share.BatchResult, error)
	ListBatches(ctx context.Context, documentID int64) ([]*models.ShareBatch, error)
	Recipients(ctx context.Context, batchID uuid.UUID) ([]*models.ShareRecipient, error)
}

// VerificationService runs OTP challenges, the signer flow and provider callbacks.
type VerificationService interface {
	CreateSession(ctx context.Context, req verification.CreateSessionRequest) (*verification.SessionDescriptor, error)
	Verify(ctx context.Context, req verification.VerifyRequest) (*verification.VerifyResult, error)
	Status(ctx context.Context, documentID int64) (*verification.Status, error)
	StartSigner(ctx context.Context, req verification.StartSignerRequest) (*verification.SignerDescriptor, error)
	VerifySigner(ctx context.Context, sessionID uuid.UUID, code string) (*verification.SignerDescriptor, error)
	RedirectSigner(ctx context.Context, sessionID uuid.UUID) (*verification.SignerDescriptor, error)
	CompleteSigner(ctx context.Context, sessionID uuid.UUID, actor string) (*verification.SignerDescriptor, error)
	HandleProviderEvent(ctx context.Context, ev models.ProviderEvent) error
}

// Handler serves the document lifecycle HTTP API.
type Handler struct {
	logger         *slog.Logger
	metrics        *metrics.Metrics
	status         StatusService
	share          ShareService
	verification   VerificationService
	requestTimeout time.Duration
	webhookTimeout time.Duration
	verifyLimit    func(http.Handler) http.Handler
	webhooks       sync.WaitGroup
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithRequestTimeout bounds every request context.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

// WithWebhookTimeout bounds background processing of a provider callback.
func WithWebhookTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.webhookTimeout = d
	}
}

// WithVerifyLimit wraps the routes that issue or check one-time codes.
func WithVerifyLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.verifyLimit = mw
	}
}

// New creates a Handler.
func New(statusSvc StatusService, shareSvc ShareService, verificationSvc VerificationService, opts ...Option) *Handler {
	h := &Handler{
		logger:         slog.Default(),
		status:         statusSvc,
		share:          shareSvc,
		verification:   verificationSvc,
		requestTimeout: 30 * time.Second,
		webhookTimeout: 10 * time.Second,
		verifyLimit:    func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the lifecycle routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(metadata.ClientMetadata)
	api.Use(requesttime.Middleware)
	api.Use(middleware.ActorID(h.logger))
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.Timeout(h.requestTimeout))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.LatencyMiddleware(h.metrics))

	api.Get("/status-catalog", h.handleListCatalog)
	api.Post("/documents/bulk-status", h.handleBulkSetStatus)
	api.Route("/documents/{id}", func(d chi.Router) {
		d.Get("/snapshot", h.handleSnapshot)
		d.Get("/history", h.handleHistory)
		d.Get("/timeline", h.handleTimeline)
		d.Post("/status", h.handleSetStatus)
		d.Post("/share-batches", h.handleCreateShareBatch)
		d.Get("/share-batches", h.handleListShareBatches)
		d.With(h.verifyLimit).Post("/otp", h.handleCreateOtp)
		d.With(h.verifyLimit).Post("/otp/verify", h.handleVerifyOtp)
		d.Get("/verification", h.handleVerificationStatus)
		d.Post("/signers", h.handleStartSigner)
	})
	api.Get("/share-batches/{batchId}/recipients", h.handleListRecipients)
	api.Route("/signer-sessions/{sessionId}", func(s chi.Router) {
		s.With(h.verifyLimit).Post("/verify", h.handleVerifySigner)
		s.Post("/redirect", h.handleRedirectSigner)
		s.Post("/complete", h.handleCompleteSigner)
	})
	api.Post("/webhooks/esign/{provider}", h.handleProviderWebhook)

	r.Mount("/", api)
}

// Wait blocks until in-flight provider callbacks finish or ctx is done.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.webhooks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail logs and writes err. Client errors log at warn, the rest at error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if httputil.StatusFor(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"code", string(code),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func documentIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "document id must be a positive integer")
	}
	return id, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, name+" must be a UUID")
	}
	return id, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
