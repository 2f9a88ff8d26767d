package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"signflow/internal/lifecycle/adapters/dedupe"
	"signflow/internal/lifecycle/adapters/presign"
	"signflow/internal/lifecycle/adapters/sender"
	"signflow/internal/lifecycle/documents"
	lifecyclemetrics "signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	"signflow/internal/lifecycle/share"
	"signflow/internal/lifecycle/status"
	"signflow/internal/lifecycle/store/memory"
	pgstore "signflow/internal/lifecycle/store/postgres"
	"signflow/internal/lifecycle/verification"
	"signflow/internal/platform/config"
	"signflow/internal/platform/kafka"
	"signflow/internal/platform/postgres"
	"signflow/internal/platform/ratelimit"
	platformredis "signflow/internal/platform/redis"
	"signflow/migrations"
	auditmemory "signflow/pkg/platform/audit/store/memory"
	auditpg "signflow/pkg/platform/audit/store/postgres"
	"signflow/pkg/platform/audit/worker"
	"signflow/pkg/platform/circuit"
)

// app holds the wired services and the resources they own.
type app struct {
	storeKind    string
	engine       *status.Engine
	share        *share.Service
	verification *verification.Service
	limiter      ratelimit.Limiter

	db     *sql.DB
	redis  *platformredis.Client
	kafka  *kgo.Client
	relay  *worker.Worker
	logger *slog.Logger
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *app, err error) {
	a := &app{logger: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	m := lifecyclemetrics.New()

	var (
		tx     ports.StoreTx
		stores ports.Stores
		docs   ports.DocumentRepository
	)
	if cfg.Postgres.URL != "" {
		a.storeKind = "postgres"
		a.db, err = postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err = postgres.ApplyMigrations(ctx, a.db, migrations.FS, "."); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		outbox := auditpg.New(a.db)
		store := pgstore.New(a.db, outbox, pgstore.WithTxTimeout(cfg.Postgres.TxTimeout))
		tx, stores = store, store.Stores()
		docs = documents.NewPostgresRepository(a.db)

		if cfg.Kafka.Enabled() {
			a.kafka, err = kafka.New(ctx, cfg.Kafka)
			if err != nil {
				return nil, err
			}
			if err = kafka.EnsureTopics(ctx, a.kafka, cfg.Kafka, log); err != nil {
				return nil, err
			}
			a.relay = worker.NewWorker(outbox, a.kafka, kafka.Topics(cfg.Kafka),
				worker.WithLogger(log),
				worker.WithMetrics(worker.NewMetrics()),
				worker.WithInterval(cfg.Kafka.RelayInterval),
				worker.WithBatchSize(cfg.Kafka.RelayBatchSize),
			)
		}
	} else {
		a.storeKind = "memory"
		store := memory.New(memoryCatalog(cfg.Lifecycle.MemoryCatalog), memory.WithAuditSink(auditmemory.NewInMemoryStore()))
		tx, stores = store, store.Stores()
		docs = memoryDocuments(cfg.Lifecycle.MemoryDocuments)
		log.Warn("DATABASE_URL not set, state is kept in memory", "documents", cfg.Lifecycle.MemoryDocuments)
	}

	catalog := status.NewCatalog(stores.Catalog,
		status.WithCatalogTTL(cfg.Lifecycle.CatalogCacheTTL),
		status.WithCatalogMetrics(m),
	)
	a.engine = status.NewEngine(tx, stores, docs, catalog,
		status.WithLogger(log),
		status.WithMetrics(m),
		status.WithSeedStatus(cfg.Lifecycle.SeedStatus),
	)

	shareOpts := []share.Option{
		share.WithLogger(log),
		share.WithMetrics(m),
		share.WithSharedStatus(cfg.Lifecycle.SharedStatus),
	}
	if cfg.Blob.Enabled() {
		presigner, perr := presign.NewS3Presigner(ctx, cfg.Blob)
		if perr != nil {
			return nil, perr
		}
		shareOpts = append(shareOpts, share.WithLinkPresigner(presigner, cfg.Blob.LinkTTL))
	}
	a.share = share.NewService(tx, stores, a.engine, docs, shareOpts...)

	deduper, err := a.buildDeduper(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	a.verification = verification.NewService(tx, stores, a.engine, &verification.Config{
		Roles:           cfg.Verification.Roles,
		AdvanceStatus:   cfg.Verification.AdvanceStatus,
		TTL:             cfg.OTP.TTL,
		MaxAttempts:     cfg.OTP.MaxAttempts,
		EchoCode:        cfg.OTP.EchoCode,
		BcryptCost:      cfg.OTP.BcryptCost,
		RedirectBaseURL: cfg.Esign.RedirectBaseURL,
		DedupTTL:        cfg.Esign.WebhookDedupTTL,
	},
		verification.WithLogger(log),
		verification.WithMetrics(m),
		verification.WithSender(sender.NewLogSender(log)),
		verification.WithDeduper(deduper),
	)

	a.limiter = ratelimit.NewMemoryLimiter()
	if a.redis != nil {
		a.limiter = ratelimit.NewRedisLimiter(a.redis)
	}
	return a, nil
}

// buildDeduper prefers Redis so every replica shares claims, falling back to
// process memory while Redis is unhealthy.
func (a *app) buildDeduper(ctx context.Context, cfg config.RedisConfig) (ports.Deduper, error) {
	local := dedupe.NewMemoryDeduper()
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return local, nil
	}
	a.redis = client
	return dedupe.NewFallbackDeduper(
		dedupe.NewRedisDeduper(client),
		local,
		circuit.New("webhook-dedupe"),
		a.logger,
	), nil
}

func (a *app) runRelay(ctx context.Context) {
	if a.relay == nil {
		return
	}
	if err := a.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("outbox relay stopped", "error", err)
	}
}

func (a *app) health(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.redis != nil {
		// dedupe degrades to memory, so redis is reported but not fatal
		if err := a.redis.Health(ctx); err != nil {
			a.logger.WarnContext(ctx, "redis unhealthy", "error", err)
		}
	}
	return nil
}

func (a *app) close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func memoryCatalog(codes []string) []models.CatalogEntry {
	entries := make([]models.CatalogEntry, 0, len(codes))
	for i, code := range codes {
		entries = append(entries, models.CatalogEntry{
			Code:           code,
			SequenceNumber: i + 1,
			IsFinal:        i == len(codes)-1,
		})
	}
	return entries
}

func memoryDocuments(n int) *documents.InMemoryRepository {
	repo := documents.NewInMemoryRepository()
	for id := int64(1); id <= int64(n); id++ {
		repo.Put(models.Document{ID: id, OwnerID: fmt.Sprintf("owner-%d", id)})
	}
	return repo
}
