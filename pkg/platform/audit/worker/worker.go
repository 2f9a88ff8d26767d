package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "signflow/pkg/platform/audit"
)

// Outbox hands unpublished entries to a publish callback and marks them
// published when it succeeds.
type Outbox interface {
	PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, entries []audit.OutboxEntry) error) (int, error)
}

// Producer is the subset of *kgo.Client the relay needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Topics maps event categories to Kafka topics.
type Topics struct {
	Compliance string
	Security   string
	Operations string
}

func (t Topics) For(category audit.EventCategory) string {
	switch category {
	case audit.CategoryCompliance:
		return t.Compliance
	case audit.CategorySecurity:
		return t.Security
	default:
		return t.Operations
	}
}

// Worker relays outbox entries to Kafka. Entries of one document share a
// record key so consumers see them in commit order.
type Worker struct {
	outbox    Outbox
	producer  Producer
	topics    Topics
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func NewWorker(outbox Outbox, producer Producer, topics Topics, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		topics:    topics,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// Drain publishes batches until the outbox is empty or a batch fails.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := w.outbox.PublishPending(ctx, w.batchSize, w.publish)
		total += n
		if err != nil {
			if w.metrics != nil {
				w.metrics.IncPublishFailures()
			}
			return total, err
		}
		if w.metrics != nil {
			w.metrics.AddPublished(n)
		}
		if n < w.batchSize {
			return total, nil
		}
	}
}

func (w *Worker) publish(ctx context.Context, entries []audit.OutboxEntry) error {
	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &kgo.Record{
			Topic: w.topics.For(audit.AuditEvent(e.EventType).Category()),
			Key:   []byte(e.AggregateType + ":" + e.AggregateID),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "outbox_id", Value: []byte(e.ID.String())},
			},
			Timestamp: e.CreatedAt,
		})
	}
	return w.producer.ProduceSync(ctx, records...).FirstErr()
}
