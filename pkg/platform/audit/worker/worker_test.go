package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "signflow/pkg/platform/audit"
)

type fakeOutbox struct {
	pending   []audit.OutboxEntry
	published []audit.OutboxEntry
}

func (f *fakeOutbox) PublishPending(ctx context.Context, limit int, publish func(ctx context.Context, entries []audit.OutboxEntry) error) (int, error) {
	n := min(limit, len(f.pending))
	if n == 0 {
		return 0, nil
	}
	batch := f.pending[:n]
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}
	f.published = append(f.published, batch...)
	f.pending = f.pending[n:]
	return n, nil
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func entry(action, aggregateID string) audit.OutboxEntry {
	return audit.OutboxEntry{
		ID:            uuid.New(),
		AggregateType: "document",
		AggregateID:   aggregateID,
		EventType:     action,
		Payload:       []byte(`{}`),
		CreatedAt:     time.Now(),
	}
}

var testTopics = Topics{Compliance: "audit.compliance", Security: "audit.security", Operations: "audit.ops"}

func TestWorkerDrainRoutesByCategory(t *testing.T) {
	outbox := &fakeOutbox{pending: []audit.OutboxEntry{
		entry(string(audit.EventDocumentStatusChanged), "7"),
		entry(string(audit.EventOtpVerificationFailed), "7"),
		entry(string(audit.EventShareBatchCreated), "8"),
	}}
	producer := &fakeProducer{}
	w := NewWorker(outbox, producer, testTopics, WithBatchSize(2))

	n, err := w.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, outbox.pending)

	require.Len(t, producer.records, 3)
	assert.Equal(t, "audit.compliance", producer.records[0].Topic)
	assert.Equal(t, "audit.security", producer.records[1].Topic)
	assert.Equal(t, "audit.ops", producer.records[2].Topic)
	assert.Equal(t, []byte("document:7"), producer.records[0].Key)
	assert.Equal(t, "event_type", producer.records[0].Headers[0].Key)
}

func TestWorkerDrainKeepsEntriesOnProduceFailure(t *testing.T) {
	outbox := &fakeOutbox{pending: []audit.OutboxEntry{entry(string(audit.EventOtpIssued), "1")}}
	producer := &fakeProducer{err: errors.New("broker unavailable")}
	w := NewWorker(outbox, producer, testTopics)

	n, err := w.Drain(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, outbox.pending, 1)
	assert.Empty(t, outbox.published)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(&fakeOutbox{}, &fakeProducer{}, testTopics, WithInterval(time.Millisecond))
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
