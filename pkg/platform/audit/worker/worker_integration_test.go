//go:build integration

package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"signflow/internal/platform/config"
	"signflow/internal/platform/kafka"
	audit "signflow/pkg/platform/audit"
	auditpg "signflow/pkg/platform/audit/store/postgres"
	"signflow/pkg/platform/audit/worker"
	"signflow/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	ctx    context.Context
	pg     *containers.PostgresContainer
	cfg    config.KafkaConfig
	client *kgo.Client
	outbox *auditpg.Store
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.GetManager().Postgres(s.T())
	broker := containers.GetManager().Redpanda(s.T())
	s.cfg = config.KafkaConfig{
		Brokers:         broker.Brokers,
		ClientID:        "signflow-test",
		ComplianceTopic: "test.audit.compliance",
		SecurityTopic:   "test.audit.security",
		OperationsTopic: "test.audit.operations",
		Partitions:      1,
		Replication:     1,
	}

	client, err := kafka.New(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.client = client
	s.Require().NoError(kafka.EnsureTopics(s.ctx, client, s.cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.outbox = auditpg.New(s.pg.DB)
}

func (s *RelaySuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "outbox"))
}

func (s *RelaySuite) TestDrainPublishesAndMarksEntries() {
	for _, action := range []audit.AuditEvent{audit.EventDocumentStatusChanged, audit.EventOtpIssued} {
		s.Require().NoError(s.outbox.Append(s.ctx, audit.Event{
			Action:     string(action),
			DocumentID: 42,
			Subject:    "document:42",
			ActorID:    "agent-1",
			Timestamp:  time.Now(),
		}))
	}

	w := worker.NewWorker(s.outbox, s.client, kafka.Topics(s.cfg), worker.WithBatchSize(1))
	n, err := w.Drain(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	pending, err := s.outbox.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ConsumeTopics(s.cfg.ComplianceTopic, s.cfg.SecurityTopic, s.cfg.OperationsTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(s.ctx, 15*time.Second)
	defer cancel()
	var records []*kgo.Record
	for len(records) < 2 && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	s.Require().Len(records, 2)
	for _, r := range records {
		s.Equal("document:42", string(r.Key))
	}
}
