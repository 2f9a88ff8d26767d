//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"signflow/internal/lifecycle/documents"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	"signflow/internal/lifecycle/status"
	"signflow/internal/lifecycle/store/postgres"
	"signflow/internal/lifecycle/verification"
	dErrors "signflow/pkg/domain-errors"
	auditpg "signflow/pkg/platform/audit/store/postgres"
	"signflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx    context.Context
	pg     *containers.PostgresContainer
	store  *postgres.Store
	outbox *auditpg.Store
	engine *status.Engine
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.GetManager().Postgres(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx,
		"documents", "document_status_snapshot", "document_status_events",
		"share_batches", "share_recipients", "otp_sessions", "otp_events", "esign_events", "outbox"))
	s.outbox = auditpg.New(s.pg.DB)
	s.store = postgres.New(s.pg.DB, s.outbox, postgres.WithTxTimeout(2*time.Second))
	s.engine = status.NewEngine(s.store, s.store.Stores(), documents.NewPostgresRepository(s.pg.DB),
		status.NewCatalog(s.store.Stores().Catalog, status.WithCatalogTTL(-1)))
}

func (s *PostgresStoreSuite) newDocument(owner string) int64 {
	var id int64
	s.Require().NoError(s.pg.DB.QueryRowContext(s.ctx,
		`INSERT INTO documents (owner_id, storage_key) VALUES ($1, $2) RETURNING id`,
		owner, "docs/"+owner+".pdf").Scan(&id))
	return id
}

func (s *PostgresStoreSuite) TestLifecyclePersists() {
	id := s.newDocument("owner-a")

	snap, err := s.engine.EnsureSnapshot(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("created", snap.CurrentStatus)
	s.Equal("owner-a", snap.ChangedBy)
	s.Equal(33, snap.ProgressPct)

	snap, err = s.engine.SetStatus(s.ctx, status.SetStatusRequest{DocumentID: id, NewStatus: "shared", Reason: "sent", Details: models.Details{"channel": "email"}})
	s.Require().NoError(err)
	s.Equal([]string{"created", "shared"}, snap.CompletedStatuses.Codes())
	s.Equal(67, snap.ProgressPct)

	_, err = s.engine.SetStatus(s.ctx, status.SetStatusRequest{DocumentID: id, NewStatus: "shared"})
	s.Require().NoError(err)

	events, err := s.engine.History(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Nil(events[0].OldStatus)
	s.Equal("created", *events[1].OldStatus)
	s.Equal("email", events[1].Details["channel"])

	pending, err := s.outbox.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, pending)
}

func (s *PostgresStoreSuite) TestConcurrentEnsureCreatesOneSnapshot() {
	id := s.newDocument("owner-b")

	errs := make(chan error, 8)
	for range 8 {
		go func() {
			_, err := s.engine.EnsureSnapshot(s.ctx, id)
			errs <- err
		}()
	}
	for range 8 {
		s.Require().NoError(<-errs)
	}

	events, err := s.engine.History(s.ctx, id)
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresStoreSuite) TestConcurrentTransitionsKeepEveryStep() {
	id := s.newDocument("owner-g")
	_, err := s.engine.EnsureSnapshot(s.ctx, id)
	s.Require().NoError(err)

	targets := []string{"shared", "signed", "shared", "signed", "created", "shared", "signed", "created"}
	errs := make(chan error, len(targets))
	for _, target := range targets {
		go func() {
			_, err := s.engine.SetStatus(s.ctx, status.SetStatusRequest{DocumentID: id, NewStatus: target})
			errs <- err
		}()
	}
	for range targets {
		s.Require().NoError(<-errs)
	}

	snap, err := s.engine.Snapshot(s.ctx, id)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"created", "shared", "signed"}, snap.CompletedStatuses.Codes())
	s.Equal(3, snap.StepsDone)
	s.Equal(100, snap.ProgressPct)

	events, err := s.engine.History(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotEmpty(events)
	for i := 1; i < len(events); i++ {
		s.Require().NotNil(events[i].OldStatus)
		s.Equal(events[i-1].NewStatus, *events[i].OldStatus, "transitions must chain without lost updates")
	}
	s.Equal(snap.CurrentStatus, events[len(events)-1].NewStatus)
}

func (s *PostgresStoreSuite) TestConcurrentWrongCodesAreAllCounted() {
	id := s.newDocument("owner-h")
	service := verification.NewService(s.store, s.store.Stores(), s.engine,
		&verification.Config{BcryptCost: bcrypt.MinCost, MaxAttempts: 5})
	_, err := service.CreateSession(s.ctx, verification.CreateSessionRequest{
		DocumentID: id, Role: "buyer", Channel: "sms", SentTo: "+34600000000", Code: "123456",
	})
	s.Require().NoError(err)

	const attempts = 8
	errs := make(chan error, attempts)
	for range attempts {
		go func() {
			_, err := service.Verify(s.ctx, verification.VerifyRequest{DocumentID: id, Role: "buyer", Code: "000000"})
			errs <- err
		}()
	}
	invalid, exceeded := 0, 0
	for range attempts {
		err := <-errs
		switch {
		case dErrors.HasCode(err, dErrors.CodeInvalidCode):
			invalid++
		case dErrors.HasCode(err, dErrors.CodeAttemptsExceeded):
			exceeded++
		default:
			s.Failf("unexpected verify result", "%v", err)
		}
	}
	s.Equal(5, invalid)
	s.Equal(attempts-5, exceeded)

	sessions, err := s.store.ListRoleSessions(s.ctx, id)
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.Equal(5, sessions[0].Attempts)

	events, err := s.store.ListOtpEvents(s.ctx, id)
	s.Require().NoError(err)
	failures := 0
	for _, e := range events {
		if e.Event == models.OtpEventInvalidCode || e.Event == models.OtpEventAttemptsExceeded {
			failures++
		}
	}
	s.Equal(attempts, failures)
}

func (s *PostgresStoreSuite) TestBulkFailsFastOnHeldLock() {
	a, b := s.newDocument("owner-c"), s.newDocument("owner-d")
	_, err := s.engine.BulkSetStatus(s.ctx, status.BulkSetStatusRequest{DocumentIDs: []int64{a, b}, NewStatus: "created"})
	s.Require().NoError(err)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.store.RunInTx(s.ctx, func(ctx context.Context, stores ports.Stores) error {
			if _, err := stores.Snapshots.LockSnapshot(ctx, b, ports.LockWait); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	_, err = s.engine.BulkSetStatus(s.ctx, status.BulkSetStatusRequest{DocumentIDs: []int64{a, b}, NewStatus: "shared"})
	close(release)
	s.Require().NoError(<-done)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)

	snap, err := s.engine.Snapshot(s.ctx, a)
	s.Require().NoError(err)
	s.Equal("created", snap.CurrentStatus, "first document must roll back with the batch")
}

func (s *PostgresStoreSuite) TestRollbackDiscardsEveryTable() {
	id := s.newDocument("owner-e")
	_, err := s.engine.EnsureSnapshot(s.ctx, id)
	s.Require().NoError(err)
	before, err := s.outbox.CountPending(s.ctx)
	s.Require().NoError(err)

	err = s.store.RunInTx(s.ctx, func(ctx context.Context, stores ports.Stores) error {
		if _, err := s.engine.SetStatusTx(ctx, stores, status.SetStatusRequest{DocumentID: id, NewStatus: "signed"}); err != nil {
			return err
		}
		batch := &models.ShareBatch{ID: uuid.New(), DocumentID: id, Channels: []string{"email"}, CreatedAt: time.Now()}
		if err := stores.Shares.CreateBatch(ctx, batch); err != nil {
			return err
		}
		return dErrors.New(dErrors.CodeInvalidInput, "abort")
	})
	s.Require().Error(err)

	snap, err := s.engine.Snapshot(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("created", snap.CurrentStatus)
	batches, err := s.store.ListBatches(s.ctx, id)
	s.Require().NoError(err)
	s.Empty(batches)
	after, err := s.outbox.CountPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *PostgresStoreSuite) TestRoleSessionUpsertKeepsOneRow() {
	id := s.newDocument("owner-f")
	now := time.Now().UTC().Truncate(time.Microsecond)
	session := &models.OtpSession{
		ID: uuid.New(), Kind: models.SessionDocumentRole, DocumentID: id, Role: "seller",
		CodeHash: "hash-1", ExpiresAt: now.Add(time.Minute), MaxAttempts: 5, CreatedAt: now, UpdatedAt: now,
	}
	first, err := s.store.UpsertRoleSession(s.ctx, session)
	s.Require().NoError(err)

	replacement := *session
	replacement.ID = uuid.New()
	replacement.CodeHash = "hash-2"
	second, err := s.store.UpsertRoleSession(s.ctx, &replacement)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal("hash-2", second.CodeHash)
	sessions, err := s.store.ListRoleSessions(s.ctx, id)
	s.Require().NoError(err)
	s.Len(sessions, 1)
}
