package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signflow/internal/lifecycle/documents"
	"signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports"
	"signflow/internal/lifecycle/store/memory"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/audit"
	auditmemory "signflow/pkg/platform/audit/store/memory"
	"signflow/pkg/platform/sentinel"
	"signflow/pkg/requestcontext"

	"github.com/prometheus/client_golang/prometheus"
)

var testCatalog = []models.CatalogEntry{
	{Code: "created", SequenceNumber: 1},
	{Code: "shared", SequenceNumber: 2},
	{Code: "signed", SequenceNumber: 3, IsFinal: true},
}

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.Store
	docs   *documents.InMemoryRepository
	sink   *auditmemory.InMemoryStore
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.sink = auditmemory.NewInMemoryStore()
	s.store = memory.New(testCatalog, memory.WithAuditSink(s.sink))
	s.docs = documents.NewInMemoryRepository(
		models.Document{ID: 42, OwnerID: "agent-7"},
		models.Document{ID: 1, OwnerID: "owner-1"},
		models.Document{ID: 3, OwnerID: "owner-3"},
	)
	s.engine = s.newEngine(s.store)
}

func (s *EngineSuite) newEngine(tx ports.StoreTx) *Engine {
	return NewEngine(tx, s.store.Stores(), s.docs, NewCatalog(s.store.Stores().Catalog),
		WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry())))
}

func (s *EngineSuite) history(docID int64) []*models.StatusEvent {
	events, err := s.engine.History(s.ctx, docID)
	s.Require().NoError(err)
	return events
}

func (s *EngineSuite) TestConcurrentTransitionsChain() {
	targets := []string{"shared", "signed", "created", "shared", "signed", "created"}
	errs := make(chan error, len(targets))
	for _, target := range targets {
		go func() {
			_, err := s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 3, NewStatus: target})
			errs <- err
		}()
	}
	for range targets {
		s.Require().NoError(<-errs)
	}

	snap, err := s.engine.Snapshot(s.ctx, 3)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"created", "shared", "signed"}, snap.CompletedStatuses.Codes())

	events := s.history(3)
	for i := 1; i < len(events); i++ {
		s.Require().NotNil(events[i].OldStatus)
		s.Equal(events[i-1].NewStatus, *events[i].OldStatus)
	}
	s.Equal(snap.CurrentStatus, events[len(events)-1].NewStatus)
}

func (s *EngineSuite) TestLifecycleScenario() {
	snap, err := s.engine.Snapshot(s.ctx, 42)
	s.Require().NoError(err)
	s.Equal("created", snap.CurrentStatus)
	s.Equal(1, snap.StepsDone)
	s.Equal(33, snap.ProgressPct)
	s.Equal("agent-7", snap.ChangedBy)
	s.Len(s.history(42), 1)

	snap, err = s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 42, NewStatus: "shared"})
	s.Require().NoError(err)
	s.Equal(2, snap.StepsDone)
	s.Equal(67, snap.ProgressPct)
	events := s.history(42)
	s.Require().Len(events, 2)
	s.Require().NotNil(events[1].OldStatus)
	s.Equal("created", *events[1].OldStatus)
	s.Equal("shared", events[1].NewStatus)

	again, err := s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 42, NewStatus: "shared"})
	s.Require().NoError(err)
	s.Equal(snap, again)
	s.Len(s.history(42), 2)

	snap, err = s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 42, NewStatus: "signed"})
	s.Require().NoError(err)
	s.Equal(3, snap.StepsDone)
	s.Equal(100, snap.ProgressPct)
	s.True(snap.CompletedStatuses.Contains("signed"))
}

func (s *EngineSuite) TestSeedEventHasNoOldStatus() {
	_, err := s.engine.EnsureSnapshot(s.ctx, 1)
	s.Require().NoError(err)

	events := s.history(1)
	s.Require().Len(events, 1)
	s.Nil(events[0].OldStatus)
	s.Equal("created", events[0].NewStatus)
	s.Equal("owner-1", events[0].ChangedBy)

	auditEvents, err := s.sink.ListByDocument(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(auditEvents, 1)
	s.Equal(string(audit.EventSnapshotInitialized), auditEvents[0].Action)
}

func (s *EngineSuite) TestEnsureSnapshotIsStable() {
	first, err := s.engine.EnsureSnapshot(s.ctx, 1)
	s.Require().NoError(err)
	second, err := s.engine.EnsureSnapshot(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Len(s.history(1), 1)
}

func (s *EngineSuite) TestUnknownDocument() {
	_, err := s.engine.Snapshot(s.ctx, 999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 999, NewStatus: "shared"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestUnknownStatusIsRejected() {
	_, err := s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 1, NewStatus: "archived"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidStatus))

	// the snapshot was still initialized in its own unit of work
	snap, err := s.engine.Snapshot(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("created", snap.CurrentStatus)
}

func (s *EngineSuite) TestCompletedStatusesOnlyGrow() {
	_, err := s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 1, NewStatus: "signed"})
	s.Require().NoError(err)

	snap, err := s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 1, NewStatus: "created", Reason: "reopened"})
	s.Require().NoError(err)
	s.Equal("created", snap.CurrentStatus)
	s.Equal([]string{"created", "signed"}, snap.CompletedStatuses.Codes())
	s.Equal(2, snap.StepsDone)
	s.Equal(67, snap.ProgressPct)
	s.Equal("reopened", snap.Reason)
}

func (s *EngineSuite) TestEveryEventRecordsPreviousStatus() {
	path := []string{"shared", "created", "signed", "shared"}
	for _, st := range path {
		_, err := s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 3, NewStatus: st})
		s.Require().NoError(err)
	}
	events := s.history(3)
	s.Require().Len(events, len(path)+1)
	for i := 1; i < len(events); i++ {
		s.Require().NotNil(events[i].OldStatus)
		s.Equal(events[i-1].NewStatus, *events[i].OldStatus)
	}
}

func (s *EngineSuite) TestChangedByDefaults() {
	ctx := requestcontext.WithActorID(s.ctx, "clerk-9")
	snap, err := s.engine.SetStatus(ctx, SetStatusRequest{DocumentID: 1, NewStatus: "shared"})
	s.Require().NoError(err)
	s.Equal("clerk-9", snap.ChangedBy)

	snap, err = s.engine.SetStatus(s.ctx, SetStatusRequest{DocumentID: 1, NewStatus: "signed"})
	s.Require().NoError(err)
	s.Equal("owner-1", snap.ChangedBy)

	snap, err = s.engine.SetStatus(ctx, SetStatusRequest{DocumentID: 1, NewStatus: "created", ChangedBy: "explicit"})
	s.Require().NoError(err)
	s.Equal("explicit", snap.ChangedBy)
}

func (s *EngineSuite) TestTransitionWritesAuditEvent() {
	ctx := requestcontext.WithRequestID(s.ctx, "req-1")
	_, err := s.engine.SetStatus(ctx, SetStatusRequest{DocumentID: 1, NewStatus: "shared", Reason: "sent"})
	s.Require().NoError(err)

	events, err := s.sink.ListByDocument(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	changed := events[1]
	s.Equal(string(audit.EventDocumentStatusChanged), changed.Action)
	s.Equal(audit.CategoryCompliance, changed.Category)
	s.Equal("created->shared", changed.Decision)
	s.Equal("req-1", changed.RequestID)
}

func (s *EngineSuite) TestBulkSetStatusAppliesInInputOrder() {
	snaps, err := s.engine.BulkSetStatus(s.ctx, BulkSetStatusRequest{DocumentIDs: []int64{3, 1}, NewStatus: "shared", Reason: "batch"})
	s.Require().NoError(err)
	s.Require().Len(snaps, 2)
	s.Equal(int64(3), snaps[0].DocumentID)
	s.Equal(int64(1), snaps[1].DocumentID)
	for _, snap := range snaps {
		s.Equal("shared", snap.CurrentStatus)
		s.Equal("batch", snap.Reason)
	}
}

func (s *EngineSuite) TestBulkSetStatusIsAtomic() {
	before, err := s.engine.Snapshot(s.ctx, 1)
	s.Require().NoError(err)

	_, err = s.engine.BulkSetStatus(s.ctx, BulkSetStatusRequest{DocumentIDs: []int64{1, 2, 3}, NewStatus: "shared"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(err.Error(), "document 2")

	after, err := s.engine.Snapshot(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(before, after)
	s.Len(s.history(1), 1)

	// document 3 was never initialized because its seed was rolled back too
	_, err = s.store.Stores().Snapshots.FindSnapshot(s.ctx, 3)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *EngineSuite) TestBulkSetStatusValidation() {
	_, err := s.engine.BulkSetStatus(s.ctx, BulkSetStatusRequest{NewStatus: "shared"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.engine.BulkSetStatus(s.ctx, BulkSetStatusRequest{DocumentIDs: []int64{1}})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.engine.BulkSetStatus(s.ctx, BulkSetStatusRequest{DocumentIDs: []int64{1}, NewStatus: "archived"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidStatus))
}

func (s *EngineSuite) TestBulkSetStatusLockConflictAbortsBatch() {
	engine := s.newEngine(conflictTx{store: s.store, busy: 3})

	_, err := engine.BulkSetStatus(s.ctx, BulkSetStatusRequest{DocumentIDs: []int64{1, 3}, NewStatus: "shared"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	_, err = s.store.Stores().Snapshots.FindSnapshot(s.ctx, 1)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *EngineSuite) TestTimelineMergesStreams() {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, base)
	_, err := s.engine.Snapshot(ctx, 1)
	s.Require().NoError(err)

	err = s.store.RunInTx(s.ctx, func(ctx context.Context, st ports.Stores) error {
		if err := st.Esign.AppendEsignEvent(ctx, &models.EsignEvent{
			DocumentID: 1, Provider: "mock", Event: "redirected", CreatedAt: base.Add(2 * time.Minute),
		}); err != nil {
			return err
		}
		return st.Otp.AppendOtpEvent(ctx, &models.OtpEvent{
			DocumentID: 1, Role: "seller", Event: models.OtpEventIssued, CreatedAt: base.Add(time.Minute),
		})
	})
	s.Require().NoError(err)

	_, err = s.engine.SetStatus(requestcontext.WithTime(s.ctx, base.Add(3*time.Minute)), SetStatusRequest{DocumentID: 1, NewStatus: "signed"})
	s.Require().NoError(err)

	entries, err := s.engine.Timeline(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	s.Equal([]string{"status_changed", "otp_issued", "esign_redirected", "status_changed"},
		[]string{entries[0].Event, entries[1].Event, entries[2].Event, entries[3].Event})
	s.Equal(models.SourceOtp, entries[1].Source)
}

func (s *EngineSuite) TestReadsHaveNoSideEffects() {
	events, err := s.engine.History(s.ctx, 1)
	s.Require().NoError(err)
	s.Empty(events)

	entries, err := s.engine.Timeline(s.ctx, 1)
	s.Require().NoError(err)
	s.Empty(entries)

	_, err = s.store.Stores().Snapshots.FindSnapshot(s.ctx, 1)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.engine.History(s.ctx, 999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.engine.Timeline(s.ctx, 999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestSetStatusTxComposesWithCallerUnitOfWork() {
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, st ports.Stores) error {
		res, err := s.engine.SetStatusTx(ctx, st, SetStatusRequest{DocumentID: 1, NewStatus: "shared"})
		if err != nil {
			return err
		}
		s.NotNil(res.Event)
		return sentinel.ErrConflict
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.Stores().Snapshots.FindSnapshot(s.ctx, 1)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// conflictTx reports the busy document's row lock as held on NOWAIT.
type conflictTx struct {
	store *memory.Store
	busy  int64
}

func (c conflictTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	return c.store.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		stores.Snapshots = busySnapshots{SnapshotStore: stores.Snapshots, busy: c.busy}
		return fn(ctx, stores)
	})
}

type busySnapshots struct {
	ports.SnapshotStore
	busy int64
}

func (b busySnapshots) LockSnapshot(ctx context.Context, documentID int64, mode ports.LockMode) (*models.Snapshot, error) {
	if documentID == b.busy && mode == ports.LockNoWait {
		return nil, sentinel.ErrConflict
	}
	return b.SnapshotStore.LockSnapshot(ctx, documentID, mode)
}
