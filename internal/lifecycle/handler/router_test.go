package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"signflow/internal/lifecycle/adapters/dedupe"
	"signflow/internal/lifecycle/documents"
	"signflow/internal/lifecycle/handler"
	lifecyclemetrics "signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/share"
	"signflow/internal/lifecycle/status"
	"signflow/internal/lifecycle/store/memory"
	"signflow/internal/lifecycle/verification"
	auditmemory "signflow/pkg/platform/audit/store/memory"
	"signflow/pkg/testutil"
)

var routerCatalog = []models.CatalogEntry{
	{Code: "created", SequenceNumber: 1},
	{Code: "generated", SequenceNumber: 2},
	{Code: "shared", SequenceNumber: 3},
	{Code: "verified", SequenceNumber: 4},
	{Code: "signed", SequenceNumber: 5, IsFinal: true},
}

type stack struct {
	router  chi.Router
	handler *handler.Handler
	sink    *auditmemory.InMemoryStore
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := lifecyclemetrics.NewWithRegistry(prometheus.NewRegistry())
	sink := auditmemory.NewInMemoryStore()
	store := memory.New(routerCatalog, memory.WithAuditSink(sink))
	docs := documents.NewInMemoryRepository(
		models.Document{ID: 42, OwnerID: "owner-42", StorageKey: "docs/42.pdf"},
		models.Document{ID: 43, OwnerID: "owner-43"},
	)
	engine := status.NewEngine(store, store.Stores(), docs,
		status.NewCatalog(store.Stores().Catalog, status.WithCatalogMetrics(m)),
		status.WithLogger(logger), status.WithMetrics(m))
	shareSvc := share.NewService(store, store.Stores(), engine, docs, share.WithLogger(logger), share.WithMetrics(m))
	verifySvc := verification.NewService(store, store.Stores(), engine, &verification.Config{
		EchoCode:      true,
		BcryptCost:    bcrypt.MinCost,
		AdvanceStatus: "verified",
	}, verification.WithLogger(logger), verification.WithMetrics(m), verification.WithDeduper(dedupe.NewMemoryDeduper()))

	h := handler.New(engine, shareSvc, verifySvc, handler.WithLogger(logger), handler.WithWebhookTimeout(time.Second))
	r := chi.NewRouter()
	h.Register(r)
	return &stack{router: r, handler: h, sink: sink}
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	s := newStack(t)

	testutil.Given(t, "a generated document", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/documents/42/snapshot", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		snap := testutil.UnmarshalResponse[models.Snapshot](t, rr)
		assert.Equal(t, "created", snap.CurrentStatus)
		assert.Equal(t, "owner-42", snap.ChangedBy)
		assert.Equal(t, 20, snap.ProgressPct)

		rr = testutil.DoRequest(s.router, testutil.WithActor(
			testutil.NewJSONRequest(t, http.MethodPost, "/documents/42/status", map[string]any{"new_status": "generated"}), "agent-1"))
		testutil.AssertStatus(t, rr, http.StatusOK)
	})

	testutil.When(t, "it is shared and both parties verify", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/documents/42/share-batches", map[string]any{
			"channels":   []string{"email"},
			"recipients": []map[string]any{{"type": "email", "value": "ana@example.com", "role": "Seller"}},
		}))
		testutil.AssertStatus(t, rr, http.StatusCreated)

		for _, role := range []string{"seller", "buyer"} {
			rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/documents/42/otp", map[string]any{
				"role": role, "channel": "sms", "sent_to": "+15550100",
			}))
			testutil.AssertStatus(t, rr, http.StatusCreated)
			desc := testutil.UnmarshalResponse[verification.SessionDescriptor](t, rr)
			require.Len(t, desc.Code, 6)

			rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/documents/42/otp/verify", map[string]any{
				"role": role, "code": desc.Code,
			}))
			testutil.AssertStatus(t, rr, http.StatusOK)
		}
	})

	testutil.Then(t, "the document is verified with a full trail", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/documents/42/verification", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		st := testutil.UnmarshalResponse[verification.Status](t, rr)
		assert.True(t, st.BothVerified)

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/documents/42/snapshot", nil))
		snap := testutil.UnmarshalResponse[models.Snapshot](t, rr)
		assert.Equal(t, "verified", snap.CurrentStatus)
		assert.Equal(t, []string{"created", "generated", "shared", "verified"}, snap.CompletedStatuses.Codes())
		assert.Equal(t, 80, snap.ProgressPct)

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/documents/42/history", nil))
		history := *testutil.UnmarshalResponse[[]*models.StatusEvent](t, rr)
		require.Len(t, history, 4)
		assert.Equal(t, "agent-1", history[1].ChangedBy)

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/documents/42/timeline", nil))
		timeline := *testutil.UnmarshalResponse[[]models.TimelineEntry](t, rr)
		assert.Greater(t, len(timeline), len(history))
	})
}

func TestSignerFlowOverHTTP(t *testing.T) {
	s := newStack(t)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/documents/43/signers", map[string]any{
		"signer_name": "Ana Pop", "channel": "sms", "sent_to": "+15550100",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	desc := testutil.UnmarshalResponse[verification.SignerDescriptor](t, rr)
	base := "/documents/43"
	session := "/signer-sessions/" + desc.SessionID.String()

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, session+"/redirect", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_state")

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, session+"/verify", map[string]any{"code": desc.Code}))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, session+"/redirect", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	redirect := testutil.UnmarshalResponse[map[string]string](t, rr)
	assert.Contains(t, (*redirect)["redirect_url"], desc.SessionID.String())

	event := map[string]any{"event_id": "evt-1", "session_id": desc.SessionID.String(), "document_id": 43, "event": "signed"}
	for range 2 {
		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/esign/mock", event))
		testutil.AssertStatus(t, rr, http.StatusAccepted)
		require.NoError(t, s.handler.Wait(context.Background()))
	}

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, session+"/complete", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invalid_state")

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, base+"/timeline", nil))
	timeline := *testutil.UnmarshalResponse[[]models.TimelineEntry](t, rr)
	var signed int
	for _, e := range timeline {
		if e.Source == models.SourceEsign && e.Event == verification.EsignSigned {
			signed++
		}
	}
	assert.Equal(t, 1, signed)
}

func TestUnknownDocumentOverHTTP(t *testing.T) {
	s := newStack(t)
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodGet, "/documents/999/snapshot", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
