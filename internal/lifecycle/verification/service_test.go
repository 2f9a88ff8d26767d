package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"signflow/internal/lifecycle/documents"
	"signflow/internal/lifecycle/metrics"
	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports/mocks"
	"signflow/internal/lifecycle/status"
	"signflow/internal/lifecycle/store/memory"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/platform/audit"
	auditmemory "signflow/pkg/platform/audit/store/memory"
	"signflow/pkg/requestcontext"
)

var testCatalog = []models.CatalogEntry{
	{Code: "created", SequenceNumber: 1},
	{Code: "shared", SequenceNumber: 2},
	{Code: "verified", SequenceNumber: 3},
	{Code: "signed", SequenceNumber: 4, IsFinal: true},
}

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	store   *memory.Store
	sink    *auditmemory.InMemoryStore
	engine  *status.Engine
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.sink = auditmemory.NewInMemoryStore()
	s.store = memory.New(testCatalog, memory.WithAuditSink(s.sink))
	docs := documents.NewInMemoryRepository(
		models.Document{ID: 7, OwnerID: "owner-7"},
		models.Document{ID: 8, OwnerID: "owner-8"},
	)
	s.engine = status.NewEngine(s.store, s.store.Stores(), docs, status.NewCatalog(s.store.Stores().Catalog))
	s.service = s.newService(&Config{BcryptCost: bcrypt.MinCost})
}

func (s *ServiceSuite) newService(cfg *Config, opts ...Option) *Service {
	opts = append([]Option{WithMetrics(metrics.NewWithRegistry(prometheus.NewRegistry()))}, opts...)
	return NewService(s.store, s.store.Stores(), s.engine, cfg, opts...)
}

func (s *ServiceSuite) at(d time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(d))
}

func (s *ServiceSuite) issue(docID int64, role, code string) *SessionDescriptor {
	d, err := s.service.CreateSession(s.ctx, CreateSessionRequest{
		DocumentID: docID, Role: role, Channel: "sms", SentTo: "+34600000000", Code: code,
	})
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) verify(docID int64, role, code string) (*VerifyResult, error) {
	return s.service.Verify(s.at(time.Minute), VerifyRequest{DocumentID: docID, Role: role, Code: code})
}

func (s *ServiceSuite) roleSession(docID int64, role string) *models.OtpSession {
	var out *models.OtpSession
	sessions, err := s.store.Stores().Otp.ListRoleSessions(s.ctx, docID)
	s.Require().NoError(err)
	for _, session := range sessions {
		if session.Role == role {
			out = session
		}
	}
	s.Require().NotNil(out)
	return out
}

func (s *ServiceSuite) TestBuyerVerificationScenario() {
	d := s.issue(7, "buyer", "123456")
	s.Equal(s.now.Add(300*time.Second), d.ExpiresAt)
	s.Empty(d.Code)

	_, err := s.verify(7, "buyer", "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	s.Equal(1, s.roleSession(7, "buyer").Attempts)

	res, err := s.verify(7, "buyer", "123456")
	s.Require().NoError(err)
	s.True(res.Verified)
	s.Equal(s.now.Add(time.Minute), res.VerifiedAt)

	flags, err := s.service.Flags(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(map[string]bool{"buyer": true, "seller": false}, flags)

	both, err := s.service.BothVerified(s.ctx, 7)
	s.Require().NoError(err)
	s.False(both)
}

func (s *ServiceSuite) TestHashIsNeverPlaintext() {
	s.issue(7, "seller", "123456")
	session := s.roleSession(7, "seller")
	s.NotEqual("123456", session.CodeHash)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(session.CodeHash), []byte("123456")))
}

func (s *ServiceSuite) TestAttemptCapBeatsCorrectCode() {
	s.issue(7, "buyer", "123456")
	for range 5 {
		_, err := s.verify(7, "buyer", "999999")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}
	s.Equal(5, s.roleSession(7, "buyer").Attempts)

	_, err := s.verify(7, "buyer", "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeAttemptsExceeded))
	s.Equal(5, s.roleSession(7, "buyer").Attempts)
}

func (s *ServiceSuite) TestVerifyIgnoresSurroundingWhitespace() {
	s.issue(7, "buyer", " 123456 ")

	res, err := s.verify(7, "buyer", "  123456\n")
	s.Require().NoError(err)
	s.True(res.Verified)
	s.Equal(0, s.roleSession(7, "buyer").Attempts)

	_, err = s.verify(7, "buyer", "   ")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestConcurrentWrongCodesAreAllCounted() {
	s.issue(7, "buyer", "123456")

	const attempts = 8
	errs := make(chan error, attempts)
	for range attempts {
		go func() {
			_, err := s.verify(7, "buyer", "000000")
			errs <- err
		}()
	}
	invalid := 0
	for range attempts {
		if dErrors.HasCode(<-errs, dErrors.CodeInvalidCode) {
			invalid++
		}
	}
	s.Equal(5, invalid)
	s.Equal(5, s.roleSession(7, "buyer").Attempts)

	events, err := s.store.Stores().Otp.ListOtpEvents(s.ctx, 7)
	s.Require().NoError(err)
	failures := 0
	for _, e := range events {
		if e.Event == models.OtpEventInvalidCode || e.Event == models.OtpEventAttemptsExceeded {
			failures++
		}
	}
	s.Equal(attempts, failures)
}

func (s *ServiceSuite) TestExpiryBeatsCorrectCode() {
	s.issue(7, "buyer", "123456")

	_, err := s.service.Verify(s.at(301*time.Second), VerifyRequest{DocumentID: 7, Role: "buyer", Code: "123456"})
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	s.Nil(s.roleSession(7, "buyer").VerifiedAt)
}

func (s *ServiceSuite) TestResendInvalidatesOldCode() {
	first := s.issue(7, "buyer", "111111")
	_, err := s.verify(7, "buyer", "000000")
	s.Require().Error(err)

	second := s.issue(7, "buyer", "222222")
	s.Equal(first.SessionID, second.SessionID)
	s.Equal(0, s.roleSession(7, "buyer").Attempts)

	_, err = s.verify(7, "buyer", "111111")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	_, err = s.verify(7, "buyer", "222222")
	s.NoError(err)
}

func (s *ServiceSuite) TestResendClearsVerification() {
	s.issue(7, "buyer", "123456")
	_, err := s.verify(7, "buyer", "123456")
	s.Require().NoError(err)

	s.issue(7, "buyer", "654321")
	flags, err := s.service.Flags(s.ctx, 7)
	s.Require().NoError(err)
	s.False(flags["buyer"])
}

func (s *ServiceSuite) TestReverifyKeepsOriginalTimestamp() {
	s.issue(7, "buyer", "123456")
	first, err := s.verify(7, "buyer", "123456")
	s.Require().NoError(err)

	again, err := s.service.Verify(s.at(2*time.Minute), VerifyRequest{DocumentID: 7, Role: "buyer", Code: "123456"})
	s.Require().NoError(err)
	s.Equal(first.VerifiedAt, again.VerifiedAt)
}

func (s *ServiceSuite) TestVerifyUnknownSession() {
	_, err := s.verify(7, "seller", "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCreateSessionValidation() {
	cases := []CreateSessionRequest{
		{DocumentID: 7, Channel: "sms", SentTo: "x"},
		{DocumentID: 7, Role: "buyer", SentTo: "x"},
		{DocumentID: 7, Role: "buyer", Channel: "sms"},
	}
	for _, req := range cases {
		_, err := s.service.CreateSession(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}

	_, err := s.service.CreateSession(s.ctx, CreateSessionRequest{DocumentID: 99, Role: "buyer", Channel: "sms", SentTo: "x"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestGeneratedCodeIsEchoedWhenEnabled() {
	service := s.newService(&Config{BcryptCost: bcrypt.MinCost, EchoCode: true})
	d, err := service.CreateSession(s.ctx, CreateSessionRequest{DocumentID: 7, Role: "Seller", Channel: "SMS", SentTo: "+34"})
	s.Require().NoError(err)
	s.Equal("seller", d.Role)
	s.Equal("sms", d.Channel)
	s.Len(d.Code, 6)

	_, err = service.Verify(s.at(time.Minute), VerifyRequest{DocumentID: 7, Role: "seller", Code: d.Code})
	s.NoError(err)
}

func (s *ServiceSuite) TestAllRolesVerifiedAdvancesStatus() {
	service := s.newService(&Config{BcryptCost: bcrypt.MinCost, AdvanceStatus: "verified"})
	for _, role := range []string{"seller", "buyer"} {
		_, err := service.CreateSession(s.ctx, CreateSessionRequest{DocumentID: 7, Role: role, Channel: "sms", SentTo: "x", Code: "123456"})
		s.Require().NoError(err)
	}

	_, err := service.Verify(s.at(time.Minute), VerifyRequest{DocumentID: 7, Role: "seller", Code: "123456"})
	s.Require().NoError(err)
	snap, err := s.engine.Snapshot(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal("created", snap.CurrentStatus)

	_, err = service.Verify(s.at(time.Minute), VerifyRequest{DocumentID: 7, Role: "buyer", Code: "123456"})
	s.Require().NoError(err)
	snap, err = s.engine.Snapshot(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal("verified", snap.CurrentStatus)

	st, err := service.Status(s.ctx, 7)
	s.Require().NoError(err)
	s.True(st.BothVerified)
}

func (s *ServiceSuite) TestVerificationWritesOtpEventsAndAudit() {
	s.issue(7, "buyer", "123456")
	_, _ = s.verify(7, "buyer", "000000")
	_, err := s.verify(7, "buyer", "123456")
	s.Require().NoError(err)

	events, err := s.store.Stores().Otp.ListOtpEvents(s.ctx, 7)
	s.Require().NoError(err)
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	s.Equal([]string{models.OtpEventIssued, models.OtpEventInvalidCode, models.OtpEventVerified}, names)

	auditEvents, err := s.sink.ListByDocument(s.ctx, 7)
	s.Require().NoError(err)
	var failed int
	for _, e := range auditEvents {
		if e.Action == string(audit.EventOtpVerificationFailed) {
			failed++
			s.Equal(audit.CategorySecurity, e.Category)
		}
	}
	s.Equal(1, failed)
}

func (s *ServiceSuite) TestDeliveryOutcomeIsRecorded() {
	ctrl := gomock.NewController(s.T())
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().
		Send(gomock.Any(), "sms", "+34600000000", "123456", 300*time.Second).
		Return(models.DeliveryResult{GatewayRef: "gw-1", Status: "queued"}, nil)
	sender.EXPECT().
		Send(gomock.Any(), "sms", "+34600000000", "654321", 300*time.Second).
		Return(models.DeliveryResult{}, errors.New("gateway down"))
	service := s.newService(&Config{BcryptCost: bcrypt.MinCost}, WithSender(sender))

	for _, code := range []string{"123456", "654321"} {
		_, err := service.CreateSession(s.ctx, CreateSessionRequest{
			DocumentID: 7, Role: "buyer", Channel: "sms", SentTo: "+34600000000", Code: code,
		})
		s.Require().NoError(err)
	}

	events, err := s.store.Stores().Otp.ListOtpEvents(s.ctx, 7)
	s.Require().NoError(err)
	s.Require().Len(events, 4)
	s.Equal(models.OtpEventDelivered, events[1].Event)
	s.Equal("gw-1", events[1].Details["gateway_ref"])
	s.Equal(models.OtpEventDeliveryFailed, events[3].Event)
}

func (s *ServiceSuite) TestTimelineIncludesOtpEvents() {
	s.issue(7, "buyer", "123456")
	_, err := s.verify(7, "buyer", "123456")
	s.Require().NoError(err)

	entries, err := s.engine.Timeline(s.ctx, 7)
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.Equal("status_changed", entries[0].Event)
	s.Equal("otp_issued", entries[1].Event)
	s.Equal("otp_verified", entries[2].Event)
}
