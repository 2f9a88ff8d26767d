package verification

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"signflow/internal/lifecycle/models"
	"signflow/internal/lifecycle/ports/mocks"
	dErrors "signflow/pkg/domain-errors"
	"signflow/pkg/requestcontext"
)

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

func (s *ServiceSuite) startSigner() *SignerDescriptor {
	d, err := s.service.StartSigner(s.ctx, StartSignerRequest{
		DocumentID: 8, SignerName: "Ana Buyer", Role: "buyer", Channel: "sms", SentTo: "+34", Code: "424242",
	})
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) esignEvents(docID int64) []string {
	events, err := s.store.Stores().Esign.ListEsignEvents(s.ctx, docID)
	s.Require().NoError(err)
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	return names
}

func (s *ServiceSuite) TestSignerHappyPath() {
	d := s.startSigner()
	s.Equal(models.SignerOtpSent, d.Status)

	d, err := s.service.VerifySigner(s.at(time.Minute), d.SessionID, "424242")
	s.Require().NoError(err)
	s.Equal(models.SignerOtpVerified, d.Status)

	ctx := requestcontext.WithClientMetadata(s.at(2*time.Minute), "10.0.0.1", firefoxUA)
	d, err = s.service.RedirectSigner(ctx, d.SessionID)
	s.Require().NoError(err)
	s.Equal(models.SignerRedirected, d.Status)
	u, err := url.Parse(d.RedirectURL)
	s.Require().NoError(err)
	s.Equal(d.SessionID.String(), u.Query().Get("session"))
	s.Equal("8", u.Query().Get("document"))

	d, err = s.service.CompleteSigner(s.at(3*time.Minute), d.SessionID, "Ana Buyer")
	s.Require().NoError(err)
	s.Equal(models.SignerSigned, d.Status)

	s.Equal([]string{EsignOtpSent, EsignOtpVerified, EsignRedirected, EsignSigned}, s.esignEvents(8))

	events, err := s.store.Stores().Esign.ListEsignEvents(s.ctx, 8)
	s.Require().NoError(err)
	s.Equal("Firefox", events[2].Details["browser"])
	s.Equal("Ana Buyer", events[2].Actor)
}

func (s *ServiceSuite) TestSignerStepsOutOfOrder() {
	d := s.startSigner()

	_, err := s.service.RedirectSigner(s.ctx, d.SessionID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	_, err = s.service.CompleteSigner(s.ctx, d.SessionID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	s.Equal([]string{EsignOtpSent}, s.esignEvents(8))
}

func (s *ServiceSuite) TestSignerSharesAttemptDiscipline() {
	d := s.startSigner()
	for range 5 {
		_, err := s.service.VerifySigner(s.at(time.Minute), d.SessionID, "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}
	_, err := s.service.VerifySigner(s.at(time.Minute), d.SessionID, "424242")
	s.True(dErrors.HasCode(err, dErrors.CodeAttemptsExceeded))

	names := s.esignEvents(8)
	s.Len(names, 7)
	s.Equal(EsignOtpFailed, names[6])
}

func (s *ServiceSuite) TestSignerCodeIsTrimmed() {
	d := s.startSigner()

	d, err := s.service.VerifySigner(s.at(time.Minute), d.SessionID, " 424242 ")
	s.Require().NoError(err)
	s.Equal(models.SignerOtpVerified, d.Status)
	s.Equal([]string{EsignOtpSent, EsignOtpVerified}, s.esignEvents(8))
}

func (s *ServiceSuite) TestSignerCodeExpires() {
	d := s.startSigner()
	_, err := s.service.VerifySigner(s.at(time.Hour), d.SessionID, "424242")
	s.True(dErrors.HasCode(err, dErrors.CodeExpired))
}

func (s *ServiceSuite) TestSignerSessionLookup() {
	_, err := s.service.VerifySigner(s.ctx, uuid.New(), "424242")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	role := s.issue(7, "buyer", "123456")
	_, err = s.service.RedirectSigner(s.ctx, role.SessionID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "role sessions are not signer sessions")
}

func (s *ServiceSuite) TestProviderCallbackMovesSigner() {
	d := s.startSigner()
	_, err := s.service.VerifySigner(s.at(time.Minute), d.SessionID, "424242")
	s.Require().NoError(err)
	_, err = s.service.RedirectSigner(s.at(2*time.Minute), d.SessionID)
	s.Require().NoError(err)

	err = s.service.HandleProviderEvent(s.at(3*time.Minute), models.ProviderEvent{
		Provider: "DocuMock", EventID: "evt-1", SessionID: d.SessionID.String(), Event: "completed",
		Payload: models.Details{"envelope": "env-9"},
	})
	s.Require().NoError(err)

	session, err := s.store.Stores().Otp.FindSession(s.ctx, d.SessionID)
	s.Require().NoError(err)
	s.Equal(models.SignerSigned, session.SignerStatus)

	events, err := s.store.Stores().Esign.ListEsignEvents(s.ctx, 8)
	s.Require().NoError(err)
	last := events[len(events)-1]
	s.Equal("documock", last.Provider)
	s.Equal("completed", last.Event)
	s.Equal("env-9", last.Details["envelope"])
	s.Equal(string(models.SignerSigned), last.Status)
}

func (s *ServiceSuite) TestProviderCallbackOutOfOrderIsRecordedOnly() {
	d := s.startSigner()

	err := s.service.HandleProviderEvent(s.ctx, models.ProviderEvent{
		Provider: "mock", SessionID: d.SessionID.String(), Event: "signed",
	})
	s.Require().NoError(err)

	session, err := s.store.Stores().Otp.FindSession(s.ctx, d.SessionID)
	s.Require().NoError(err)
	s.Equal(models.SignerOtpSent, session.SignerStatus)
	s.Equal([]string{EsignOtpSent, "signed"}, s.esignEvents(8))
}

func (s *ServiceSuite) TestProviderCallbackDeduplicated() {
	ctrl := gomock.NewController(s.T())
	deduper := mocks.NewMockDeduper(ctrl)
	gomock.InOrder(
		deduper.EXPECT().Claim(gomock.Any(), "esign:mock:evt-1", 24*time.Hour).Return(true, nil),
		deduper.EXPECT().Claim(gomock.Any(), "esign:mock:evt-1", 24*time.Hour).Return(false, nil),
		deduper.EXPECT().Claim(gomock.Any(), "esign:mock:evt-2", 24*time.Hour).Return(false, errors.New("redis down")),
	)
	service := s.newService(&Config{BcryptCost: bcrypt.MinCost}, WithDeduper(deduper))

	for _, id := range []string{"evt-1", "evt-1", "evt-2"} {
		err := service.HandleProviderEvent(s.ctx, models.ProviderEvent{Provider: "mock", EventID: id, DocumentID: 8, Event: "viewed"})
		s.Require().NoError(err)
	}
	s.Equal([]string{"viewed", "viewed"}, s.esignEvents(8))
}

func (s *ServiceSuite) TestProviderCallbackValidation() {
	err := s.service.HandleProviderEvent(s.ctx, models.ProviderEvent{Event: "signed", DocumentID: 8})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.service.HandleProviderEvent(s.ctx, models.ProviderEvent{Provider: "mock", Event: "signed"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.service.HandleProviderEvent(s.ctx, models.ProviderEvent{Provider: "mock", Event: "signed", SessionID: "nope"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = s.service.HandleProviderEvent(context.Background(), models.ProviderEvent{Provider: "mock", Event: "signed", SessionID: uuid.NewString()})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
