package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context the verification steps use.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	StatusCode() int
	ResponseField(path string) (any, error)
	Remember(key, value string)
	Recall(key string) (string, error)
}

const signerSessionKey = "signer_session"

// RegisterSteps registers OTP and mock e-sign steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^a "([^"]*)" code "([^"]*)" is issued for document (\d+)$`, steps.issueCode)
	ctx.Step(`^the "([^"]*)" enters code "([^"]*)" for document (\d+)$`, steps.enterCode)
	ctx.Step(`^signer "([^"]*)" is invited to document (\d+) with code "([^"]*)"$`, steps.inviteSigner)
	ctx.Step(`^the signer enters code "([^"]*)"$`, steps.signerEntersCode)
	ctx.Step(`^the signer is redirected to the provider$`, steps.redirectSigner)
	ctx.Step(`^the provider reports event "([^"]*)" with id "([^"]*)"$`, steps.providerReports)
	ctx.Step(`^the timeline of document (\d+) eventually shows e-sign event "([^"]*)"$`, steps.timelineEventuallyShows)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) issueCode(_ context.Context, role, code string, id int64) error {
	err := s.tc.POST(fmt.Sprintf("/documents/%d/otp", id), map[string]any{
		"role":    role,
		"channel": "sms",
		"sent_to": "+15550100",
		"code":    code,
	})
	if err != nil {
		return err
	}
	return s.expect(201, "issue code")
}

func (s *verificationSteps) enterCode(_ context.Context, role, code string, id int64) error {
	return s.tc.POST(fmt.Sprintf("/documents/%d/otp/verify", id), map[string]any{
		"role": role,
		"code": code,
	})
}

func (s *verificationSteps) inviteSigner(_ context.Context, name string, id int64, code string) error {
	err := s.tc.POST(fmt.Sprintf("/documents/%d/signers", id), map[string]any{
		"signer_name": name,
		"channel":     "email",
		"sent_to":     "signer@example.com",
		"code":        code,
	})
	if err != nil {
		return err
	}
	if err := s.expect(201, "invite signer"); err != nil {
		return err
	}
	sessionID, err := s.tc.ResponseField("session_id")
	if err != nil {
		return err
	}
	s.tc.Remember(signerSessionKey, fmt.Sprint(sessionID))
	return nil
}

func (s *verificationSteps) signerEntersCode(_ context.Context, code string) error {
	sessionID, err := s.tc.Recall(signerSessionKey)
	if err != nil {
		return err
	}
	return s.tc.POST("/signer-sessions/"+sessionID+"/verify", map[string]any{"code": code})
}

func (s *verificationSteps) redirectSigner(context.Context) error {
	sessionID, err := s.tc.Recall(signerSessionKey)
	if err != nil {
		return err
	}
	if err := s.tc.POST("/signer-sessions/"+sessionID+"/redirect", nil); err != nil {
		return err
	}
	return s.expect(200, "redirect signer")
}

func (s *verificationSteps) providerReports(_ context.Context, event, eventID string) error {
	sessionID, err := s.tc.Recall(signerSessionKey)
	if err != nil {
		return err
	}
	err = s.tc.POST("/webhooks/esign/mock", map[string]any{
		"event_id":   eventID,
		"session_id": sessionID,
		"event":      event,
		"actor":      "mock-provider",
	})
	if err != nil {
		return err
	}
	return s.expect(202, "provider callback")
}

// timelineEventuallyShows polls because provider callbacks are processed
// after the 202.
func (s *verificationSteps) timelineEventuallyShows(_ context.Context, id int64, event string) error {
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := s.tc.GET(fmt.Sprintf("/documents/%d/timeline", id)); err != nil {
			return err
		}
		entries, err := s.tc.ResponseField("")
		if err != nil {
			return err
		}
		list, _ := entries.([]any)
		for _, raw := range list {
			entry, ok := raw.(map[string]any)
			if ok && entry["source"] == "esign" && entry["event"] == event {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no esign %q entry on document %d timeline", event, id)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (s *verificationSteps) expect(code int, what string) error {
	if got := s.tc.StatusCode(); got != code {
		return fmt.Errorf("%s: expected status %d, got %d", what, code, got)
	}
	return nil
}
