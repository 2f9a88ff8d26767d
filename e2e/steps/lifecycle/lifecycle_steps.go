package lifecycle

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context the lifecycle steps use.
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	StatusCode() int
	ResponseField(path string) (any, error)
}

// RegisterSteps registers document status steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &lifecycleSteps{tc: tc}

	ctx.Step(`^document (\d+) is moved to "([^"]*)" by "([^"]*)"$`, steps.moveDocument)
	ctx.Step(`^document (\d+) is asked to move to "([^"]*)"$`, steps.requestMove)
	ctx.Step(`^document (\d+) should be "([^"]*)" at (\d+) percent$`, steps.documentShouldBeAt)
	ctx.Step(`^the history of document (\d+) should have (\d+) events$`, steps.historyShouldHave)
}

type lifecycleSteps struct {
	tc TestContext
}

func (s *lifecycleSteps) moveDocument(_ context.Context, id int64, status, actor string) error {
	err := s.tc.POST(fmt.Sprintf("/documents/%d/status", id), map[string]any{
		"new_status": status,
		"changed_by": actor,
		"reason":     "e2e",
	})
	if err != nil {
		return err
	}
	if code := s.tc.StatusCode(); code != 200 {
		return fmt.Errorf("set status returned %d", code)
	}
	return nil
}

func (s *lifecycleSteps) requestMove(_ context.Context, id int64, status string) error {
	return s.tc.POST(fmt.Sprintf("/documents/%d/status", id), map[string]any{"new_status": status})
}

func (s *lifecycleSteps) documentShouldBeAt(_ context.Context, id int64, status string, pct int) error {
	if err := s.tc.GET(fmt.Sprintf("/documents/%d/snapshot", id)); err != nil {
		return err
	}
	current, err := s.tc.ResponseField("current_status")
	if err != nil {
		return err
	}
	progress, err := s.tc.ResponseField("progress_pct")
	if err != nil {
		return err
	}
	if current != status {
		return fmt.Errorf("expected status %q, got %v", status, current)
	}
	if n, ok := progress.(float64); !ok || int(n) != pct {
		return fmt.Errorf("expected progress %d, got %v", pct, progress)
	}
	return nil
}

func (s *lifecycleSteps) historyShouldHave(_ context.Context, id int64, want int) error {
	if err := s.tc.GET(fmt.Sprintf("/documents/%d/history", id)); err != nil {
		return err
	}
	events, err := s.tc.ResponseField("")
	if err != nil {
		return err
	}
	list, ok := events.([]any)
	if !ok || len(list) != want {
		return fmt.Errorf("expected %d events, got %v", want, events)
	}
	return nil
}
