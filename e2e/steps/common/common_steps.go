package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the scenario context the generic steps use.
type TestContext interface {
	GET(path string) error
	StatusCode() int
	ResponseField(path string) (any, error)
}

// RegisterSteps registers request and assertion steps shared by all features.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.fieldShouldBeNumber)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response should list (\d+) items$`, steps.shouldListItems)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) get(_ context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.StatusCode(); got != want {
		return fmt.Errorf("expected status %d, got %d", want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(_ context.Context, path, want string) error {
	v, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s to equal %q, got %q", path, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeNumber(_ context.Context, path string, want int) error {
	v, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok || int(n) != want {
		return fmt.Errorf("expected %s to be %d, got %v", path, want, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(_ context.Context, path, want string) error {
	v, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s to be %s, got %v", path, want, v)
	}
	return nil
}

func (s *commonSteps) shouldListItems(_ context.Context, want int) error {
	v, err := s.tc.ResponseField("")
	if err != nil {
		return err
	}
	list, ok := v.([]any)
	if !ok || len(list) != want {
		return fmt.Errorf("expected a list of %d items, got %v", want, v)
	}
	return nil
}
