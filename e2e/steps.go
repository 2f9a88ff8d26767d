package e2e

import (
	"github.com/cucumber/godog"

	"signflow/e2e/steps/common"
	"signflow/e2e/steps/lifecycle"
	"signflow/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	lifecycle.RegisterSteps(ctx, tc)
	verification.RegisterSteps(ctx, tc)
}
