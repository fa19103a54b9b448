package bdd

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/forgeos/graph-service/internal/testutil/cucumber"
)

func init() {
	cucumber.StepModules = append(cucumber.StepModules, func(ctx *godog.ScenarioContext, s *cucumber.TestScenario) {
		ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
			if s.Suite.DB == nil {
				return ctx, nil
			}
			return ctx, s.Suite.DB.ClearAll(ctx)
		})

		// Registers a conversation and stores its UUID in a scenario
		// variable, so features do not repeat the registration dance.
		ctx.Step(`^a registered conversation "([^"]*)" in project "([^"]*)" stored as \${([^}]*)}$`,
			func(sourceID, project, varName string) error {
				body := fmt.Sprintf(`{"source_id": %q, "project_name": %q, "name": "conversation %s"}`, sourceID, project, sourceID)
				if err := s.SendHTTPRequestWithJSONBody("POST", "/v1/conversations", &godog.DocString{Content: body}); err != nil {
					return err
				}
				uuid, err := s.Resolve("response.conversation.uuid")
				if err != nil {
					return err
				}
				s.Variables[varName] = uuid
				return nil
			})
	})
}
