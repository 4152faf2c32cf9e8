package specialist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/irops/disruption"
	"github.com/c360studio/irops/model"
	"github.com/c360studio/irops/prompts"
	"github.com/c360studio/irops/reasoning"
)

// providerAdapter carries the shared provider-call mechanics for the
// built-in adapters. A nil client puts the adapter in heuristic-only
// mode: Consult answers with the heuristic directly and the result
// counts as full quality.
type providerAdapter struct {
	role   Specialist
	client Completer
}

// completeJSON makes one reasoning call for the role and decodes the
// fenced-JSON response into out. Parse and validation failures come back
// classified as malformed provider output so the runner never retries
// them.
func (a *providerAdapter) completeJSON(ctx context.Context, input Input, out any) error {
	meta := reasoning.CallMetaFromContext(ctx)
	meta.Stage = "specialist." + string(a.role)
	ctx = reasoning.WithCallMeta(ctx, meta)

	temperature := 0.3
	resp, err := a.client.Complete(ctx, reasoning.Request{
		Capability: string(model.CapabilityForSpecialist(string(a.role))),
		Messages: []reasoning.Message{
			{Role: "system", Content: prompts.SystemPromptForSpecialist(string(a.role))},
			{Role: "user", Content: prompts.PromptForSpecialist(string(a.role), input.Context)},
		},
		Temperature: &temperature,
		MaxTokens:   2048,
	})
	if err != nil {
		return err
	}

	jsonContent := reasoning.ExtractJSON(resp.Content)
	if jsonContent == "" {
		return disruption.Errorf(disruption.KindProviderMalformedOutput, "no JSON found in response")
	}
	if err := json.Unmarshal([]byte(jsonContent), out); err != nil {
		return disruption.NewError(disruption.KindProviderMalformedOutput,
			fmt.Errorf("parse JSON: %w (content: %s)", err, jsonContent[:min(200, len(jsonContent))]))
	}
	return nil
}
