// internal/analysis/analysis.go

// Package analysis holds the plumbing shared by the audit engines: the
// scorer interface they call the oracle through, the collected-response
// shape they exchange, and small numeric helpers.
package analysis

import (
	"context"

	"credit-audit/internal/models"
	"credit-audit/internal/progress"
)

// Scorer is the slice of the oracle gateway the engines consume.
type Scorer interface {
	Score(ctx context.Context, module string, profile models.Profile) *models.OracleResult
}

// Response pairs one input profile with the oracle's answer. A baseline
// response set is collected once per run and shared by the fairness and
// accuracy engines.
type Response struct {
	Input  models.Profile
	Result *models.OracleResult
}

// CollectResponses scores every profile once, in order. Failures are kept:
// engines decide per metric how a failed call counts.
func CollectResponses(ctx context.Context, scorer Scorer, module string, profiles []models.Profile, tracker *progress.Tracker) []Response {
	responses := make([]Response, 0, len(profiles))
	for i, p := range profiles {
		responses = append(responses, Response{Input: p, Result: scorer.Score(ctx, module, p)})
		tracker.Update(float64(i+1)/float64(len(profiles)), "collecting oracle responses")
	}
	return responses
}
