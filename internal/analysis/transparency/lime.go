// internal/analysis/transparency/lime.go
package transparency

import (
	"context"
	"math/rand"

	"credit-audit/internal/analysis"
	"credit-audit/internal/models"
	"credit-audit/internal/normalize"
	"credit-audit/internal/perturb"
)

// Explanation is the surrogate's view of one decision. Unavailable is set
// when the local fit was degenerate; every score in that case is zeroed.
type Explanation struct {
	Surrogate   *Surrogate
	Unavailable bool
	Reason      string
}

// ExplainLocally fits a surrogate around the profile: n neighborhood
// variants are scored by the oracle and a weighted linear model is fit to
// the scores. A failed oracle call contributes the neutral midpoint score
// so a flaky API degrades the fit instead of shrinking the sample.
func ExplainLocally(ctx context.Context, scorer analysis.Scorer, module string,
	profile models.Profile, schema *models.Schema, n int, strength float64, rng *rand.Rand) *Explanation {

	samples := perturb.Neighborhood(profile, schema, n, strength, rng)

	features := make([][]float64, 0, len(samples))
	targets := make([]float64, 0, len(samples))
	weights := make([]float64, 0, len(samples))

	for _, sample := range samples {
		result := scorer.Score(ctx, module, sample.Perturbed)
		score := normalize.ScoreMidpoint
		if result.Ok() && result.Success.Score != nil {
			score = *result.Success.Score
		}
		features = append(features, perturb.Vectorize(sample.Perturbed, schema))
		targets = append(targets, score)
		weights = append(weights, sample.Weight)
	}

	surrogate, err := FitSurrogate(features, targets, weights, schema.FeatureNames())
	if err != nil {
		return &Explanation{Unavailable: true, Reason: err.Error()}
	}
	return &Explanation{Surrogate: surrogate}
}

// ToMap renders the explanation for the result contract.
func (e *Explanation) ToMap() map[string]interface{} {
	if e.Unavailable {
		return map[string]interface{}{
			"unavailable":            true,
			"reason":                 e.Reason,
			"local_model_r2":         0.0,
			"feature_importance":     map[string]interface{}{},
			"samples_generated":      0,
			"mean_similarity_weight": 0.0,
		}
	}

	importance := make(map[string]interface{}, len(e.Surrogate.Coefficients))
	var positive, negative []map[string]interface{}
	for _, c := range e.Surrogate.Coefficients {
		importance[c.Feature] = c.Value
		entry := map[string]interface{}{"feature": c.Feature, "coefficient": c.Value}
		if c.Value > 0 {
			positive = append(positive, entry)
		} else if c.Value < 0 {
			negative = append(negative, entry)
		}
	}

	return map[string]interface{}{
		"unavailable":            false,
		"local_model_r2":         e.Surrogate.R2,
		"feature_importance":     importance,
		"top_positive_features":  positive,
		"top_negative_features":  negative,
		"samples_generated":      e.Surrogate.SampleCount,
		"mean_similarity_weight": e.Surrogate.MeanWeight,
	}
}
