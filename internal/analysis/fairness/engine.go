// internal/analysis/fairness/engine.go

// Package fairness audits the oracle for disparate treatment across
// protected attributes: demographic parity, disparate impact, equal
// opportunity, and counterfactual flips.
package fairness

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"credit-audit/internal/analysis"
	"credit-audit/internal/analysis/accuracy"
	"credit-audit/internal/common/config"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/common/metrics"
	"credit-audit/internal/models"
	"credit-audit/internal/normalize"
	"credit-audit/internal/perturb"
	"credit-audit/internal/progress"
)

const moduleName = "fairness"

// Violation-ratio severity bands for counterfactual fairness.
const (
	severityHigh    = "HIGH"
	severityLow     = "LOW"
	severityMinimal = "MINIMAL"
)

type Engine struct {
	scorer   analysis.Scorer
	cfg      config.FairnessConfig
	positive models.Label
	log      logger.Logger
	tracker  *progress.Tracker
}

func New(scorer analysis.Scorer, cfg config.FairnessConfig, log logger.Logger, tracker *progress.Tracker) *Engine {
	return &Engine{
		scorer:   scorer,
		cfg:      cfg,
		positive: positiveLabel(cfg.PositiveClass),
		log:      log,
		tracker:  tracker,
	}
}

// positiveLabel resolves the configured positive class, falling back to
// good when the value is empty or not a known label.
func positiveLabel(class string) models.Label {
	switch l := models.Label(strings.ToLower(strings.TrimSpace(class))); l {
	case models.LabelGood, models.LabelAverage, models.LabelPoor:
		return l
	}
	return models.LabelGood
}

// Run audits every configured protected attribute against the baseline
// response set, then probes counterfactual fairness with fresh oracle calls
// on a seeded subset of profiles.
func (e *Engine) Run(ctx context.Context, profiles []models.Profile, responses []analysis.Response) map[string]interface{} {
	start := time.Now()
	e.log.Info("Starting fairness analysis", map[string]interface{}{
		"protected_attributes": e.cfg.ProtectedAttributes,
		"responses":            len(responses),
	})

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	subset := perturb.SampleProfiles(profiles, e.cfg.SampleSize, rng)

	results := make(map[string]interface{}, len(e.cfg.ProtectedAttributes))
	for i, attr := range e.cfg.ProtectedAttributes {
		e.tracker.Update(float64(i)/float64(len(e.cfg.ProtectedAttributes)),
			"analyzing fairness for "+attr)

		groups := e.demographicParity(responses, attr)
		domain := perturb.ObservedDomain(profiles, attr)

		results[attr] = map[string]interface{}{
			"demographic_parity":      groupRates(groups),
			"disparate_impact_ratio":  disparateImpactRatio(groups),
			"equal_opportunity":       e.equalOpportunity(responses, attr),
			"counterfactual_fairness": e.counterfactualFairness(ctx, subset, attr, domain),
		}
	}

	e.tracker.Update(1, "fairness analysis complete")
	metrics.AnalysisDuration.WithLabelValues(moduleName).Observe(time.Since(start).Seconds())
	metrics.AnalysisRuns.WithLabelValues(moduleName, "success").Inc()
	e.log.Info("Fairness analysis complete", nil)
	return results
}

type groupStats struct {
	total    int
	positive int
}

// positiveDecision reports whether a result counts as the configured
// positive outcome, falling back to the score thresholds when the response
// carried a score but no classification.
func (e *Engine) positiveDecision(result *models.OracleResult) (bool, bool) {
	decision := normalize.Normalize(result)
	if decision == nil {
		return false, false
	}
	if decision.Label == models.LabelUnknown {
		if result.Success.Score != nil {
			return normalize.LabelFromScore(*result.Success.Score) == e.positive, true
		}
		// no label and no score: nothing to count
		return false, false
	}
	return decision.Label == e.positive, true
}

// demographicParity groups decided responses by the attribute's value and
// counts positive outcomes per group. Responses with no usable decision are
// skipped.
func (e *Engine) demographicParity(responses []analysis.Response, attr string) map[string]*groupStats {
	groups := make(map[string]*groupStats)
	for _, r := range responses {
		value, ok := r.Input.Text(attr)
		if !ok || value == "" {
			continue
		}
		positive, decided := e.positiveDecision(r.Result)
		if !decided {
			continue
		}
		g, exists := groups[value]
		if !exists {
			g = &groupStats{}
			groups[value] = g
		}
		g.total++
		if positive {
			g.positive++
		}
	}
	return groups
}

func groupRates(groups map[string]*groupStats) map[string]interface{} {
	out := make(map[string]interface{}, len(groups))
	for value, g := range groups {
		rate := 0.0
		if g.total > 0 {
			rate = float64(g.positive) / float64(g.total)
		}
		out[value] = map[string]interface{}{
			"total":         g.total,
			"positive":      g.positive,
			"positive_rate": rate,
		}
	}
	return out
}

// disparateImpactRatio is min group rate over max group rate, 0.0 when no
// group has members or every rate is zero.
func disparateImpactRatio(groups map[string]*groupStats) float64 {
	var rates []float64
	for _, g := range groups {
		if g.total > 0 {
			rates = append(rates, float64(g.positive)/float64(g.total))
		}
	}
	if len(rates) == 0 {
		return 0.0
	}
	max := analysis.Max(rates)
	if max == 0 {
		return 0.0
	}
	return analysis.Min(rates) / max
}

// equalOpportunity reports the true positive rate per group over
// ground-truth positives. The label comes from the configured input field
// when present, falling back to the rule-based ground truth.
func (e *Engine) equalOpportunity(responses []analysis.Response, attr string) map[string]interface{} {
	type eoStats struct {
		actualPositive int
		truePositive   int
	}
	groups := make(map[string]*eoStats)

	for _, r := range responses {
		value, ok := r.Input.Text(attr)
		if !ok || value == "" {
			continue
		}
		positive, decided := e.positiveDecision(r.Result)
		if !decided {
			continue
		}
		label, hasLabel := r.Input.Bool("actual_approved")
		if !hasLabel {
			label = accuracy.Approved(r.Input)
		}
		if !label {
			continue
		}

		g, exists := groups[value]
		if !exists {
			g = &eoStats{}
			groups[value] = g
		}
		g.actualPositive++
		if positive {
			g.truePositive++
		}
	}

	out := make(map[string]interface{}, len(groups))
	for value, g := range groups {
		tpr := 0.0
		if g.actualPositive > 0 {
			tpr = float64(g.truePositive) / float64(g.actualPositive)
		}
		out[value] = map[string]interface{}{
			"actual_positive": g.actualPositive,
			"true_positive":   g.truePositive,
			"tpr":             tpr,
		}
	}
	return out
}

// counterfactualFairness flips the attribute to every alternate observed
// value on a fixed subset of profiles and counts decision changes.
func (e *Engine) counterfactualFairness(ctx context.Context, subset []models.Profile, attr string, domain []string) map[string]interface{} {
	if len(domain) < 2 {
		return map[string]interface{}{
			"violation_ratio": nil,
			"note":            "insufficient_domain",
		}
	}

	totalRows := 0
	totalTests := 0
	violations := 0

	for _, profile := range subset {
		original := normalize.Normalize(e.scorer.Score(ctx, moduleName, profile))
		if original == nil {
			continue
		}

		samples := perturb.Counterfactuals(profile, attr, domain)
		if len(samples) == 0 {
			continue
		}
		totalRows++

		for _, sample := range samples {
			flipped := normalize.Normalize(e.scorer.Score(ctx, moduleName, sample.Perturbed))
			totalTests++
			comparison := models.Compare(sample, original, flipped, normalize.RobustnessTolerance)
			if comparison.Changed {
				violations++
				e.log.Debug("Counterfactual violation", map[string]interface{}{
					"attribute": attr,
					"flip":      sample.Perturbed[attr],
				})
			}
		}
	}

	ratio := 0.0
	if totalTests > 0 {
		ratio = float64(violations) / float64(totalTests)
	}

	severity := severityMinimal
	switch {
	case ratio > 0.05:
		severity = severityHigh
	case ratio > 0.01:
		severity = severityLow
	}

	return map[string]interface{}{
		"total_rows":      totalRows,
		"total_tests":     totalTests,
		"violations":      violations,
		"violation_ratio": ratio,
		"severity":        severity,
	}
}
