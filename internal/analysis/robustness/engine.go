// internal/analysis/robustness/engine.go

// Package robustness stress-tests the oracle with corrupted inputs: each
// sampled base profile is perturbed by every adversarial family and the
// original and perturbed decisions are compared.
package robustness

import (
	"context"
	"math"
	"math/rand"
	"time"

	"credit-audit/internal/analysis"
	"credit-audit/internal/common/config"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/common/metrics"
	"credit-audit/internal/models"
	"credit-audit/internal/normalize"
	"credit-audit/internal/perturb"
	"credit-audit/internal/progress"
)

const moduleName = "robustness"

// failureCaseConfidenceDrop flags a pair as a failure case even when labels
// agree, if confidence moved this much.
const failureCaseConfidenceDrop = 0.3

type Engine struct {
	scorer  analysis.Scorer
	cfg     config.RobustnessConfig
	schema  *models.Schema
	log     logger.Logger
	tracker *progress.Tracker
}

func New(scorer analysis.Scorer, cfg config.RobustnessConfig, schema *models.Schema, log logger.Logger, tracker *progress.Tracker) *Engine {
	return &Engine{scorer: scorer, cfg: cfg, schema: schema, log: log, tracker: tracker}
}

type familyStats struct {
	total      int
	consistent int
	confDiffs  []float64
}

// Run samples base profiles, applies every corruption family to each, and
// scores both sides of every pair. A pair is robust when the labels match
// or the oracle rejected the corrupted input outright. Base profiles whose
// original call failed are excluded from the denominator and surfaced in
// the error rate.
func (e *Engine) Run(ctx context.Context, profiles []models.Profile) map[string]interface{} {
	start := time.Now()
	e.log.Info("Starting robustness analysis", map[string]interface{}{
		"profiles":     len(profiles),
		"num_examples": e.cfg.NumExamples,
	})

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	bases := perturb.SampleProfiles(profiles, e.cfg.NumExamples, rng)
	fieldStats := perturb.CollectFieldStats(profiles, e.schema)

	perFamily := make(map[models.Family]*familyStats)
	var allConfDiffs []float64
	var failureCases []map[string]interface{}

	validPairs := 0
	robustPairs := 0
	originalFailures := 0

	for i, base := range bases {
		e.tracker.Update(float64(i)/float64(len(bases)), "testing adversarial examples")

		originalResult := e.scorer.Score(ctx, moduleName, base)
		if originalResult.Failed() {
			originalFailures++
			continue
		}
		original := normalize.Normalize(originalResult)

		for _, sample := range perturb.AdversarialSet(base, e.schema, fieldStats, rng) {
			perturbedResult := e.scorer.Score(ctx, moduleName, sample.Perturbed)
			perturbed := normalize.Normalize(perturbedResult)

			fs, exists := perFamily[sample.Family]
			if !exists {
				fs = &familyStats{}
				perFamily[sample.Family] = fs
			}
			fs.total++
			validPairs++

			// A rejected corrupted input is robust behavior, not a flip.
			robust := perturbedResult.Failed() ||
				(original != nil && perturbed != nil && original.Label == perturbed.Label)
			if robust {
				robustPairs++
				fs.consistent++
			}

			var confDiff *float64
			if original != nil && perturbed != nil &&
				original.Confidence != nil && perturbed.Confidence != nil {
				d := math.Abs(*original.Confidence - *perturbed.Confidence)
				confDiff = &d
				fs.confDiffs = append(fs.confDiffs, d)
				allConfDiffs = append(allConfDiffs, d)
			}

			if !robust || (confDiff != nil && *confDiff > failureCaseConfidenceDrop) {
				failureCases = append(failureCases, failureCase(sample, original, perturbed, originalResult, perturbedResult))
			}
		}
	}

	results := e.aggregate(validPairs, robustPairs, originalFailures, len(bases), perFamily, allConfDiffs, failureCases)

	e.tracker.Update(1, "robustness analysis complete")
	metrics.AnalysisDuration.WithLabelValues(moduleName).Observe(time.Since(start).Seconds())
	metrics.AnalysisRuns.WithLabelValues(moduleName, "success").Inc()
	e.log.Info("Robustness analysis complete", map[string]interface{}{
		"robustness_score": results["robustness_score"],
	})
	return results
}

func (e *Engine) aggregate(validPairs, robustPairs, originalFailures, totalBases int,
	perFamily map[models.Family]*familyStats, allConfDiffs []float64,
	failureCases []map[string]interface{}) map[string]interface{} {

	rate := 0.0
	if validPairs > 0 {
		rate = float64(robustPairs) / float64(validPairs)
	}
	errorRate := 0.0
	if totalBases > 0 {
		errorRate = float64(originalFailures) / float64(totalBases)
	}

	perturbationAnalysis := make(map[string]interface{}, len(perFamily))
	for family, fs := range perFamily {
		familyRate := 0.0
		if fs.total > 0 {
			familyRate = float64(fs.consistent) / float64(fs.total)
		}
		perturbationAnalysis[string(family)] = map[string]interface{}{
			"total_examples":          fs.total,
			"consistency_rate":        familyRate,
			"average_confidence_drop": analysis.Mean(fs.confDiffs),
			"max_confidence_drop":     analysis.Max(fs.confDiffs),
		}
	}

	meanConfDiff := analysis.Mean(allConfDiffs)
	confidenceScore := analysis.Clamp01(1.0 - meanConfDiff)

	if failureCases == nil {
		failureCases = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"total_examples": validPairs,
		"decision_consistency": map[string]interface{}{
			"rate":               rate,
			"consistent_count":   robustPairs,
			"inconsistent_count": validPairs - robustPairs,
		},
		"confidence_stability": map[string]interface{}{
			"mean_difference":   meanConfDiff,
			"median_difference": analysis.Median(allConfDiffs),
			"max_difference":    analysis.Max(allConfDiffs),
			"std_difference":    analysis.StdDev(allConfDiffs),
		},
		"perturbation_analysis": perturbationAnalysis,
		"error_rate":            errorRate,
		"original_failures":     originalFailures,
		"failure_cases":         failureCases,
		"robustness_score":      0.7*rate + 0.3*confidenceScore,
	}
}

func failureCase(sample models.PerturbedSample, original, perturbed *models.Decision,
	originalResult, perturbedResult *models.OracleResult) map[string]interface{} {

	out := map[string]interface{}{
		"perturbation_type":  string(sample.Family),
		"original_response":  truncate(normalize.ResponseText(originalResult), 200),
		"perturbed_response": truncate(normalize.ResponseText(perturbedResult), 200),
	}
	if original != nil {
		out["original_decision"] = string(original.Label)
		if original.Confidence != nil {
			out["original_confidence"] = *original.Confidence
		}
	}
	if perturbed != nil {
		out["perturbed_decision"] = string(perturbed.Label)
		if perturbed.Confidence != nil {
			out["perturbed_confidence"] = *perturbed.Confidence
		}
	}
	return out
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
