// internal/analysis/consistency/engine.go

// Package consistency checks whether the oracle is deterministic: the same
// profile is scored repeatedly and the responses are compared at the text,
// decision, and confidence level.
package consistency

import (
	"context"
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

const moduleName = "consistency"

// Overall score weights.
const (
	decisionWeight   = 0.5
	confidenceWeight = 0.3
	textWeight       = 0.2
)

// dissimilarityThreshold marks an inconsistent case as text-dissimilar.
const dissimilarityThreshold = 0.8

type Engine struct {
	scorer  analysis.Scorer
	cfg     config.ConsistencyConfig
	log     logger.Logger
	tracker *progress.Tracker

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

func New(scorer analysis.Scorer, cfg config.ConsistencyConfig, log logger.Logger, tracker *progress.Tracker) *Engine {
	return &Engine{scorer: scorer, cfg: cfg, log: log, tracker: tracker, sleep: time.Sleep}
}

type inputRun struct {
	hash        string
	input       models.Profile
	texts       []string
	decisions   []*models.Decision
	confidences []float64
}

// Run scores a seeded sample of profiles num_repeats times each, in order,
// with the configured delay between repeats, then measures how stable the
// responses were. Zero inputs score as perfectly consistent.
func (e *Engine) Run(ctx context.Context, profiles []models.Profile) map[string]interface{} {
	start := time.Now()
	e.log.Info("Starting consistency analysis", map[string]interface{}{
		"profiles":    len(profiles),
		"num_repeats": e.cfg.NumRepeats,
		"sample_size": e.cfg.SampleSize,
	})

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	sample := perturb.SampleProfiles(profiles, e.cfg.SampleSize, rng)
	delay := time.Duration(e.cfg.DelaySeconds * float64(time.Second))

	runs := make([]inputRun, 0, len(sample))
	for i, profile := range sample {
		run := inputRun{hash: profile.Hash(), input: profile}
		for repeat := 0; repeat < e.cfg.NumRepeats; repeat++ {
			if repeat > 0 && delay > 0 {
				e.sleep(delay)
			}
			result := e.scorer.Score(ctx, moduleName, profile)
			run.texts = append(run.texts, normalize.NormalizeText(normalize.ResponseText(result)))
			decision := normalize.Normalize(result)
			run.decisions = append(run.decisions, decision)
			if decision != nil && decision.Confidence != nil {
				run.confidences = append(run.confidences, *decision.Confidence)
			}
		}
		runs = append(runs, run)
		e.tracker.Update(float64(i+1)/float64(len(sample)), "testing response consistency")
	}

	results := e.analyze(runs)
	metrics.AnalysisDuration.WithLabelValues(moduleName).Observe(time.Since(start).Seconds())
	metrics.AnalysisRuns.WithLabelValues(moduleName, "success").Inc()
	e.log.Info("Consistency analysis complete", map[string]interface{}{
		"overall_consistency_score": results["overall_consistency_score"],
	})
	return results
}

func (e *Engine) analyze(runs []inputRun) map[string]interface{} {
	totalInputs := len(runs)
	if totalInputs == 0 {
		// vacuous success
		return map[string]interface{}{
			"total_inputs":              0,
			"total_responses":           0,
			"perfect_consistency":       1.0,
			"decision_consistency":      1.0,
			"confidence_consistency":    1.0,
			"overall_consistency_score": 1.0,
			"inconsistent_cases":        []map[string]interface{}{},
		}
	}

	perfectCount := 0
	decisionCount := 0
	confidenceCount := 0
	totalResponses := 0
	var allSimilarities []float64
	var perInput []map[string]interface{}
	var inconsistent []map[string]interface{}

	for _, run := range runs {
		totalResponses += len(run.texts)
		if len(run.texts) < 2 {
			continue
		}

		perfect := allEqual(run.texts)
		if perfect {
			perfectCount++
		}

		decisionConsistent := labelsAgree(run.decisions)
		if decisionConsistent {
			decisionCount++
		}

		confidenceConsistent := false
		if len(run.confidences) > 0 {
			spread := analysis.Max(run.confidences) - analysis.Min(run.confidences)
			confidenceConsistent = spread <= normalize.ConsistencyTolerance
			if confidenceConsistent {
				confidenceCount++
			}
		}

		var similarities []float64
		for i := 0; i < len(run.texts); i++ {
			for j := i + 1; j < len(run.texts); j++ {
				s := normalize.JaccardSimilarity(run.texts[i], run.texts[j])
				similarities = append(similarities, s)
				allSimilarities = append(allSimilarities, s)
			}
		}
		avgSimilarity := 1.0
		if len(similarities) > 0 {
			avgSimilarity = analysis.Mean(similarities)
		}

		perInput = append(perInput, map[string]interface{}{
			"input_hash":            run.hash,
			"num_responses":         len(run.texts),
			"perfect_consistent":    perfect,
			"decision_consistent":   decisionConsistent,
			"confidence_consistent": confidenceConsistent,
			"avg_text_similarity":   avgSimilarity,
		})

		if !perfect {
			var issues []string
			if !decisionConsistent {
				issues = append(issues, "decision_inconsistency")
			}
			if !confidenceConsistent && len(run.confidences) > 0 {
				issues = append(issues, "confidence_inconsistency")
			}
			if avgSimilarity < dissimilarityThreshold {
				issues = append(issues, "text_dissimilarity")
			}
			inconsistent = append(inconsistent, map[string]interface{}{
				"input_hash": run.hash,
				"input_data": run.input,
				"responses":  run.texts,
				"issues":     issues,
			})
		}
	}

	perfectRate := float64(perfectCount) / float64(totalInputs)
	decisionRate := float64(decisionCount) / float64(totalInputs)
	confidenceRate := float64(confidenceCount) / float64(totalInputs)
	avgTextSimilarity := 1.0
	if len(allSimilarities) > 0 {
		avgTextSimilarity = analysis.Mean(allSimilarities)
	}

	if inconsistent == nil {
		inconsistent = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"total_inputs":           totalInputs,
		"total_responses":        totalResponses,
		"perfect_consistency":    perfectRate,
		"decision_consistency":   decisionRate,
		"confidence_consistency": confidenceRate,
		"overall_consistency_score": decisionRate*decisionWeight +
			confidenceRate*confidenceWeight +
			avgTextSimilarity*textWeight,
		"consistency_by_input": perInput,
		"inconsistent_cases":   inconsistent,
		"statistics": map[string]interface{}{
			"mean_text_similarity": avgTextSimilarity,
			"std_text_similarity":  analysis.StdDev(allSimilarities),
			"min_text_similarity":  minOrDefault(allSimilarities, 1.0),
			"max_text_similarity":  maxOrDefault(allSimilarities, 1.0),
		},
	}
}

func allEqual(texts []string) bool {
	for _, t := range texts[1:] {
		if t != texts[0] {
			return false
		}
	}
	return true
}

// labelsAgree reports whether every non-nil decision carries the same label.
func labelsAgree(decisions []*models.Decision) bool {
	var first *models.Label
	for _, d := range decisions {
		if d == nil {
			continue
		}
		label := d.Label
		if first == nil {
			first = &label
			continue
		}
		if label != *first {
			return false
		}
	}
	return true
}

func minOrDefault(values []float64, def float64) float64 {
	if len(values) == 0 {
		return def
	}
	return analysis.Min(values)
}

func maxOrDefault(values []float64, def float64) float64 {
	if len(values) == 0 {
		return def
	}
	return analysis.Max(values)
}
