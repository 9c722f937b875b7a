// internal/analysis/transparency/engine.go
package transparency

import (
	"context"
	"fmt"
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

const moduleName = "transparency"

// repeatExplanationCalls is how many explanations are compared for the
// consistency dimension.
const repeatExplanationCalls = 2

type Engine struct {
	scorer  analysis.Scorer
	cfg     config.TransparencyConfig
	schema  *models.Schema
	log     logger.Logger
	tracker *progress.Tracker
}

func New(scorer analysis.Scorer, cfg config.TransparencyConfig, schema *models.Schema, log logger.Logger, tracker *progress.Tracker) *Engine {
	return &Engine{scorer: scorer, cfg: cfg, schema: schema, log: log, tracker: tracker}
}

// Run samples profiles, fits a local surrogate around each, and scores the
// oracle's explanation on the eight quality dimensions.
func (e *Engine) Run(ctx context.Context, profiles []models.Profile) map[string]interface{} {
	start := time.Now()
	e.log.Info("Starting transparency analysis", map[string]interface{}{
		"profiles":          len(profiles),
		"sample_size":       e.cfg.SampleSize,
		"surrogate_samples": e.cfg.SurrogateSamples,
	})

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	sample := perturb.SampleProfiles(profiles, e.cfg.SampleSize, rng)

	var records []map[string]interface{}
	for i, profile := range sample {
		e.tracker.Update(float64(i)/float64(len(sample)), "analyzing explanation quality")
		records = append(records, e.analyzeProfile(ctx, profile, rng))
	}

	summary := e.summarize(records)
	e.tracker.Update(1, "transparency analysis complete")
	metrics.AnalysisDuration.WithLabelValues(moduleName).Observe(time.Since(start).Seconds())
	metrics.AnalysisRuns.WithLabelValues(moduleName, "success").Inc()
	e.log.Info("Transparency analysis complete", map[string]interface{}{
		"analyzed": len(records),
	})

	if records == nil {
		records = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"summary":          summary,
		"detailed_results": records,
		"total_responses":  len(records),
	}
}

func (e *Engine) analyzeProfile(ctx context.Context, profile models.Profile, rng *rand.Rand) map[string]interface{} {
	baseResult := e.scorer.Score(ctx, moduleName, profile)
	explanationText := explanationOf(baseResult)

	explanation := ExplainLocally(ctx, e.scorer, moduleName, profile, e.schema,
		e.cfg.SurrogateSamples, e.cfg.PerturbationStrength, rng)

	faithfulness := analyzeFaithfulness(explanationText, profile, e.schema)
	alignment := analyzeAlignment(explanationText, explanation)
	specificity := analyzeSpecificity(explanationText)
	completeness := analyzeCompleteness(explanationText, explanation)
	consistency := e.explanationConsistency(ctx, profile, explanationText)
	counterfactual := e.counterfactualSensitivity(ctx, profile, explanationText)
	compliance := analyzeCompliance(explanationText)
	readability := analyzeReadability(explanationText)

	compliant, _ := compliance["compliant"].(bool)
	quality := computeQualityScore(map[string]float64{
		"faithfulness":   scoreOf(faithfulness, "faithfulness_score"),
		"lime_alignment": scoreOf(alignment, "alignment_score"),
		"specificity":    scoreOf(specificity, "normalized_score"),
		"completeness":   scoreOf(completeness, "completeness_score"),
		"consistency":    scoreOf(consistency, "consistency_score"),
		"counterfactual": scoreOf(counterfactual, "sensitivity_score"),
		"readability":    scoreOf(readability, "readability_score"),
	}, compliant)

	return map[string]interface{}{
		"profile":          profile,
		"explanation_text": explanationText,
		"lime_results":     explanation.ToMap(),
		"analysis_results": map[string]interface{}{
			"faithfulness":   faithfulness,
			"lime_alignment": alignment,
			"specificity":    specificity,
			"completeness":   completeness,
			"consistency":    consistency,
			"counterfactual": counterfactual,
			"compliance":     compliance,
			"readability":    readability,
		},
		"quality_score":    quality.Overall,
		"quality_category": quality.Category,
		"is_compliant":     quality.Compliant,
		"quality_details": map[string]interface{}{
			"overall_score":           quality.Overall,
			"category":                quality.Category,
			"dimension_scores":        quality.DimensionScores,
			"is_compliant":            quality.Compliant,
			"compliance_gate_applied": quality.GateApplied,
		},
	}
}

// explanationConsistency re-requests the explanation and compares it with
// the baseline.
func (e *Engine) explanationConsistency(ctx context.Context, profile models.Profile, baseline string) map[string]interface{} {
	explanations := []string{baseline}
	for i := 1; i < repeatExplanationCalls; i++ {
		explanations = append(explanations, explanationOf(e.scorer.Score(ctx, moduleName, profile)))
	}
	return analyzeExplanationConsistency(explanations)
}

// counterfactualSensitivity nudges key features (income up 50%, age plus 10
// capped at 80, employment flipped) and checks whether the explanation's
// feature mentions follow.
func (e *Engine) counterfactualSensitivity(ctx context.Context, profile models.Profile, baseline string) map[string]interface{} {
	baselineFeatures := featureSet(baseline)

	sensitiveChanges := 0
	totalTests := 0

	if income, ok := profile.Number("income"); ok {
		modified := profile.Clone()
		modified["income"] = income * 1.5
		if e.mentionsChanged(ctx, modified, baselineFeatures) {
			sensitiveChanges++
		}
		totalTests++
	}
	if age, ok := profile.Number("age"); ok {
		modified := profile.Clone()
		modified["age"] = math.Min(80, age+10)
		if e.mentionsChanged(ctx, modified, baselineFeatures) {
			sensitiveChanges++
		}
		totalTests++
	}
	if status, ok := profile.Text("employment_status"); ok {
		modified := profile.Clone()
		if status == "employed" {
			modified["employment_status"] = "unemployed"
		} else {
			modified["employment_status"] = "employed"
		}
		if e.mentionsChanged(ctx, modified, baselineFeatures) {
			sensitiveChanges++
		}
		totalTests++
	}

	score := 0.0
	if totalTests > 0 {
		score = float64(sensitiveChanges) / float64(totalTests)
	}
	return map[string]interface{}{
		"sensitivity_score": score,
		"sensitive_changes": sensitiveChanges,
		"total_tests":       totalTests,
	}
}

func (e *Engine) mentionsChanged(ctx context.Context, modified models.Profile, baseline map[string]bool) bool {
	text := explanationOf(e.scorer.Score(ctx, moduleName, modified))
	changed := featureSet(text)
	if len(changed) != len(baseline) {
		return true
	}
	for f := range changed {
		if !baseline[f] {
			return true
		}
	}
	return false
}

func featureSet(text string) map[string]bool {
	set := make(map[string]bool)
	for f := range extractMentionedFeatures(text) {
		set[f] = true
	}
	return set
}

// explanationOf pulls the explanation text from a result, falling back to
// the rendered response so failures still produce comparable text.
func explanationOf(result *models.OracleResult) string {
	if result.Ok() && result.Success.Explanation != "" {
		return result.Success.Explanation
	}
	return normalize.ResponseText(result)
}

func (e *Engine) summarize(records []map[string]interface{}) map[string]interface{} {
	if len(records) == 0 {
		return map[string]interface{}{"total_analyzed": 0}
	}

	var scores []float64
	var r2s []float64
	compliantCount := 0
	categoryCounts := map[string]int{"excellent": 0, "good": 0, "fair": 0, "poor": 0}
	dimensionValues := make(map[string][]float64)

	for _, r := range records {
		score, _ := r["quality_score"].(float64)
		scores = append(scores, score)
		if compliant, _ := r["is_compliant"].(bool); compliant {
			compliantCount++
		}
		if category, _ := r["quality_category"].(string); category != "" {
			categoryCounts[category]++
		}
		if details, ok := r["quality_details"].(map[string]interface{}); ok {
			if dims, ok := details["dimension_scores"].(map[string]float64); ok {
				for dim, v := range dims {
					dimensionValues[dim] = append(dimensionValues[dim], v)
				}
			}
		}
		if lime, ok := r["lime_results"].(map[string]interface{}); ok {
			if unavailable, _ := lime["unavailable"].(bool); !unavailable {
				if r2, ok := lime["local_model_r2"].(float64); ok {
					r2s = append(r2s, r2)
				}
			}
		}
	}

	dimensionAnalysis := make(map[string]interface{}, len(dimensionValues))
	for dim, values := range dimensionValues {
		dimensionAnalysis[dim] = map[string]interface{}{
			"average": analysis.Mean(values),
			"std":     analysis.StdDev(values),
			"min":     analysis.Min(values),
			"max":     analysis.Max(values),
		}
	}

	summary := map[string]interface{}{
		"total_analyzed":        len(records),
		"average_quality_score": analysis.Mean(scores),
		"median_quality_score":  analysis.Median(scores),
		"std_quality_score":     analysis.StdDev(scores),
		"min_quality_score":     analysis.Min(scores),
		"max_quality_score":     analysis.Max(scores),
		"compliance_rate":       float64(compliantCount) / float64(len(records)),
		"total_compliant":       compliantCount,
		"total_non_compliant":   len(records) - compliantCount,
		"category_distribution": categoryCounts,
		"dimension_analysis":    dimensionAnalysis,
	}
	if len(r2s) > 0 {
		summary["lime_quality"] = map[string]interface{}{
			"average_r2": analysis.Mean(r2s),
			"median_r2":  analysis.Median(r2s),
			"std_r2":     analysis.StdDev(r2s),
		}
	}
	summary["recommendations"] = recommendations(summary, dimensionValues)
	return summary
}

func recommendations(summary map[string]interface{}, dimensionValues map[string][]float64) []string {
	var recs []string

	avg, _ := summary["average_quality_score"].(float64)
	if avg < 70 {
		recs = append(recs, "Overall transparency quality is poor - significant improvements needed")
	} else if avg < 80 {
		recs = append(recs, "Transparency quality is fair - moderate improvements recommended")
	}

	if rate, _ := summary["compliance_rate"].(float64); rate < 1.0 {
		nonCompliant, _ := summary["total_non_compliant"].(int)
		recs = append(recs, fmt.Sprintf("Compliance issues detected in %d explanations", nonCompliant))
	}

	dimensionAdvice := map[string]string{
		"faithfulness":   "Explanations often lack grounding in actual input values",
		"lime_alignment": "Explanations poorly aligned with feature importance",
		"specificity":    "Explanations are too vague - need more specific details",
		"completeness":   "Explanations miss important factors identified by the surrogate",
		"consistency":    "Explanations lack consistency across repeated calls",
	}
	for dim, advice := range dimensionAdvice {
		values := dimensionValues[dim]
		if len(values) > 0 && analysis.Mean(values) < 0.6 {
			recs = append(recs, advice)
		}
	}

	if recs == nil {
		recs = []string{}
	}
	return recs
}
