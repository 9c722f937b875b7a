// internal/analysis/accuracy/engine.go
package accuracy

import (
	"math"
	"strings"
	"time"

	"credit-audit/internal/analysis"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/common/metrics"
	"credit-audit/internal/progress"
)

var classes = []string{ClassPoor, ClassAverage, ClassGood}

// Engine runs the accuracy analysis over an already-collected response set.
// It makes no oracle calls of its own.
type Engine struct {
	log     logger.Logger
	tracker *progress.Tracker
}

func New(log logger.Logger, tracker *progress.Tracker) *Engine {
	return &Engine{log: log, tracker: tracker}
}

// Run extracts every usable (prediction, ground truth) pair and reports
// regression metrics, classification agreement, and score distributions.
func (e *Engine) Run(responses []analysis.Response) map[string]interface{} {
	start := time.Now()
	e.log.Info("Starting accuracy analysis", map[string]interface{}{
		"responses": len(responses),
	})
	e.tracker.Update(0.1, "extracting predictions")

	var predScores, trueScores []float64
	var predClasses, trueClasses []string

	for _, r := range responses {
		if !r.Result.Ok() {
			continue
		}
		if r.Result.Success.Score == nil || r.Result.Success.Classification == "" {
			continue
		}
		trueScore, trueClass := GroundTruth(r.Input)

		predScores = append(predScores, *r.Result.Success.Score)
		predClasses = append(predClasses, canonicalClass(r.Result.Success.Classification))
		trueScores = append(trueScores, trueScore)
		trueClasses = append(trueClasses, trueClass)
	}

	if len(predScores) == 0 {
		e.log.Warn("No usable predictions for accuracy analysis", nil)
		metrics.AnalysisRuns.WithLabelValues("accuracy", "error").Inc()
		return map[string]interface{}{"error": "no usable predictions"}
	}

	e.tracker.Update(0.5, "calculating metrics")
	results := map[string]interface{}{
		"summary": map[string]interface{}{
			"total_predictions":     len(predScores),
			"total_responses":       len(responses),
			"valid_prediction_rate": float64(len(predScores)) / float64(len(responses)),
		},
		"regression_metrics":     regressionMetrics(predScores, trueScores),
		"classification_metrics": classificationMetrics(predClasses, trueClasses),
		"distribution_analysis":  distributionAnalysis(predScores, trueScores),
		"ground_truth_method":    "rule_based_synthetic",
	}

	e.tracker.Update(1, "accuracy analysis complete")
	metrics.AnalysisDuration.WithLabelValues("accuracy").Observe(time.Since(start).Seconds())
	metrics.AnalysisRuns.WithLabelValues("accuracy", "success").Inc()
	e.log.Info("Accuracy analysis complete", map[string]interface{}{
		"predictions": len(predScores),
	})
	return results
}

// canonicalClass maps the oracle's classification spelling onto the
// ground-truth vocabulary.
func canonicalClass(classification string) string {
	switch strings.ToLower(strings.TrimSpace(classification)) {
	case "good", "approved", "approve":
		return ClassGood
	case "poor", "bad", "denied", "deny", "reject":
		return ClassPoor
	case "average", "moderate":
		return ClassAverage
	}
	return classification
}

func regressionMetrics(pred, truth []float64) map[string]interface{} {
	var absSum, sqSum float64
	for i := range pred {
		d := pred[i] - truth[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}
	n := float64(len(pred))
	mae := absSum / n
	mse := sqSum / n

	return map[string]interface{}{
		"mae":         mae,
		"mse":         mse,
		"rmse":        math.Sqrt(mse),
		"correlation": analysis.Correlation(pred, truth),
	}
}

func classificationMetrics(pred, truth []string) map[string]interface{} {
	correct := 0
	for i := range pred {
		if pred[i] == truth[i] {
			correct++
		}
	}

	classMetrics := make(map[string]interface{}, len(classes))
	var macroPrecision, macroRecall, macroF1 float64
	for _, class := range classes {
		var tp, fp, fn, support int
		for i := range pred {
			switch {
			case pred[i] == class && truth[i] == class:
				tp++
			case pred[i] == class:
				fp++
			case truth[i] == class:
				fn++
			}
			if truth[i] == class {
				support++
			}
		}

		precision, recall, f1 := 0.0, 0.0, 0.0
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		macroPrecision += precision
		macroRecall += recall
		macroF1 += f1

		classMetrics[class] = map[string]interface{}{
			"precision": precision,
			"recall":    recall,
			"f1_score":  f1,
			"support":   support,
		}
	}

	nClasses := float64(len(classes))
	return map[string]interface{}{
		"accuracy": float64(correct) / float64(len(pred)),
		"macro_avg": map[string]interface{}{
			"precision": macroPrecision / nClasses,
			"recall":    macroRecall / nClasses,
			"f1_score":  macroF1 / nClasses,
		},
		"class_metrics":    classMetrics,
		"confusion_matrix": confusionMatrix(pred, truth),
	}
}

func confusionMatrix(pred, truth []string) map[string]interface{} {
	matrix := make(map[string]interface{}, len(classes))
	for _, trueClass := range classes {
		row := make(map[string]interface{}, len(classes))
		for _, predClass := range classes {
			count := 0
			for i := range pred {
				if truth[i] == trueClass && pred[i] == predClass {
					count++
				}
			}
			row[predClass] = count
		}
		matrix[trueClass] = row
	}
	return matrix
}

func distributionAnalysis(pred, truth []float64) map[string]interface{} {
	ranges := []struct {
		low, high float64
		name      string
	}{
		{0, 30, "0-30"},
		{30, 50, "30-50"},
		{50, 70, "50-70"},
		{70, 100, "70-100"},
	}

	rangeAnalysis := make(map[string]interface{}, len(ranges))
	for _, r := range ranges {
		predIn, trueIn := 0, 0
		for i := range pred {
			if pred[i] >= r.low && pred[i] < r.high {
				predIn++
			}
			if truth[i] >= r.low && truth[i] < r.high {
				trueIn++
			}
		}
		rangeAnalysis[r.name] = map[string]interface{}{
			"predicted_count": predIn,
			"true_count":      trueIn,
		}
	}

	return map[string]interface{}{
		"predicted_stats": scoreStats(pred),
		"true_stats":      scoreStats(truth),
		"range_analysis":  rangeAnalysis,
	}
}

func scoreStats(values []float64) map[string]interface{} {
	return map[string]interface{}{
		"mean":   analysis.Mean(values),
		"median": analysis.Median(values),
		"std":    analysis.StdDev(values),
		"min":    analysis.Min(values),
		"max":    analysis.Max(values),
	}
}
