// internal/normalize/normalize.go

// Package normalize converts heterogeneous oracle outputs into canonical
// Decision values. Every downstream comparison — fairness, robustness,
// consistency, transparency — goes through this package, so all functions
// here are pure.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"credit-audit/internal/models"
)

const (
	// ScoreMidpoint is the neutral point of the 0-100 scoring scale.
	ScoreMidpoint = 50.0

	// GoodScoreThreshold and PoorScoreThreshold refine an "average"
	// classification when a score is present. The 60-70 gap is intentional
	// and preserved from the scoring API's observed behavior.
	GoodScoreThreshold = 70.0
	PoorScoreThreshold = 60.0

	// RobustnessTolerance and ConsistencyTolerance are the confidence
	// deltas at which a pair of decisions counts as changed.
	RobustnessTolerance  = 0.10
	ConsistencyTolerance = 0.05

	// reasonPreviewLen caps explanation text in rendered response strings so
	// text comparison is not dominated by verbose rationales.
	reasonPreviewLen = 100
)

var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	scorePattern   = regexp.MustCompile(`score:(\d+(?:\.\d+)?)`)
)

// Normalize derives the canonical Decision from an oracle result. It returns
// nil for transport failures: those carry no usable decision and are counted
// separately by each engine.
func Normalize(result *models.OracleResult) *models.Decision {
	if result == nil || result.Failure != nil {
		return nil
	}

	s := result.Success
	label := labelFromClassification(s.Classification, s.Score)
	if label == models.LabelUnknown && s.Classification == "" {
		// No structured classification: fall back to scanning the free text
		// with the same keyword families.
		label = labelFromText(s.Explanation)
	}

	return &models.Decision{
		Label:      label,
		Confidence: extractConfidence(s.Explanation, s.Score),
		RawText:    ResponseText(result),
	}
}

// labelFromClassification maps a structured classification to a label,
// refining "average" by the score thresholds when a score is known.
func labelFromClassification(classification string, score *float64) models.Label {
	switch strings.ToLower(strings.TrimSpace(classification)) {
	case "good", "approved", "approve":
		return models.LabelGood
	case "poor", "bad", "denied", "deny", "reject":
		return models.LabelPoor
	case "average", "moderate":
		if score != nil {
			switch {
			case *score >= GoodScoreThreshold:
				return models.LabelGood
			case *score < PoorScoreThreshold:
				return models.LabelPoor
			}
		}
		return models.LabelAverage
	}
	return models.LabelUnknown
}

// LabelFromScore maps a bare score to a label using the same thresholds
// that refine an "average" classification.
func LabelFromScore(score float64) models.Label {
	switch {
	case score >= GoodScoreThreshold:
		return models.LabelGood
	case score < PoorScoreThreshold:
		return models.LabelPoor
	}
	return models.LabelAverage
}

// labelFromText scans free text for the keyword families. Order matters:
// "good"/"approve" wins over "poor", matching the scoring API's dominant
// phrasing.
func labelFromText(text string) models.Label {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "good") || strings.Contains(lower, "approve"):
		return models.LabelGood
	case strings.Contains(lower, "poor") || strings.Contains(lower, "deny") ||
		strings.Contains(lower, "denied") || strings.Contains(lower, "reject") ||
		strings.Contains(lower, "bad"):
		return models.LabelPoor
	case strings.Contains(lower, "average") || strings.Contains(lower, "moderate"):
		return models.LabelAverage
	}
	return models.LabelUnknown
}

// extractConfidence pulls an explicit confidence out of the explanation, or
// synthesizes one from the score when the text carries none.
func extractConfidence(explanation string, score *float64) *float64 {
	lower := strings.ToLower(explanation)

	if m := percentPattern.FindStringSubmatch(explanation); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
			c := pct / 100.0
			if c >= 0 && c <= 1 {
				return &c
			}
		}
	}

	switch {
	case strings.Contains(lower, "high confidence"):
		c := 0.9
		return &c
	case strings.Contains(lower, "medium confidence"):
		c := 0.7
		return &c
	case strings.Contains(lower, "low confidence"):
		c := 0.5
		return &c
	}

	if score != nil {
		c := ConfidenceFromScore(*score)
		return &c
	}
	return nil
}

// ConfidenceFromScore maps a 0-100 score to a confidence proxy. Distance
// from the midpoint measures how decisive the judgment was: score 50 yields
// 0.5, scores 0 and 100 yield 1.0. The result is clamped to [0.5, 1.0].
func ConfidenceFromScore(score float64) float64 {
	distance := score - ScoreMidpoint
	if distance < 0 {
		distance = -distance
	}
	confidence := 0.5 + 0.5*distance/ScoreMidpoint
	if confidence > 1.0 {
		return 1.0
	}
	if confidence < 0.5 {
		return 0.5
	}
	return confidence
}

// ResponseText renders an oracle result as a compact comparable string:
// "score:S class:C reason:R" for successes, "error: detail" for failures.
// The reason is truncated so long rationales do not dominate comparison.
func ResponseText(result *models.OracleResult) string {
	if result == nil {
		return ""
	}
	if result.Failure != nil {
		return fmt.Sprintf("error: %s", result.Failure.Detail)
	}

	var parts []string
	s := result.Success
	if s.Score != nil {
		parts = append(parts, fmt.Sprintf("score:%s", strconv.FormatFloat(*s.Score, 'f', -1, 64)))
	}
	if s.Classification != "" {
		parts = append(parts, fmt.Sprintf("class:%s", s.Classification))
	}
	if s.Explanation != "" {
		reason := s.Explanation
		if len(reason) > reasonPreviewLen {
			reason = reason[:reasonPreviewLen]
		}
		parts = append(parts, fmt.Sprintf("reason:%s", reason))
	}
	if len(parts) == 0 {
		return "no_data"
	}
	return strings.Join(parts, " ")
}

// NormalizeText lowercases and collapses whitespace for text-level
// comparison.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// JaccardSimilarity computes token-set overlap between two normalized
// texts. Two empty texts count as identical.
func JaccardSimilarity(a, b string) float64 {
	tokensA := tokenSet(NormalizeText(a))
	tokensB := tokenSet(NormalizeText(b))
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1.0
	}

	intersection := 0
	for tok := range tokensA {
		if _, ok := tokensB[tok]; ok {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(text) {
		set[tok] = struct{}{}
	}
	return set
}
