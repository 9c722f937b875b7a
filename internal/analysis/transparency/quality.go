// internal/analysis/transparency/quality.go
package transparency

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"credit-audit/internal/models"
)

// Dimension weights, summing to 100. The compliance gate is applied after
// weighting.
var qualityWeights = map[string]float64{
	"faithfulness":   25,
	"lime_alignment": 25,
	"specificity":    15,
	"completeness":   15,
	"consistency":    10,
	"counterfactual": 5,
	"readability":    5,
}

const (
	complianceCap       = 20
	topAlignedFeatures  = 5
	importanceThreshold = 0.1
	numericTolerance    = 0.1
)

// QualityScore is the aggregate verdict on one explanation.
type QualityScore struct {
	Overall         float64            `json:"overall_score"`
	Category        string             `json:"category"`
	DimensionScores map[string]float64 `json:"dimension_scores"`
	Compliant       bool               `json:"is_compliant"`
	GateApplied     bool               `json:"compliance_gate_applied"`
}

// featurePatterns maps profile features to the vocabulary explanations use
// for them.
var featurePatterns = map[string]*regexp.Regexp{
	"income":                    regexp.MustCompile(`income|salary|earnings`),
	"age":                       regexp.MustCompile(`\bage\b|years old`),
	"employment_status":         regexp.MustCompile(`employment|job|work|employed|unemployed`),
	"employment_duration_years": regexp.MustCompile(`employment duration|tenure|years at|job stability`),
	"payment_defaults":          regexp.MustCompile(`payment|history|defaults|late payments`),
	"used_credit":               regexp.MustCompile(`utilization|balance|credit usage`),
	"credit_limit":              regexp.MustCompile(`credit limit|available credit`),
	"loan_amount":               regexp.MustCompile(`loan amount|requested amount|borrowing`),
	"existing_loans":            regexp.MustCompile(`existing loans|other loans|current debts`),
	"housing_status":            regexp.MustCompile(`housing|rent|own|mortgage`),
	"address_stability_years":   regexp.MustCompile(`address|residence|moved`),
}

var (
	numberPattern    = regexp.MustCompile(`\b\d+\.?\d*\b`)
	dollarPattern    = regexp.MustCompile(`\$[\d,]+`)
	bigNumberPattern = regexp.MustCompile(`\b\d{3,4}\b`)
	percentPattern   = regexp.MustCompile(`\b\d+(?:\.\d+)?%`)

	thresholdPatterns = []*regexp.Regexp{
		regexp.MustCompile(`above \d+|below \d+|over \d+|under \d+`),
		regexp.MustCompile(`threshold|criteria|requirement|minimum|maximum`),
		regexp.MustCompile(`at least \d+|no more than \d+`),
	}
	interactionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`combined with|along with|together with`),
		regexp.MustCompile(`ratio|compared to|relative to`),
		regexp.MustCompile(`given your|considering your|because of your`),
	}
	actionablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`reduce.*below|increase.*above|maintain.*under`),
		regexp.MustCompile(`pay.*on time|avoid.*late payments`),
		regexp.MustCompile(`lower.*utilization|decrease.*balance`),
		regexp.MustCompile(`consider.*consolidation|refinance`),
		regexp.MustCompile(`improve.*history|build.*credit`),
	}

	protectedVocabulary = []*regexp.Regexp{
		regexp.MustCompile(`\brace\b|ethnic|national`),
		regexp.MustCompile(`\bgender\b|\bmale\b|\bfemale\b`),
		regexp.MustCompile(`religion|christian|muslim|jewish`),
		regexp.MustCompile(`marriage|married|\bsingle\b|divorced`),
		regexp.MustCompile(`disabilit|handicap`),
	}
	harmfulVocabulary = []*regexp.Regexp{
		regexp.MustCompile(`lie about|falsify|hide`),
		regexp.MustCompile(`discriminat|bias|unfair`),
		regexp.MustCompile(`illegal|unlawful`),
	}

	positiveLanguage = []string{"increase", "improve", "boost", "higher", "better"}
	negativeLanguage = []string{"decrease", "reduce", "lower", "worse", "hurt"}
)

// extractMentionedFeatures finds which profile features the explanation
// talks about and the sentence fragment each appears in.
func extractMentionedFeatures(text string) map[string]string {
	lower := strings.ToLower(text)
	mentions := make(map[string]string)
	for feature, pattern := range featurePatterns {
		loc := pattern.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		// clause around the mention, bounded by sentence breaks
		start := strings.LastIndex(lower[:loc[0]], ".") + 1
		end := strings.Index(lower[loc[1]:], ".")
		if end < 0 {
			end = len(lower)
		} else {
			end += loc[1]
		}
		mentions[feature] = strings.TrimSpace(lower[start:end])
	}
	return mentions
}

// analyzeFaithfulness checks how grounded the explanation is in the
// profile's actual values: the mention ratio over the profile's facts minus
// a 0.1 penalty per mentioned numeric whose value never appears (exactly or
// within 10%).
func analyzeFaithfulness(text string, profile models.Profile, schema *models.Schema) map[string]interface{} {
	lower := strings.ToLower(text)
	explanationNumbers := extractNumbers(text)

	totalFacts := 0
	mentionedFacts := 0
	var factualErrors []string

	for _, spec := range schema.Fields {
		if spec.Kind == models.FieldProtected {
			continue
		}
		if _, present := profile[spec.Name]; !present {
			continue
		}
		totalFacts++

		mention := strings.ReplaceAll(spec.Name, "_", " ")
		if !strings.Contains(lower, mention) {
			continue
		}
		mentionedFacts++

		value, isNumeric := profile.Number(spec.Name)
		if !isNumeric {
			continue
		}
		tolerance := math.Abs(value) * numericTolerance
		found := false
		for _, n := range explanationNumbers {
			if math.Abs(n-value) <= tolerance {
				found = true
				break
			}
		}
		if !found {
			factualErrors = append(factualErrors, fmt.Sprintf("mentioned %s but value %v not found", spec.Name, value))
		}
	}

	mentionRatio := 0.0
	if totalFacts > 0 {
		mentionRatio = float64(mentionedFacts) / float64(totalFacts)
	}
	score := mentionRatio - float64(len(factualErrors))*0.1
	if score < 0 {
		score = 0
	}

	return map[string]interface{}{
		"faithfulness_score":    score,
		"mentioned_facts_ratio": mentionRatio,
		"factual_errors":        factualErrors,
		"total_facts":           totalFacts,
		"mentioned_facts":       mentionedFacts,
	}
}

func extractNumbers(text string) []float64 {
	var numbers []float64
	for _, raw := range numberPattern.FindAllString(text, -1) {
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// analyzeAlignment measures agreement between the explanation and the
// surrogate: coverage of the top features plus direction agreement where
// the explanation uses directional language, averaged.
func analyzeAlignment(text string, explanation *Explanation) map[string]interface{} {
	if explanation.Unavailable {
		return map[string]interface{}{
			"alignment_score":     0.0,
			"coverage_score":      0.0,
			"direction_agreement": 0.0,
			"error":               "surrogate unavailable",
		}
	}

	mentions := extractMentionedFeatures(text)
	top := explanation.Surrogate.TopFeatures(topAlignedFeatures)
	if len(top) == 0 {
		return map[string]interface{}{
			"alignment_score":     0.0,
			"coverage_score":      0.0,
			"direction_agreement": 0.0,
			"error":               "no feature importance available",
		}
	}

	covered := 0
	directionAgreements := 0
	directionalMentions := 0

	for _, c := range top {
		context := mentionContext(c.Feature, mentions)
		if context == "" {
			continue
		}
		covered++

		hasPositive := containsAny(context, positiveLanguage)
		hasNegative := containsAny(context, negativeLanguage)
		if hasPositive || hasNegative {
			directionalMentions++
			if (c.Value > 0 && hasPositive) || (c.Value <= 0 && hasNegative) {
				directionAgreements++
			}
		}
	}

	coverage := float64(covered) / float64(len(top))
	direction := 0.0
	if directionalMentions > 0 {
		direction = float64(directionAgreements) / float64(directionalMentions)
	}

	return map[string]interface{}{
		"alignment_score":     (coverage + direction) / 2,
		"coverage_score":      coverage,
		"direction_agreement": direction,
		"covered_features":    covered,
		"total_lime_features": len(top),
	}
}

// mentionContext finds the sentence fragment mentioning a vectorized
// feature, matching one-hot dummies back to their base field.
func mentionContext(feature string, mentions map[string]string) string {
	for base, context := range mentions {
		if feature == base || strings.HasPrefix(feature, base+"_") {
			return context
		}
	}
	return ""
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// analyzeSpecificity scores concreteness on a 0-5 scale: actual values and
// thresholds (2), feature interactions (1), actionable advice (2).
func analyzeSpecificity(text string) map[string]interface{} {
	lower := strings.ToLower(text)

	actualValues := len(dollarPattern.FindAllString(text, -1)) +
		len(bigNumberPattern.FindAllString(text, -1)) +
		len(percentPattern.FindAllString(text, -1))
	thresholds := countMatches(lower, thresholdPatterns)
	interactions := countMatches(lower, interactionPatterns)

	actionable := 0
	for _, pattern := range actionablePatterns {
		if pattern.MatchString(lower) {
			actionable++
		}
	}

	score := math.Min(2, float64(actualValues+thresholds)*0.5)
	score += math.Min(1, float64(interactions)*0.5)
	score += math.Min(2, float64(actionable))

	category := "vague_boilerplate"
	switch {
	case score > 3:
		category = "highly_specific"
	case score > 1:
		category = "somewhat_specific"
	}

	return map[string]interface{}{
		"specificity_score": score,
		"normalized_score":  score / 5.0,
		"category":          category,
		"signals": map[string]interface{}{
			"actual_values":        actualValues,
			"thresholds_mentioned": thresholds,
			"feature_interactions": interactions,
			"actionable_advice":    actionable,
		},
	}
}

func countMatches(text string, patterns []*regexp.Regexp) int {
	count := 0
	for _, p := range patterns {
		count += len(p.FindAllString(text, -1))
	}
	return count
}

// analyzeCompleteness checks coverage of the features the surrogate
// considers important (|coefficient| at or above the threshold).
func analyzeCompleteness(text string, explanation *Explanation) map[string]interface{} {
	if explanation.Unavailable {
		return map[string]interface{}{
			"completeness_score":         0.0,
			"total_important_features":   0,
			"important_features_covered": 0,
			"error":                      "surrogate unavailable",
		}
	}

	mentions := extractMentionedFeatures(text)
	var important []string
	covered := 0
	for _, c := range explanation.Surrogate.Coefficients {
		if math.Abs(c.Value) < importanceThreshold {
			continue
		}
		important = append(important, c.Feature)
		if mentionContext(c.Feature, mentions) != "" {
			covered++
		}
	}

	score := 0.0
	if len(important) > 0 {
		score = float64(covered) / float64(len(important))
	}
	return map[string]interface{}{
		"completeness_score":         score,
		"total_important_features":   len(important),
		"important_features_covered": covered,
		"important_features":         important,
	}
}

// analyzeExplanationConsistency compares repeated explanations for the same
// profile: mean of feature-set overlap and token overlap.
func analyzeExplanationConsistency(explanations []string) map[string]interface{} {
	if len(explanations) < 2 {
		return map[string]interface{}{
			"consistency_score": 0.0,
			"error":             "insufficient explanations",
		}
	}

	featureSets := make([]map[string]bool, len(explanations))
	wordSets := make([]map[string]bool, len(explanations))
	for i, text := range explanations {
		featureSets[i] = make(map[string]bool)
		for feature := range extractMentionedFeatures(text) {
			featureSets[i][feature] = true
		}
		wordSets[i] = make(map[string]bool)
		for _, w := range strings.Fields(strings.ToLower(text)) {
			wordSets[i][w] = true
		}
	}

	featureOverlap := setOverlap(featureSets)
	wordOverlap := setOverlap(wordSets)

	return map[string]interface{}{
		"consistency_score":     (featureOverlap + wordOverlap) / 2,
		"feature_overlap_score": featureOverlap,
		"word_similarity_score": wordOverlap,
		"num_samples":           len(explanations),
	}
}

// setOverlap is |intersection| / |union| across all sets.
func setOverlap(sets []map[string]bool) float64 {
	union := make(map[string]bool)
	for _, s := range sets {
		for k := range s {
			union[k] = true
		}
	}
	if len(union) == 0 {
		return 0
	}
	intersection := 0
	for k := range union {
		inAll := true
		for _, s := range sets {
			if !s[k] {
				inAll = false
				break
			}
		}
		if inAll {
			intersection++
		}
	}
	return float64(intersection) / float64(len(union))
}

// analyzeCompliance flags mentions of protected attributes or harmful
// advice. Any violation makes the explanation non-compliant.
func analyzeCompliance(text string) map[string]interface{} {
	lower := strings.ToLower(text)

	var protectedViolations, harmfulViolations []string
	for _, p := range protectedVocabulary {
		protectedViolations = append(protectedViolations, p.FindAllString(lower, -1)...)
	}
	for _, p := range harmfulVocabulary {
		harmfulViolations = append(harmfulViolations, p.FindAllString(lower, -1)...)
	}

	compliant := len(protectedViolations)+len(harmfulViolations) == 0
	return map[string]interface{}{
		"compliant":            compliant,
		"protected_violations": protectedViolations,
		"harmful_violations":   harmfulViolations,
		"total_violations":     len(protectedViolations) + len(harmfulViolations),
	}
}

// analyzeReadability scores structure heuristics from a 0.5 base: sentence
// length in a comfortable band, paragraphs, bullet points, and concrete
// numbers each nudge the score.
func analyzeReadability(text string) map[string]interface{} {
	sentences := strings.Split(text, ".")
	words := strings.Fields(text)

	avgSentenceLength := float64(len(words)) / math.Max(float64(len(sentences)), 1)

	hasParagraphs := strings.Contains(text, "\n")
	hasBullets := strings.ContainsAny(text, "•-*")
	hasNumbers := numberPattern.MatchString(text)

	score := 0.5
	if avgSentenceLength >= 10 && avgSentenceLength <= 20 {
		score += 0.2
	} else if avgSentenceLength > 30 {
		score -= 0.2
	}
	if hasParagraphs {
		score += 0.1
	}
	if hasBullets {
		score += 0.1
	}
	if hasNumbers {
		score += 0.1
	}
	score = math.Max(0, math.Min(1, score))

	return map[string]interface{}{
		"readability_score":   score,
		"avg_sentence_length": avgSentenceLength,
		"word_count":          len(words),
		"sentence_count":      len(sentences),
	}
}

// computeQualityScore folds the dimension scores into the weighted overall
// score and applies the compliance gate.
func computeQualityScore(dimensions map[string]float64, compliant bool) QualityScore {
	var overall float64
	for dim, weight := range qualityWeights {
		overall += dimensions[dim] * weight
	}

	gateApplied := false
	if !compliant && overall > complianceCap {
		overall = complianceCap
		gateApplied = true
	}

	category := "poor"
	switch {
	case overall >= 90:
		category = "excellent"
	case overall >= 80:
		category = "good"
	case overall >= 70:
		category = "fair"
	}

	return QualityScore{
		Overall:         overall,
		Category:        category,
		DimensionScores: dimensions,
		Compliant:       compliant,
		GateApplied:     gateApplied,
	}
}

func scoreOf(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}
