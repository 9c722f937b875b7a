package fairness

import (
	"context"
	"testing"

	"credit-audit/internal/analysis"
	"credit-audit/internal/common/config"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// attributeScorer decides by the profile's gender value: a biased oracle
// that approves one group and rejects the other.
type attributeScorer struct {
	decisions map[string]string // gender value -> classification
	calls     int
}

func (s *attributeScorer) Score(_ context.Context, _ string, p models.Profile) *models.OracleResult {
	s.calls++
	gender, _ := p.Text("gender")
	classification, ok := s.decisions[gender]
	if !ok {
		classification = "average"
	}
	score := 50.0
	if classification == "good" {
		score = 80
	}
	if classification == "poor" {
		score = 20
	}
	return models.SuccessResult(models.OracleSuccess{Score: &score, Classification: classification})
}

func testConfig() config.FairnessConfig {
	return config.FairnessConfig{
		ProtectedAttributes: []string{"gender"},
		PositiveClass:       "good",
		SampleSize:          4,
		Seed:                42,
	}
}

func approvedProfile(gender string) models.Profile {
	return models.Profile{
		"gender":          gender,
		"income":          50000.0,
		"actual_approved": true,
	}
}

func responseFor(p models.Profile, classification string) analysis.Response {
	return analysis.Response{
		Input:  p,
		Result: models.SuccessResult(models.OracleSuccess{Classification: classification}),
	}
}

// ==========================
// Demographic Parity Tests
// ==========================

func TestRun_DemographicParityAndDisparateImpact(t *testing.T) {
	// Two groups of two; males approved at 100%, females at 50%.
	responses := []analysis.Response{
		responseFor(approvedProfile("male"), "good"),
		responseFor(approvedProfile("male"), "good"),
		responseFor(approvedProfile("female"), "good"),
		responseFor(approvedProfile("female"), "poor"),
	}
	profiles := []models.Profile{
		responses[0].Input, responses[1].Input, responses[2].Input, responses[3].Input,
	}

	scorer := &attributeScorer{decisions: map[string]string{"male": "good", "female": "good"}}
	engine := New(scorer, testConfig(), logger.NewTestLogger(t), nil)
	results := engine.Run(context.Background(), profiles, responses)

	attr, ok := results["gender"].(map[string]interface{})
	require.True(t, ok)

	parity := attr["demographic_parity"].(map[string]interface{})
	male := parity["male"].(map[string]interface{})
	female := parity["female"].(map[string]interface{})
	assert.InDelta(t, 1.0, male["positive_rate"].(float64), 1e-9)
	assert.InDelta(t, 0.5, female["positive_rate"].(float64), 1e-9)

	assert.InDelta(t, 0.5, attr["disparate_impact_ratio"].(float64), 1e-9)
}

func TestRun_DisparateImpactSentinelWhenNoApprovals(t *testing.T) {
	responses := []analysis.Response{
		responseFor(approvedProfile("male"), "poor"),
		responseFor(approvedProfile("female"), "poor"),
	}
	profiles := []models.Profile{responses[0].Input, responses[1].Input}

	scorer := &attributeScorer{decisions: map[string]string{}}
	results := New(scorer, testConfig(), logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, responses)

	attr := results["gender"].(map[string]interface{})
	assert.Equal(t, 0.0, attr["disparate_impact_ratio"].(float64))
}

func TestRun_SkipsFailedAndUndecidedResponses(t *testing.T) {
	undecided := analysis.Response{
		Input:  approvedProfile("male"),
		Result: models.SuccessResult(models.OracleSuccess{Explanation: "pending review"}),
	}
	failed := analysis.Response{
		Input:  approvedProfile("male"),
		Result: models.FailureResult(models.FailureTimeout, "deadline exceeded", 0),
	}
	decided := responseFor(approvedProfile("female"), "good")

	profiles := []models.Profile{undecided.Input, failed.Input, decided.Input}
	scorer := &attributeScorer{decisions: map[string]string{}}
	results := New(scorer, testConfig(), logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, []analysis.Response{undecided, failed, decided})

	attr := results["gender"].(map[string]interface{})
	parity := attr["demographic_parity"].(map[string]interface{})
	_, malePresent := parity["male"]
	assert.False(t, malePresent, "undecided and failed responses form no group")
	female := parity["female"].(map[string]interface{})
	assert.Equal(t, 1, female["total"])
}

// ==========================
// Positive Class Tests
// ==========================

func TestPositiveLabel(t *testing.T) {
	tests := []struct {
		name  string
		class string
		want  models.Label
	}{
		{"good", "good", models.LabelGood},
		{"poor", "poor", models.LabelPoor},
		{"average with whitespace", "  Average ", models.LabelAverage},
		{"empty falls back to good", "", models.LabelGood},
		{"unrecognized falls back to good", "excellent", models.LabelGood},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, positiveLabel(tt.class))
		})
	}
}

func TestRun_ConfiguredPositiveClass(t *testing.T) {
	// With poor configured as the positive class, uniformly poor responses
	// are a 100% positive rate in every group, not zero.
	responses := []analysis.Response{
		responseFor(approvedProfile("male"), "poor"),
		responseFor(approvedProfile("female"), "poor"),
	}
	profiles := []models.Profile{responses[0].Input, responses[1].Input}

	cfg := testConfig()
	cfg.PositiveClass = "poor"
	scorer := &attributeScorer{decisions: map[string]string{}}
	results := New(scorer, cfg, logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, responses)

	attr := results["gender"].(map[string]interface{})
	parity := attr["demographic_parity"].(map[string]interface{})
	male := parity["male"].(map[string]interface{})
	female := parity["female"].(map[string]interface{})
	assert.InDelta(t, 1.0, male["positive_rate"].(float64), 1e-9)
	assert.InDelta(t, 1.0, female["positive_rate"].(float64), 1e-9)
	assert.InDelta(t, 1.0, attr["disparate_impact_ratio"].(float64), 1e-9)
}

func TestRun_ConfiguredPositiveClassScoreFallback(t *testing.T) {
	// A score-only response resolves through the score thresholds before
	// the positive-class comparison: 20 maps to poor.
	lowScore := 20.0
	scoreOnly := analysis.Response{
		Input:  approvedProfile("female"),
		Result: models.SuccessResult(models.OracleSuccess{Score: &lowScore}),
	}
	profiles := []models.Profile{scoreOnly.Input}

	cfg := testConfig()
	cfg.PositiveClass = "poor"
	scorer := &attributeScorer{decisions: map[string]string{}}
	results := New(scorer, cfg, logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, []analysis.Response{scoreOnly})

	attr := results["gender"].(map[string]interface{})
	parity := attr["demographic_parity"].(map[string]interface{})
	female := parity["female"].(map[string]interface{})
	assert.InDelta(t, 1.0, female["positive_rate"].(float64), 1e-9)
}

// ==========================
// Equal Opportunity Tests
// ==========================

func TestRun_EqualOpportunityUsesActualApprovedLabel(t *testing.T) {
	truePositive := responseFor(approvedProfile("male"), "good")
	falseNegative := responseFor(approvedProfile("male"), "poor")

	notApproved := approvedProfile("female")
	notApproved["actual_approved"] = false
	excluded := responseFor(notApproved, "good")

	profiles := []models.Profile{truePositive.Input, falseNegative.Input, excluded.Input}
	scorer := &attributeScorer{decisions: map[string]string{}}
	results := New(scorer, testConfig(), logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, []analysis.Response{truePositive, falseNegative, excluded})

	attr := results["gender"].(map[string]interface{})
	eo := attr["equal_opportunity"].(map[string]interface{})

	male := eo["male"].(map[string]interface{})
	assert.Equal(t, 2, male["actual_positive"])
	assert.Equal(t, 1, male["true_positive"])
	assert.InDelta(t, 0.5, male["tpr"].(float64), 1e-9)

	_, femalePresent := eo["female"]
	assert.False(t, femalePresent, "ground-truth negatives are excluded")
}

// ==========================
// Counterfactual Fairness Tests
// ==========================

func TestRun_CounterfactualViolations(t *testing.T) {
	// Attribute value drives the decision, so every gender flip is a
	// violation.
	scorer := &attributeScorer{decisions: map[string]string{"male": "good", "female": "poor"}}

	profiles := []models.Profile{approvedProfile("male"), approvedProfile("female")}
	responses := []analysis.Response{
		responseFor(profiles[0], "good"),
		responseFor(profiles[1], "poor"),
	}

	results := New(scorer, testConfig(), logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, responses)

	attr := results["gender"].(map[string]interface{})
	cf := attr["counterfactual_fairness"].(map[string]interface{})

	assert.Equal(t, 2, cf["total_rows"])
	assert.Equal(t, 2, cf["total_tests"])
	assert.Equal(t, 2, cf["violations"])
	assert.InDelta(t, 1.0, cf["violation_ratio"].(float64), 1e-9)
	assert.Equal(t, "HIGH", cf["severity"])
}

func TestRun_CounterfactualFairOracle(t *testing.T) {
	scorer := &attributeScorer{decisions: map[string]string{"male": "good", "female": "good"}}

	profiles := []models.Profile{approvedProfile("male"), approvedProfile("female")}
	responses := []analysis.Response{
		responseFor(profiles[0], "good"),
		responseFor(profiles[1], "good"),
	}

	results := New(scorer, testConfig(), logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, responses)

	attr := results["gender"].(map[string]interface{})
	cf := attr["counterfactual_fairness"].(map[string]interface{})
	assert.Equal(t, 0, cf["violations"])
	assert.Equal(t, "MINIMAL", cf["severity"])
}

func TestRun_CounterfactualInsufficientDomain(t *testing.T) {
	// Every profile shares one gender value: nothing to flip to.
	profiles := []models.Profile{approvedProfile("male"), approvedProfile("male")}
	responses := []analysis.Response{
		responseFor(profiles[0], "good"),
		responseFor(profiles[1], "good"),
	}

	scorer := &attributeScorer{decisions: map[string]string{"male": "good"}}
	results := New(scorer, testConfig(), logger.NewTestLogger(t), nil).
		Run(context.Background(), profiles, responses)

	attr := results["gender"].(map[string]interface{})
	cf := attr["counterfactual_fairness"].(map[string]interface{})
	assert.Nil(t, cf["violation_ratio"])
	assert.Equal(t, "insufficient_domain", cf["note"])
	assert.Zero(t, scorer.calls, "no oracle calls without a flip domain")
}
