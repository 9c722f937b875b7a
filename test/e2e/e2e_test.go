// test/e2e/e2e_test.go

// End-to-end audit run against a stubbed scoring API: the full pipeline
// from CSV dataset through the oracle gateway into every analysis engine,
// with responses collected on disk along the way.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-audit/internal/analysis"
	"credit-audit/internal/analysis/accuracy"
	"credit-audit/internal/analysis/consistency"
	"credit-audit/internal/analysis/fairness"
	"credit-audit/internal/analysis/robustness"
	"credit-audit/internal/analysis/transparency"
	"credit-audit/internal/collector"
	"credit-audit/internal/common/config"
	"credit-audit/internal/common/logger"
	"credit-audit/internal/dataset"
	"credit-audit/internal/models"
	"credit-audit/internal/oracle"
)

// ==========================
// Test Fixtures
// ==========================

const testCSV = `income,employment_duration_years,existing_loans,loan_amount,credit_limit,used_credit,payment_defaults,credit_inquiries_last_6_months,address_stability_years,household_size,employment_status,housing_status,age,gender,actual_approved
120000,12,1,20000,20000,2000,0,0,12,2,employed,owner,45,male,true
95000,8,0,15000,15000,1500,0,1,8,3,employed,owner,39,female,true
15000,0.5,5,30000,5000,4800,3,6,1,1,unemployed,renter,23,male,false
22000,1,4,25000,6000,5500,2,5,2,4,unemployed,renter,28,female,false
60000,6,2,18000,12000,3000,0,2,6,2,self_employed,renter,34,female,true
48000,3,1,10000,8000,2500,1,3,4,3,employed,living_with_family,30,male,false
`

// scoreHandler is a deterministic stand-in for the scoring API: the score
// is a clipped linear function of income and defaults, so it is stable
// across repeats and roughly monotone in applicant strength.
func scoreHandler(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	income, _ := payload["income"].(float64)
	defaults, _ := payload["payment_defaults"].(float64)

	score := income/2000.0 - defaults*15
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	classification := "poor"
	switch {
	case score >= 70:
		classification = "good"
	case score >= 50:
		classification = "average"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"credit_score":   score,
		"classification": classification,
		"explanation":    "The income level drove the decision with high confidence.",
	})
}

// ==========================
// Test Helper Functions
// ==========================

func loadProfiles(t *testing.T) []models.Profile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "applicants.csv")
	require.NoError(t, os.WriteFile(path, []byte(testCSV), 0o644))

	source, err := dataset.NewSource(config.DatasetConfig{Source: "csv", Path: path}, nil)
	require.NoError(t, err)

	profiles, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 6)
	return profiles
}

func newClient(t *testing.T, baseURL string, sink collector.Sink) *oracle.Client {
	t.Helper()
	cfg := config.OracleConfig{
		BaseURL:  baseURL,
		Username: "auditor",
		Password: "secret",
		Timeout:  5,
	}
	opts := []oracle.Option{}
	if sink != nil {
		opts = append(opts, oracle.WithSink(sink))
	}
	return oracle.NewClient(cfg, models.DefaultSchema(), logger.NewTestLogger(t), opts...)
}

// ==========================
// End-to-End Audit Tests
// ==========================

func TestFullAuditRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(scoreHandler))
	defer server.Close()

	log := logger.NewTestLogger(t)
	schema := models.DefaultSchema()
	profiles := loadProfiles(t)
	ctx := context.Background()

	responseDir := t.TempDir()
	sink, err := collector.NewFileSink(responseDir, "e2e-run", log)
	require.NoError(t, err)

	client := newClient(t, server.URL, sink)

	responses := analysis.CollectResponses(ctx, client, "baseline", profiles, nil)
	require.Len(t, responses, 6)
	for _, r := range responses {
		assert.True(t, r.Result.Ok())
	}

	// --- Fairness ---
	fairnessResults := fairness.New(client, config.FairnessConfig{
		ProtectedAttributes: []string{"gender"},
		PositiveClass:       "good",
		SampleSize:          4,
		Seed:                42,
	}, log, nil).Run(ctx, profiles, responses)

	gender, ok := fairnessResults["gender"].(map[string]interface{})
	require.True(t, ok)
	di, ok := gender["disparate_impact_ratio"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, di, 0.0)
	assert.LessOrEqual(t, di, 1.0)

	// The stub ignores gender entirely, so flips never change the decision.
	cf := gender["counterfactual_fairness"].(map[string]interface{})
	assert.Equal(t, 0, cf["violations"])

	// --- Robustness ---
	robustnessResults := robustness.New(client, config.RobustnessConfig{
		NumExamples: 4,
		Seed:        42,
	}, schema, log, nil).Run(ctx, profiles)

	robustnessScore, ok := robustnessResults["robustness_score"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, robustnessScore, 0.0)
	assert.LessOrEqual(t, robustnessScore, 1.0)
	assert.Equal(t, 0.0, robustnessResults["error_rate"].(float64))

	// --- Consistency ---
	consistencyResults := consistency.New(client, config.ConsistencyConfig{
		NumRepeats:   3,
		DelaySeconds: 0,
		SampleSize:   3,
		Seed:         42,
	}, log, nil).Run(ctx, profiles)

	// Deterministic stub: every repeat answers identically.
	assert.InDelta(t, 1.0, consistencyResults["perfect_consistency"].(float64), 1e-9)
	assert.InDelta(t, 1.0, consistencyResults["overall_consistency_score"].(float64), 1e-9)

	// --- Transparency ---
	transparencyResults := transparency.New(client, config.TransparencyConfig{
		SampleSize:           2,
		SurrogateSamples:     120,
		PerturbationStrength: 0.5,
		Seed:                 42,
	}, schema, log, nil).Run(ctx, profiles)

	transparencySummary := transparencyResults["summary"].(map[string]interface{})
	assert.Equal(t, 2, transparencySummary["total_analyzed"])
	assert.InDelta(t, 1.0, transparencySummary["compliance_rate"].(float64), 1e-9)

	// --- Accuracy ---
	accuracyResults := accuracy.New(log, nil).Run(responses)
	regression := accuracyResults["regression_metrics"].(map[string]interface{})
	assert.Greater(t, regression["correlation"].(float64), 0.5,
		"stub scores must correlate with the rule-based ground truth")

	// --- Collected Responses ---
	require.NoError(t, sink.Close())
	records, err := collector.LoadFile(sink.Path())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), 6, "every baseline call is on disk")

	modules := make(map[string]bool)
	for _, record := range records {
		modules[record.Module] = true
	}
	assert.True(t, modules["baseline"])
	assert.True(t, modules["robustness"])
}

func TestAuditSurvivesOracleOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	log := logger.NewTestLogger(t)
	profiles := loadProfiles(t)
	client := newClient(t, server.URL, nil)
	ctx := context.Background()

	responses := analysis.CollectResponses(ctx, client, "baseline", profiles, nil)
	for _, r := range responses {
		assert.True(t, r.Result.Failed())
	}

	robustnessResults := robustness.New(client, config.RobustnessConfig{
		NumExamples: 3,
		Seed:        42,
	}, models.DefaultSchema(), log, nil).Run(ctx, profiles)

	assert.InDelta(t, 1.0, robustnessResults["error_rate"].(float64), 1e-9)
	assert.Equal(t, 0, robustnessResults["total_examples"])

	accuracyResults := accuracy.New(log, nil).Run(responses)
	assert.Equal(t, "no usable predictions", accuracyResults["error"])
}
