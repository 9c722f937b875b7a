package analysis

import (
	"context"
	"testing"

	"credit-audit/internal/models"
	"credit-audit/internal/progress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type scriptedScorer struct {
	results []*models.OracleResult
	calls   int
	modules []string
}

func (s *scriptedScorer) Score(_ context.Context, module string, _ models.Profile) *models.OracleResult {
	result := s.results[s.calls%len(s.results)]
	s.calls++
	s.modules = append(s.modules, module)
	return result
}

// ==========================
// Response Collection Tests
// ==========================

func TestCollectResponses(t *testing.T) {
	score := 70.0
	scorer := &scriptedScorer{results: []*models.OracleResult{
		models.SuccessResult(models.OracleSuccess{Score: &score, Classification: "good"}),
		models.FailureResult(models.FailureTimeout, "deadline exceeded", 0),
	}}

	profiles := []models.Profile{
		{"income": 50000.0},
		{"income": 20000.0},
	}

	var last progress.Status
	tracker := progress.NewTracker(progress.ReporterFunc(func(s progress.Status) { last = s }), 0, 1)

	responses := CollectResponses(context.Background(), scorer, "baseline", profiles, tracker)

	require.Len(t, responses, 2)
	assert.True(t, responses[0].Result.Ok())
	assert.True(t, responses[1].Result.Failed(), "failed calls are kept")
	assert.Equal(t, profiles[0], responses[0].Input)
	assert.Equal(t, []string{"baseline", "baseline"}, scorer.modules)
	assert.InDelta(t, 1.0, last.Progress, 1e-9)
}

func TestCollectResponses_NilTracker(t *testing.T) {
	scorer := &scriptedScorer{results: []*models.OracleResult{
		models.SuccessResult(models.OracleSuccess{Classification: "good"}),
	}}

	responses := CollectResponses(context.Background(), scorer, "baseline", []models.Profile{{"income": 1.0}}, nil)
	require.Len(t, responses, 1)
}

// ==========================
// Statistics Tests
// ==========================

func TestMeanMedianStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	assert.InDelta(t, 5.0, Mean(values), 1e-9)
	assert.InDelta(t, 4.5, Median(values), 1e-9)
	assert.InDelta(t, 2.0, StdDev(values), 1e-9)
}

func TestMedian_OddLength(t *testing.T) {
	assert.InDelta(t, 3.0, Median([]float64{5, 1, 3}), 1e-9)
}

func TestStats_EmptyInputs(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, Min(nil))
	assert.Equal(t, 0.0, Max(nil))
}

func TestMinMax(t *testing.T) {
	values := []float64{3, -1, 7, 2}
	assert.Equal(t, -1.0, Min(values))
	assert.Equal(t, 7.0, Max(values))
}

func TestCorrelation(t *testing.T) {
	t.Run("perfect positive", func(t *testing.T) {
		a := []float64{1, 2, 3, 4}
		b := []float64{10, 20, 30, 40}
		assert.InDelta(t, 1.0, Correlation(a, b), 1e-9)
	})

	t.Run("perfect negative", func(t *testing.T) {
		a := []float64{1, 2, 3, 4}
		b := []float64{4, 3, 2, 1}
		assert.InDelta(t, -1.0, Correlation(a, b), 1e-9)
	})

	t.Run("degenerate side", func(t *testing.T) {
		assert.Equal(t, 0.0, Correlation([]float64{1, 2, 3}, []float64{5, 5, 5}))
	})

	t.Run("length mismatch", func(t *testing.T) {
		assert.Equal(t, 0.0, Correlation([]float64{1, 2}, []float64{1}))
	})
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.25, Clamp01(0.25))
}
