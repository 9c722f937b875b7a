package transparency

import (
	"math/rand"
	"testing"

	"credit-audit/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Surrogate Fit Tests
// ==========================

func TestFitSurrogate_RecoversPlantedLinearModel(t *testing.T) {
	// y = 3 + 2*x1 - x2, no noise
	rng := rand.New(rand.NewSource(42))

	var features [][]float64
	var targets, weights []float64
	for i := 0; i < 50; i++ {
		x1 := rng.Float64() * 10
		x2 := rng.Float64() * 10
		features = append(features, []float64{x1, x2})
		targets = append(targets, 3+2*x1-x2)
		weights = append(weights, 1)
	}

	surrogate, err := FitSurrogate(features, targets, weights, []string{"x1", "x2"})
	require.NoError(t, err)

	assert.InDelta(t, 3.0, surrogate.Intercept, 1e-6)
	assert.InDelta(t, 2.0, surrogate.Importance("x1"), 1e-6)
	assert.InDelta(t, -1.0, surrogate.Importance("x2"), 1e-6)
	assert.InDelta(t, 1.0, surrogate.R2, 1e-9)
	assert.Equal(t, 50, surrogate.SampleCount)
}

func TestFitSurrogate_WeightsTiltTheFit(t *testing.T) {
	// Two regimes; near-zero weight on the second should make the fit track
	// the first one's slope.
	features := [][]float64{{0}, {1}, {2}, {10}, {11}}
	targets := []float64{0, 1, 2, 100, 100}
	weights := []float64{1, 1, 1, 1e-6, 1e-6}

	surrogate, err := FitSurrogate(features, targets, weights, []string{"x"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, surrogate.Importance("x"), 0.05)
}

func TestFitSurrogate_SingularSystem(t *testing.T) {
	// Constant feature column duplicates the intercept.
	features := [][]float64{{1, 5}, {1, 7}, {1, 9}}
	targets := []float64{1, 2, 3}
	weights := []float64{1, 1, 1}

	_, err := FitSurrogate(features, targets, weights, []string{"constant", "x"})
	require.Error(t, err)
	var stdErr *errors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Contains(t, stdErr.Details, "singular")
}

func TestFitSurrogate_InputValidation(t *testing.T) {
	tests := []struct {
		name     string
		features [][]float64
		targets  []float64
		weights  []float64
		names    []string
	}{
		{"empty sample set", nil, nil, nil, []string{"x"}},
		{"mismatched targets", [][]float64{{1}}, []float64{1, 2}, []float64{1}, []string{"x"}},
		{"mismatched names", [][]float64{{1, 2}}, []float64{1}, []float64{1}, []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitSurrogate(tt.features, tt.targets, tt.weights, tt.names)
			assert.Error(t, err)
		})
	}
}

// ==========================
// Surrogate Accessor Tests
// ==========================

func TestSurrogate_CoefficientsSortedByMagnitude(t *testing.T) {
	features := [][]float64{{1, 2, 0}, {2, 1, 1}, {3, 5, 0}, {4, 2, 1}, {5, 9, 0}}
	targets := []float64{10, 4, 22, 9, 35}
	weights := []float64{1, 1, 1, 1, 1}

	surrogate, err := FitSurrogate(features, targets, weights, []string{"a", "b", "c"})
	require.NoError(t, err)

	coefs := surrogate.Coefficients
	require.Len(t, coefs, 3)
	for i := 1; i < len(coefs); i++ {
		assert.GreaterOrEqual(t,
			abs(coefs[i-1].Value), abs(coefs[i].Value),
			"coefficients must be ordered by descending magnitude")
	}

	top := surrogate.TopFeatures(2)
	assert.Len(t, top, 2)
	assert.Equal(t, coefs[0], top[0])

	assert.Len(t, surrogate.TopFeatures(10), 3, "n larger than dimension clamps")
	assert.Equal(t, 0.0, surrogate.Importance("missing"))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
