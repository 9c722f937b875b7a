// internal/analysis/transparency/surrogate.go

// Package transparency audits the oracle's explanations: a local linear
// surrogate is fit around each profile to estimate feature importance, and
// the explanation text is scored on eight quality dimensions against both
// the profile's facts and the surrogate's view of the decision.
package transparency

import (
	"math"
	"sort"

	"credit-audit/internal/common/errors"
)

// Coefficient is one feature's weight in the local surrogate.
type Coefficient struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Surrogate is a weighted linear model fit to the oracle's behavior in a
// profile's neighborhood. Coefficients are sorted by descending magnitude.
type Surrogate struct {
	Intercept    float64       `json:"intercept"`
	Coefficients []Coefficient `json:"coefficients"`
	R2           float64       `json:"r2"`
	SampleCount  int           `json:"sample_count"`
	MeanWeight   float64       `json:"mean_weight"`
}

// Importance returns the coefficient for a feature, 0 when absent.
func (s *Surrogate) Importance(feature string) float64 {
	for _, c := range s.Coefficients {
		if c.Feature == feature {
			return c.Value
		}
	}
	return 0
}

// TopFeatures returns the n largest-magnitude coefficients.
func (s *Surrogate) TopFeatures(n int) []Coefficient {
	if n > len(s.Coefficients) {
		n = len(s.Coefficients)
	}
	return s.Coefficients[:n]
}

// FitSurrogate solves the weighted least-squares problem over the sampled
// neighborhood via the normal equations. A singular system (collinear or
// constant features) returns an error; the caller reports the surrogate as
// unavailable rather than guessing.
func FitSurrogate(features [][]float64, targets, weights []float64, names []string) (*Surrogate, error) {
	n := len(features)
	if n == 0 || n != len(targets) || n != len(weights) {
		return nil, errors.NewSurrogateFitError("empty or mismatched sample set")
	}
	d := len(features[0])
	if d == 0 || d != len(names) {
		return nil, errors.NewSurrogateFitError("feature dimension does not match names")
	}

	// design matrix column 0 is the intercept
	dim := d + 1
	a := make([][]float64, dim)
	for i := range a {
		a[i] = make([]float64, dim+1) // augmented with X'Wy
	}

	for s := 0; s < n; s++ {
		w := weights[s]
		row := make([]float64, dim)
		row[0] = 1
		copy(row[1:], features[s])
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				a[i][j] += w * row[i] * row[j]
			}
			a[i][dim] += w * row[i] * targets[s]
		}
	}

	coef, err := solve(a, dim)
	if err != nil {
		return nil, err
	}

	// weighted R^2 against the weighted mean
	var weightSum, targetSum float64
	for s := 0; s < n; s++ {
		weightSum += weights[s]
		targetSum += weights[s] * targets[s]
	}
	if weightSum == 0 {
		return nil, errors.NewSurrogateFitError("all sample weights are zero")
	}
	weightedMean := targetSum / weightSum

	var ssRes, ssTot float64
	for s := 0; s < n; s++ {
		pred := coef[0]
		for j := 0; j < d; j++ {
			pred += coef[j+1] * features[s][j]
		}
		ssRes += weights[s] * (targets[s] - pred) * (targets[s] - pred)
		ssTot += weights[s] * (targets[s] - weightedMean) * (targets[s] - weightedMean)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	coefficients := make([]Coefficient, d)
	for j := 0; j < d; j++ {
		coefficients[j] = Coefficient{Feature: names[j], Value: coef[j+1]}
	}
	sort.SliceStable(coefficients, func(i, j int) bool {
		return math.Abs(coefficients[i].Value) > math.Abs(coefficients[j].Value)
	})

	return &Surrogate{
		Intercept:    coef[0],
		Coefficients: coefficients,
		R2:           r2,
		SampleCount:  n,
		MeanWeight:   weightSum / float64(n),
	}, nil
}

// solve runs Gaussian elimination with partial pivoting on the augmented
// system a[dim][dim+1].
func solve(a [][]float64, dim int) ([]float64, error) {
	const pivotEps = 1e-10

	for col := 0; col < dim; col++ {
		pivot := col
		for row := col + 1; row < dim; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < pivotEps {
			return nil, errors.NewSurrogateFitError("singular normal equations")
		}
		a[col], a[pivot] = a[pivot], a[col]

		for row := col + 1; row < dim; row++ {
			factor := a[row][col] / a[col][col]
			for j := col; j <= dim; j++ {
				a[row][j] -= factor * a[col][j]
			}
		}
	}

	solution := make([]float64, dim)
	for row := dim - 1; row >= 0; row-- {
		sum := a[row][dim]
		for j := row + 1; j < dim; j++ {
			sum -= a[row][j] * solution[j]
		}
		solution[row] = sum / a[row][row]
	}
	return solution, nil
}
