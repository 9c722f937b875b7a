// internal/perturb/neighborhood.go
package perturb

import (
	"math"
	"math/rand"

	"credit-audit/internal/models"
)

// rbfBandwidth is the kernel width used to turn normalized distances into
// locality weights for the surrogate fit.
const rbfBandwidth = 0.75

// Neighborhood draws n perturbed variants around a base profile. Numeric
// fields get Gaussian noise scaled to strength times the declared field
// range; categorical fields are resampled uniformly from their domain with
// probability strength. Protected fields are left untouched. Each sample
// carries its RBF locality weight relative to the base profile.
func Neighborhood(base models.Profile, schema *models.Schema, n int, strength float64, rng *rand.Rand) []models.PerturbedSample {
	samples := make([]models.PerturbedSample, 0, n)
	for i := 0; i < n; i++ {
		p := base.Clone()
		for _, spec := range schema.NumericFields() {
			if v, ok := p.Number(spec.Name); ok {
				nv := v + rng.NormFloat64()*spec.Range()*strength
				if spec.Max > spec.Min {
					nv = math.Max(spec.Min, math.Min(spec.Max, nv))
				}
				p[spec.Name] = nv
			}
		}
		for _, spec := range schema.CategoricalFields() {
			if len(spec.Domain) == 0 {
				continue
			}
			if rng.Float64() < strength {
				p[spec.Name] = spec.Domain[rng.Intn(len(spec.Domain))]
			}
		}
		samples = append(samples, models.PerturbedSample{
			Origin:    base,
			Perturbed: p,
			Family:    models.FamilyNeighborhood,
			Weight:    Weight(Distance(base, p, schema)),
		})
	}
	return samples
}

// Distance is the normalized root-mean-square distance between two profiles
// over the schema's numeric and categorical fields. Numeric differences are
// scaled by the declared field range; categorical fields contribute 0 when
// equal and 1 otherwise. Fields missing from either profile are skipped.
func Distance(a, b models.Profile, schema *models.Schema) float64 {
	var sum float64
	var count int
	for _, spec := range schema.NumericFields() {
		av, aok := a.Number(spec.Name)
		bv, bok := b.Number(spec.Name)
		if !aok || !bok {
			continue
		}
		d := (av - bv) / spec.Range()
		sum += d * d
		count++
	}
	for _, spec := range schema.CategoricalFields() {
		av, aok := a.Text(spec.Name)
		bv, bok := b.Text(spec.Name)
		if !aok || !bok {
			continue
		}
		if av != bv {
			sum++
		}
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// Weight converts a normalized distance into an RBF kernel weight in (0, 1].
func Weight(distance float64) float64 {
	return math.Exp(-distance * distance / (2 * rbfBandwidth * rbfBandwidth))
}

// Vectorize encodes a profile into the schema's feature space: raw numeric
// values in schema order followed by reference-coded dummies for each
// categorical field. Missing numerics encode as 0; the reference level (and
// any out-of-domain value) encodes as all zeros.
func Vectorize(p models.Profile, schema *models.Schema) []float64 {
	var vec []float64
	for _, spec := range schema.NumericFields() {
		v, _ := p.Number(spec.Name)
		vec = append(vec, v)
	}
	for _, spec := range schema.CategoricalFields() {
		current, _ := p.Text(spec.Name)
		for _, dv := range spec.DummyLevels() {
			if current == dv {
				vec = append(vec, 1)
			} else {
				vec = append(vec, 0)
			}
		}
	}
	return vec
}
