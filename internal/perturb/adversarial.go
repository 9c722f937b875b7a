// internal/perturb/adversarial.go
package perturb

import (
	"math/rand"
	"sort"
	"strings"

	"credit-audit/internal/models"
)

const (
	// noiseFactor scales Gaussian noise to a fraction of each numeric
	// field's magnitude.
	noiseFactor = 0.1

	// typoRate is the fraction of characters substituted in text fields.
	typoRate = 0.05

	// maxMissingFields bounds how many fields the missing-value family
	// nulls out per sample.
	maxMissingFields = 3
)

const asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// FieldStats carries the observed min/max of every numeric field across the
// dataset, used by extreme-value substitution.
type FieldStats struct {
	Min map[string]float64
	Max map[string]float64
}

// CollectFieldStats scans the dataset once for per-field numeric extremes.
func CollectFieldStats(profiles []models.Profile, schema *models.Schema) FieldStats {
	stats := FieldStats{Min: make(map[string]float64), Max: make(map[string]float64)}
	for _, spec := range schema.NumericFields() {
		first := true
		for _, p := range profiles {
			v, ok := p.Number(spec.Name)
			if !ok {
				continue
			}
			if first {
				stats.Min[spec.Name], stats.Max[spec.Name] = v, v
				first = false
				continue
			}
			if v < stats.Min[spec.Name] {
				stats.Min[spec.Name] = v
			}
			if v > stats.Max[spec.Name] {
				stats.Max[spec.Name] = v
			}
		}
	}
	return stats
}

// Adversarial applies one corruption family to a base profile and returns
// the perturbed sample. Each family only touches its declared field subset:
// numeric fields for noise and extreme values, text fields for typos and
// case inversion, any fields for deletion.
func Adversarial(origin models.Profile, family models.Family, schema *models.Schema, stats FieldStats, rng *rand.Rand) models.PerturbedSample {
	perturbed := origin.Clone()

	switch family {
	case models.FamilyNoiseNumerical:
		for _, spec := range schema.NumericFields() {
			if v, ok := perturbed.Number(spec.Name); ok {
				mag := v
				if mag < 0 {
					mag = -mag
				}
				perturbed[spec.Name] = v + rng.NormFloat64()*mag*noiseFactor
			}
		}

	case models.FamilyTyposText:
		for name := range perturbed {
			if s, ok := perturbed.Text(name); ok && s != "" {
				perturbed[name] = injectTypos(s, rng)
			}
		}

	case models.FamilyCaseChange:
		for name := range perturbed {
			if s, ok := perturbed.Text(name); ok {
				perturbed[name] = strings.ToUpper(s)
			}
		}

	case models.FamilyMissingValues:
		fields := fieldNames(perturbed)
		count := maxMissingFields
		if count > len(fields) {
			count = len(fields)
		}
		for _, i := range rng.Perm(len(fields))[:count] {
			perturbed[fields[i]] = nil
		}

	case models.FamilyExtremeValues:
		for _, spec := range schema.NumericFields() {
			if _, ok := perturbed.Number(spec.Name); !ok {
				continue
			}
			if rng.Intn(2) == 0 {
				perturbed[spec.Name] = stats.Max[spec.Name] * 2
			} else {
				perturbed[spec.Name] = stats.Min[spec.Name] * 2
			}
		}
	}

	return models.PerturbedSample{Origin: origin, Perturbed: perturbed, Family: family}
}

// AdversarialSet applies all five corruption families independently to the
// same base profile.
func AdversarialSet(origin models.Profile, schema *models.Schema, stats FieldStats, rng *rand.Rand) []models.PerturbedSample {
	samples := make([]models.PerturbedSample, 0, len(models.AdversarialFamilies))
	for _, family := range models.AdversarialFamilies {
		samples = append(samples, Adversarial(origin, family, schema, stats, rng))
	}
	return samples
}

// injectTypos substitutes a fraction of characters with random letters,
// preserving length. At least one character always changes.
func injectTypos(text string, rng *rand.Rand) string {
	chars := []rune(text)
	if len(chars) == 0 {
		return text
	}
	numTypos := int(float64(len(chars)) * typoRate)
	if numTypos < 1 {
		numTypos = 1
	}
	for i := 0; i < numTypos; i++ {
		pos := rng.Intn(len(chars))
		chars[pos] = rune(asciiLetters[rng.Intn(len(asciiLetters))])
	}
	return string(chars)
}

func fieldNames(p models.Profile) []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	// map order is random; sort for a reproducible permutation base
	sort.Strings(names)
	return names
}
