// internal/perturb/counterfactual.go

// Package perturb generates the perturbed profile variants the audit
// engines feed to the oracle: counterfactual flips of protected attributes,
// adversarial corruptions, and local-neighborhood samples for surrogate
// fitting. All randomness flows through an explicitly passed *rand.Rand so
// tests and repeated runs can reproduce exact sample sets.
package perturb

import (
	"fmt"
	"math/rand"

	"credit-audit/internal/models"
)

// Counterfactuals emits one sample per alternate domain value of the target
// protected attribute, each differing from the origin in that attribute
// only. A domain with fewer than two distinct values produces no samples;
// callers mark the attribute "insufficient domain" rather than reporting a
// zero rate.
func Counterfactuals(origin models.Profile, attribute string, domain []string) []models.PerturbedSample {
	if len(domain) < 2 {
		return nil
	}

	current, _ := origin.Text(attribute)
	var samples []models.PerturbedSample
	for _, alt := range domain {
		if alt == current {
			continue
		}
		perturbed := origin.Clone()
		perturbed[attribute] = alt
		samples = append(samples, models.PerturbedSample{
			Origin:    origin,
			Perturbed: perturbed,
			Family:    models.FamilyCounterfactual,
		})
	}
	return samples
}

// ObservedDomain collects the distinct non-empty string values an attribute
// takes across the dataset, in first-seen order.
func ObservedDomain(profiles []models.Profile, attribute string) []string {
	seen := make(map[string]struct{})
	var domain []string
	for _, p := range profiles {
		v, ok := p[attribute]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprintf("%v", v)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		domain = append(domain, s)
	}
	return domain
}

// SampleProfiles draws a fixed-size subset without replacement, reproducible
// for a given source. Sampling bounds oracle call volume; n <= 0 or
// n >= len(profiles) returns every profile in shuffled order.
func SampleProfiles(profiles []models.Profile, n int, rng *rand.Rand) []models.Profile {
	idx := rng.Perm(len(profiles))
	if n <= 0 || n > len(profiles) {
		n = len(profiles)
	}
	out := make([]models.Profile, 0, n)
	for _, i := range idx[:n] {
		out = append(out, profiles[i])
	}
	return out
}
