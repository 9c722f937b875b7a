// internal/models/decision.go
package models

// Label is the canonical decision class every oracle response normalizes to.
type Label string

const (
	LabelGood    Label = "good"
	LabelAverage Label = "average"
	LabelPoor    Label = "poor"
	LabelUnknown Label = "unknown"
)

// Decision is the canonical form of one oracle response. Confidence is nil
// when neither an explicit percentage nor a usable score was present.
type Decision struct {
	Label      Label    `json:"label"`
	Confidence *float64 `json:"confidence,omitempty"`
	RawText    string   `json:"raw_text"`
}

// Family names the perturbation strategy that produced a sample.
type Family string

const (
	FamilyCounterfactual Family = "counterfactual"
	FamilyNoiseNumerical Family = "noise_numerical"
	FamilyTyposText      Family = "typos_text"
	FamilyCaseChange     Family = "case_change"
	FamilyMissingValues  Family = "missing_values"
	FamilyExtremeValues  Family = "extreme_values"
	FamilyNeighborhood   Family = "neighborhood"
)

// AdversarialFamilies lists the corruption strategies the robustness engine
// applies to every sampled base profile.
var AdversarialFamilies = []Family{
	FamilyNoiseNumerical,
	FamilyTyposText,
	FamilyCaseChange,
	FamilyMissingValues,
	FamilyExtremeValues,
}

// PerturbedSample pairs an origin profile with one perturbed variant.
// Weight is a similarity kernel value in (0,1], set only by the
// neighborhood family.
type PerturbedSample struct {
	Origin    Profile `json:"origin"`
	Perturbed Profile `json:"perturbed"`
	Family    Family  `json:"family"`
	Weight    float64 `json:"weight,omitempty"`
}

// ComparisonResult records how the oracle's decision moved between the
// origin and perturbed profiles of one sample.
type ComparisonResult struct {
	Sample    PerturbedSample `json:"sample"`
	Original  *Decision       `json:"original_decision"`
	Perturbed *Decision       `json:"perturbed_decision"`
	Changed   bool            `json:"changed"`
}

// Compare builds a ComparisonResult. A pair is changed when labels differ,
// or when both confidences are present and differ by at least tolerance.
func Compare(sample PerturbedSample, original, perturbed *Decision, tolerance float64) ComparisonResult {
	changed := false
	switch {
	case original == nil || perturbed == nil:
		changed = (original == nil) != (perturbed == nil)
	case original.Label != perturbed.Label:
		changed = true
	case original.Confidence != nil && perturbed.Confidence != nil:
		delta := *original.Confidence - *perturbed.Confidence
		if delta < 0 {
			delta = -delta
		}
		changed = delta >= tolerance
	}
	return ComparisonResult{Sample: sample, Original: original, Perturbed: perturbed, Changed: changed}
}
