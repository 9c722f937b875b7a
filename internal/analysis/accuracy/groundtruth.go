// internal/analysis/accuracy/groundtruth.go

// Package accuracy compares the oracle's scores and classifications against
// a deterministic rule-based ground truth derived from each profile's
// financial indicators. The rule is intentionally simple: it exists to
// validate the synthetic dataset, not to model real credit risk.
package accuracy

import "credit-audit/internal/models"

// Ground-truth classifications use the API's own class vocabulary.
const (
	ClassGood    = "Good"
	ClassAverage = "Average"
	ClassPoor    = "Poor"
)

// GroundTruth scores a profile on the 0-100 scale from its financial
// indicators and classifies it: >=70 Good, >=50 Average, else Poor.
func GroundTruth(p models.Profile) (float64, string) {
	score := 50.0

	// income (0-20 points)
	if income, ok := p.Number("income"); ok {
		switch {
		case income > 100000:
			score += 20
		case income > 70000:
			score += 15
		case income > 50000:
			score += 10
		case income > 30000:
			score += 5
		}
	}

	// employment stability (0-15 points)
	if duration, ok := p.Number("employment_duration_years"); ok {
		switch {
		case duration > 10:
			score += 15
		case duration > 5:
			score += 10
		case duration > 2:
			score += 5
		}
	}

	// payment defaults carry a heavy penalty
	if defaults, ok := p.Number("payment_defaults"); ok {
		score -= defaults * 15
	}

	// credit utilization
	limit, _ := p.Number("credit_limit")
	if limit < 1 {
		limit = 1
	}
	used, _ := p.Number("used_credit")
	utilization := used / limit
	switch {
	case utilization < 0.3:
		score += 10
	case utilization < 0.7:
		score += 5
	default:
		score -= 10
	}

	if inquiries, ok := p.Number("credit_inquiries_last_6_months"); ok {
		score -= inquiries * 2
	}

	if housing, _ := p.Text("housing_status"); housing == "owner" {
		score += 5
	}

	if years, ok := p.Number("address_stability_years"); ok {
		switch {
		case years > 10:
			score += 5
		case years > 5:
			score += 3
		}
	}

	if loans, ok := p.Number("existing_loans"); ok && loans > 3 {
		score -= 5
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	class := ClassPoor
	switch {
	case score >= 70:
		class = ClassGood
	case score >= 50:
		class = ClassAverage
	}
	return score, class
}

// Approved reports whether the rule considers the profile a ground-truth
// positive, used as the equal-opportunity label when the dataset carries no
// explicit one.
func Approved(p models.Profile) bool {
	_, class := GroundTruth(p)
	return class == ClassGood
}
