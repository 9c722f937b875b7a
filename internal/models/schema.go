// internal/models/schema.go
package models

// FieldKind discriminates how a profile field is perturbed and vectorized.
type FieldKind string

const (
	FieldNumeric     FieldKind = "numeric"
	FieldCategorical FieldKind = "categorical"
	FieldProtected   FieldKind = "protected"
)

// FieldSpec describes one profile field: its kind, the declared value range
// for numeric fields, and the value domain for categorical and protected
// fields. Ranges and domains drive perturbation scale, normalized distance,
// and one-hot encoding.
type FieldSpec struct {
	Name   string    `json:"name"`
	Kind   FieldKind `json:"kind"`
	Min    float64   `json:"min,omitempty"`
	Max    float64   `json:"max,omitempty"`
	Domain []string  `json:"domain,omitempty"`
}

// Range returns the declared numeric span, at least 1 to avoid zero scales.
func (f FieldSpec) Range() float64 {
	if f.Max > f.Min {
		return f.Max - f.Min
	}
	return 1
}

// DummyLevels returns the domain values that get their own dummy column.
// The first domain value is the reference level and encodes as all zeros.
func (f FieldSpec) DummyLevels() []string {
	if len(f.Domain) < 2 {
		return nil
	}
	return f.Domain[1:]
}

// Schema is the ordered list of field specs for one dataset. Order matters:
// vectorization and feature naming follow schema order.
type Schema struct {
	Fields []FieldSpec `json:"fields"`
}

// Field looks up a spec by name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// NumericFields returns the numeric field specs in schema order.
func (s *Schema) NumericFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.Kind == FieldNumeric {
			out = append(out, f)
		}
	}
	return out
}

// CategoricalFields returns the categorical field specs in schema order.
// Protected fields are excluded: they are never perturbed by the
// neighborhood sampler and never vectorized.
func (s *Schema) CategoricalFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.Kind == FieldCategorical {
			out = append(out, f)
		}
	}
	return out
}

// ProtectedFields returns the protected attribute specs in schema order.
func (s *Schema) ProtectedFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.Kind == FieldProtected {
			out = append(out, f)
		}
	}
	return out
}

// FeatureNames returns the ordered names of the vectorized feature space:
// numeric fields first, then one dummy per categorical domain value beyond
// the first. The first value is the reference level; encoding it too would
// make the dummies collinear with the surrogate's intercept.
func (s *Schema) FeatureNames() []string {
	var names []string
	for _, f := range s.NumericFields() {
		names = append(names, f.Name)
	}
	for _, f := range s.CategoricalFields() {
		for _, v := range f.DummyLevels() {
			names = append(names, f.Name+"_"+v)
		}
	}
	return names
}

// DefaultSchema describes the credit-application payload the scoring API
// accepts. Ranges follow the synthetic dataset the audit ships with.
func DefaultSchema() *Schema {
	return &Schema{Fields: []FieldSpec{
		{Name: "income", Kind: FieldNumeric, Min: 20000, Max: 150000},
		{Name: "employment_duration_years", Kind: FieldNumeric, Min: 0, Max: 40},
		{Name: "existing_loans", Kind: FieldNumeric, Min: 0, Max: 10},
		{Name: "loan_amount", Kind: FieldNumeric, Min: 1000, Max: 100000},
		{Name: "credit_limit", Kind: FieldNumeric, Min: 500, Max: 50000},
		{Name: "used_credit", Kind: FieldNumeric, Min: 0, Max: 50000},
		{Name: "payment_defaults", Kind: FieldNumeric, Min: 0, Max: 5},
		{Name: "credit_inquiries_last_6_months", Kind: FieldNumeric, Min: 0, Max: 10},
		{Name: "address_stability_years", Kind: FieldNumeric, Min: 0, Max: 40},
		{Name: "household_size", Kind: FieldNumeric, Min: 1, Max: 8},
		{Name: "employment_status", Kind: FieldCategorical,
			Domain: []string{"employed", "unemployed", "self_employed", "student", "retired"}},
		{Name: "housing_status", Kind: FieldCategorical,
			Domain: []string{"renter", "owner", "living_with_family"}},
		{Name: "name", Kind: FieldCategorical},
		{Name: "age", Kind: FieldProtected, Min: 18, Max: 80},
		{Name: "gender", Kind: FieldProtected,
			Domain: []string{"male", "female", "non_binary"}},
		{Name: "nationality", Kind: FieldProtected},
		{Name: "ethnicity", Kind: FieldProtected},
		{Name: "disability_status", Kind: FieldProtected,
			Domain: []string{"none", "physical", "cognitive"}},
		{Name: "education_level", Kind: FieldProtected,
			Domain: []string{"none", "secondary", "vocational", "bachelor", "master", "doctorate"}},
		{Name: "marital_status", Kind: FieldProtected,
			Domain: []string{"single", "married", "divorced", "widowed"}},
		{Name: "postal_code", Kind: FieldProtected},
		{Name: "language_preference", Kind: FieldProtected},
	}}
}
