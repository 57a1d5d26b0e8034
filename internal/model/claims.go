// Package model defines the row types exchanged between pipeline stages.
// Every table artifact has a fixed struct here; column contracts are
// validated at load time, never discovered at first use.
package model

// ClaimAggregate is one row of the claim aggregate input: totals for one
// provider, one billing code, one calendar month.
type ClaimAggregate struct {
	NPI        string
	Code       string
	Month      string // YYYY-MM
	ClaimCount int64
	PaidAmount float64
	BeneCount  int64
}

// RegistryEntry is one row of the provider registry.
type RegistryEntry struct {
	NPI          string
	Name         string
	EntityType   string // "individual" or "organization"
	State        string
	TaxonomyCode string
}

// TaxonomyEntry maps a taxonomy code to its coarse and fine classification.
type TaxonomyEntry struct {
	Code           string
	Grouping       string
	Classification string
	Specialization string // nullable; empty when absent
}

// BenchmarkSpecialty returns the peer-grouping key for this taxonomy:
// the Specialization where present, falling back to the coarser
// Classification otherwise.
func (t TaxonomyEntry) BenchmarkSpecialty() string {
	if t.Specialization != "" {
		return t.Specialization
	}
	return t.Classification
}

// Provider is the registry-joined identity attached to every derived row.
type Provider struct {
	NPI          string
	Name         string
	State        string
	Specialty    string // benchmark specialty (specialization or classification)
	Class        string // coarse classification
	ProviderType string // taxonomy grouping
	EntityType   string
}
