// Package registry loads the provider registry and taxonomy lookup tables
// and resolves each NPI to its benchmarking identity.
package registry

import (
	"io"

	"go.uber.org/zap"

	"github.com/aegis-analytics/claimscreen/internal/model"
	"github.com/aegis-analytics/claimscreen/internal/tabular"
)

var registryColumns = []string{"npi", "provider_name", "entity_type", "state", "taxonomy_code"}

var taxonomyColumns = []string{"code", "grouping", "classification", "specialization"}

// Registry resolves NPIs to provider identities. Both lookup tables are
// per-provider / per-code and fit in memory.
type Registry struct {
	providers map[string]model.RegistryEntry
	taxonomy  map[string]model.TaxonomyEntry
}

// Load reads the provider registry and taxonomy lookup from CSV files.
// encoding names the files' character encoding when they are not UTF-8
// ("" reads bytes as-is).
func Load(registryPath, taxonomyPath, encoding string) (*Registry, error) {
	providers, err := loadRegistry(registryPath, encoding)
	if err != nil {
		return nil, err
	}
	taxonomy, err := loadTaxonomy(taxonomyPath, encoding)
	if err != nil {
		return nil, err
	}

	zap.L().Info("registry: loaded",
		zap.Int("providers", len(providers)),
		zap.Int("taxonomy_codes", len(taxonomy)))

	return &Registry{providers: providers, taxonomy: taxonomy}, nil
}

// Resolve returns the benchmarking identity for an NPI. The second return
// is false when the NPI is unregistered or its taxonomy has no
// classification; such providers cannot be cohorted and are excluded from
// benchmarking.
func (r *Registry) Resolve(npi string) (model.Provider, bool) {
	entry, ok := r.providers[npi]
	if !ok {
		return model.Provider{}, false
	}

	tax, ok := r.taxonomy[entry.TaxonomyCode]
	if !ok {
		return model.Provider{}, false
	}
	specialty := tax.BenchmarkSpecialty()
	if specialty == "" {
		return model.Provider{}, false
	}

	return model.Provider{
		NPI:          npi,
		Name:         entry.Name,
		State:        entry.State,
		Specialty:    specialty,
		Class:        tax.Classification,
		ProviderType: tax.Grouping,
		EntityType:   entry.EntityType,
	}, true
}

func loadRegistry(path, encoding string) (map[string]model.RegistryEntry, error) {
	r, err := tabular.OpenEncoded(path, encoding, registryColumns)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	providers := make(map[string]model.RegistryEntry)
	for {
		record, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		npi := r.Col(record, "npi")
		if npi == "" {
			continue
		}
		providers[npi] = model.RegistryEntry{
			NPI:          npi,
			Name:         r.Col(record, "provider_name"),
			EntityType:   r.Col(record, "entity_type"),
			State:        r.Col(record, "state"),
			TaxonomyCode: r.Col(record, "taxonomy_code"),
		}
	}
	return providers, nil
}

func loadTaxonomy(path, encoding string) (map[string]model.TaxonomyEntry, error) {
	r, err := tabular.OpenEncoded(path, encoding, taxonomyColumns)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	taxonomy := make(map[string]model.TaxonomyEntry)
	for {
		record, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		code := r.Col(record, "code")
		if code == "" {
			continue
		}
		// First occurrence wins on duplicate codes.
		if _, ok := taxonomy[code]; ok {
			continue
		}
		taxonomy[code] = model.TaxonomyEntry{
			Code:           code,
			Grouping:       r.Col(record, "grouping"),
			Classification: r.Col(record, "classification"),
			Specialization: r.Col(record, "specialization"),
		}
	}
	return taxonomy, nil
}
