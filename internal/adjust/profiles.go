// Package adjust fits the practice-profile covariate model and re-scores
// providers on its residuals. Raw deviation in the price-weighted index
// can be explained by legitimate practice differences; this stage reports
// how much, and who remains anomalous after the explanation.
package adjust

import (
	"math"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

type profileSums struct {
	codes        map[string]struct{}
	totalClaims  int64
	familyClaims int64
	newClaims    int64
}

// ProfileAccumulator computes practice-profile covariates per provider
// from the full claim stream (every billed code, not just the screened
// families). Single-pass, group-by-provider reducible.
type ProfileAccumulator struct {
	familyCodes map[string]bool
	newCodes    map[string]bool
	byNPI       map[string]*profileSums
}

// NewProfileAccumulator creates an accumulator. familyCodes is the union
// of screened code families; newCodes is the new-patient subset.
func NewProfileAccumulator(familyCodes, newCodes []string) *ProfileAccumulator {
	fam := make(map[string]bool, len(familyCodes))
	for _, c := range familyCodes {
		fam[c] = true
	}
	nw := make(map[string]bool, len(newCodes))
	for _, c := range newCodes {
		nw[c] = true
	}
	return &ProfileAccumulator{
		familyCodes: fam,
		newCodes:    nw,
		byNPI:       make(map[string]*profileSums),
	}
}

// Add accumulates one claim aggregate row.
func (p *ProfileAccumulator) Add(row model.ClaimAggregate) {
	s, ok := p.byNPI[row.NPI]
	if !ok {
		s = &profileSums{codes: make(map[string]struct{})}
		p.byNPI[row.NPI] = s
	}
	s.codes[row.Code] = struct{}{}
	s.totalClaims += row.ClaimCount
	if p.familyCodes[row.Code] {
		s.familyClaims += row.ClaimCount
	}
	if p.newCodes[row.Code] {
		s.newClaims += row.ClaimCount
	}
}

// Profiles materializes the covariates for every accumulated provider.
func (p *ProfileAccumulator) Profiles() map[string]model.ProviderProfile {
	out := make(map[string]model.ProviderProfile, len(p.byNPI))
	for npi, s := range p.byNPI {
		prof := model.ProviderProfile{
			NPI:           npi,
			CodeDiversity: float64(len(s.codes)),
		}
		if s.totalClaims > 0 {
			prof.FamilyRatio = float64(s.familyClaims) / float64(s.totalClaims)
			prof.LogVolume = math.Log(float64(s.totalClaims))
		}
		if s.familyClaims > 0 {
			prof.NewPatientRatio = float64(s.newClaims) / float64(s.familyClaims)
		}
		out[npi] = prof
	}
	return out
}
