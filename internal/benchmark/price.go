// Package benchmark computes the per-era pricing reference, peer cohort
// benchmarks, and outlier classification. All aggregation here is
// single-pass and streaming-reducible: accumulators consume claim rows one
// at a time and only the grouped sums are held in memory.
package benchmark

import (
	"sort"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

// CodePrice is one row of the national pricing reference.
type CodePrice struct {
	Code   string
	Price  float64 // $ per claim at national average
	Claims int64
	Paid   float64
}

type priceSums struct {
	claims int64
	paid   float64
}

// PriceIndex accumulates the national average price per billing code:
// total paid over total claims, across all providers. It makes
// cross-provider comparison fair regardless of state-level fee schedules.
type PriceIndex struct {
	codes map[string]bool
	sums  map[string]*priceSums
}

// NewPriceIndex creates an index restricted to the given code set.
func NewPriceIndex(codes []string) *PriceIndex {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return &PriceIndex{codes: set, sums: make(map[string]*priceSums)}
}

// Add accumulates one claim aggregate row. Rows outside the code set are
// ignored.
func (p *PriceIndex) Add(row model.ClaimAggregate) {
	if !p.codes[row.Code] {
		return
	}
	s, ok := p.sums[row.Code]
	if !ok {
		s = &priceSums{}
		p.sums[row.Code] = s
	}
	s.claims += row.ClaimCount
	s.paid += row.PaidAmount
}

// Price returns the national average price for a code. Codes with zero
// aggregate claims have no price (omitted, never divided by zero).
func (p *PriceIndex) Price(code string) (float64, bool) {
	s, ok := p.sums[code]
	if !ok || s.claims == 0 {
		return 0, false
	}
	return s.paid / float64(s.claims), true
}

// Table returns the priced codes sorted by code, for logging and artifact
// output.
func (p *PriceIndex) Table() []CodePrice {
	out := make([]CodePrice, 0, len(p.sums))
	for code, s := range p.sums {
		if s.claims == 0 {
			continue
		}
		out = append(out, CodePrice{
			Code:   code,
			Price:  s.paid / float64(s.claims),
			Claims: s.claims,
			Paid:   s.paid,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
