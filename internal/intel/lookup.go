// Package intel provides the read-only producer reputation lookup consumed by
// the feature extractor. The dataset itself is externally owned and refreshed;
// this package only performs lookups and risk aggregation.
package intel

import (
	"solana-mev-engine/internal/domain"
)

// DefaultUnknownRisk is the aggregated risk assigned to producers absent from
// the dataset.
const DefaultUnknownRisk = 0.1

// Lookup resolves producer intel by base58 pubkey.
type Lookup interface {
	// Get returns the intel for a producer key, or false if untracked.
	Get(pubkey string) (*domain.ProducerIntel, bool)
}

// StaticLookup is a Lookup over an externally-supplied map. The map is never
// mutated after construction; refresh means constructing a new StaticLookup.
type StaticLookup struct {
	entries map[string]*domain.ProducerIntel
}

// NewStaticLookup copies the given entries into a read-only lookup.
func NewStaticLookup(entries map[string]*domain.ProducerIntel) *StaticLookup {
	m := make(map[string]*domain.ProducerIntel, len(entries))
	for k, v := range entries {
		copied := *v
		m[k] = &copied
	}
	return &StaticLookup{entries: m}
}

var _ Lookup = (*StaticLookup)(nil)

// Get returns the intel for a producer key, or false if untracked.
func (l *StaticLookup) Get(pubkey string) (*domain.ProducerIntel, bool) {
	v, ok := l.entries[pubkey]
	return v, ok
}

// Len returns the number of tracked producers.
func (l *StaticLookup) Len() int {
	return len(l.entries)
}

// Risk aggregation weights. Maliciousness dominates; MEV extraction rate,
// relay participation and skip rate contribute the remainder.
const (
	maliciousWeight     = 0.60
	mevRateWeight       = 0.25
	participationWeight = 0.10
	skipRateWeight      = 0.05
)

// RiskScore aggregates producer intel into a 0-1 risk value.
func RiskScore(p *domain.ProducerIntel) float64 {
	if p == nil {
		return DefaultUnknownRisk
	}
	score := p.MevRate*mevRateWeight +
		p.ParticipationRate*participationWeight +
		p.SkipRate*skipRateWeight
	if p.IsMalicious {
		score += maliciousWeight
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
