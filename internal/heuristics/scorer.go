package heuristics

import (
	"solana-mev-engine/internal/domain"
)

// Factor is one weighted risk contribution of the heuristic scorer. Factors
// read named fields rather than raw array offsets so a feature reordering
// cannot silently break scoring; the name ties each factor back to the
// versioned feature schema for auditability.
type Factor struct {
	Name   string
	Weight float64
	Fires  func(fv *domain.FeatureVector) bool
}

// FieldScorer is the default explainable scoring backend: a fixed table of
// weighted factors combined as 0.7*max + 0.3*mean, capped at 0.95. All
// weights are tuning defaults intended to be replaced by a trained model
// without changing the surrounding contracts.
type FieldScorer struct {
	factors []Factor
	base    ThresholdConfig
}

// NewFieldScorer builds the default factor table from a threshold config.
func NewFieldScorer(base ThresholdConfig) *FieldScorer {
	return &FieldScorer{
		base: base,
		factors: []Factor{
			{
				Name:   "compute_unit_price",
				Weight: 0.45,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.ComputeUnitPrice > base.ComputePriceHigh
				},
			},
			{
				Name:   "tip_lamports",
				Weight: 0.7,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.TipLamports > base.HighTipLamports
				},
			},
			{
				Name:   "price_impact_bps",
				Weight: 0.55,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.PriceImpactBps > base.PriceImpactBps
				},
			},
			{
				Name:   "liquidity_utilization",
				Weight: 0.4,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.LiquidityUtilization > base.LiquidityUtil
				},
			},
			{
				Name:   "price_deviation_pct",
				Weight: 0.6,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.PriceDeviationPct > 2.0
				},
			},
			{
				Name:   "has_swap_triplet",
				Weight: base.TripletWeight,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.HasSwapTriplet
				},
			},
			{
				Name:   "tip_percentile_vs_recent",
				Weight: 0.55,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.TipPercentileVsRecent > 95
				},
			},
			{
				Name:   "matches_bot_pattern",
				Weight: 0.7,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.MatchesBotPattern
				},
			},
			{
				Name:   "next_producer_malicious",
				Weight: 0.8,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.NextProducerMalicious
				},
			},
			{
				Name:   "producer_risk_score",
				Weight: 0.7,
				Fires: func(fv *domain.FeatureVector) bool {
					return fv.ProducerRiskScore > 0.7
				},
			},
		},
	}
}

// Score evaluates the factor table. With no fired factor the low default
// 0.15 is returned.
func (s *FieldScorer) Score(fv *domain.FeatureVector) domain.RiskScore {
	var fired []float64
	for _, f := range s.factors {
		if f.Fires(fv) {
			fired = append(fired, f.Weight)
		}
	}
	if len(fired) == 0 {
		return domain.NewRiskScore(0.15)
	}
	return domain.NewRiskScore(blendRisks(fired))
}

// Factors exposes the factor table for schema-mapping tests and dashboards.
func (s *FieldScorer) Factors() []Factor {
	return s.factors
}
