// Package heuristics implements adaptive risk scoring with dynamically
// adjusted thresholds and the multi-stage MEV detection pipeline built on it.
package heuristics

import (
	"sync"
	"time"

	"solana-mev-engine/internal/domain"
)

// ThresholdConfig holds the base conservative thresholds. All values are
// tuning defaults, not fixed truths; deployments may override them or swap
// the whole scorer for a trained model without touching the pipeline.
type ThresholdConfig struct {
	HighTipLamports  uint64  // tip above this is suspicious
	PriceImpactBps   float64 // price impact above this suggests manipulation
	ProducerRisk     float64 // aggregated producer risk trigger
	TripletWeight    float64 // risk contribution of a detected sandwich triplet
	LiquidityUtil    float64 // liquidity utilization trigger
	ComputePriceHigh uint64  // compute unit price urgency trigger
}

// DefaultThresholds returns the conservative baseline configuration.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		HighTipLamports:  100_000,
		PriceImpactBps:   200.0,
		ProducerRisk:     0.6,
		TripletWeight:    0.9,
		LiquidityUtil:    0.05,
		ComputePriceHigh: 200_000,
	}
}

// AdjustedThresholds is an observability snapshot of the runtime-adjusted
// thresholds. It is recomputed from context on demand, never persisted.
type AdjustedThresholds struct {
	HighTipLamports uint64  `json:"high_tip_lamports"`
	PriceImpactBps  float64 `json:"price_impact_bps"`
	ProducerRisk    float64 `json:"producer_risk"`
	TimeAdjustment  float64 `json:"time_adjustment"`
}

// Adaptive maintains exogenous market context and produces dynamically
// adjusted thresholds plus a raw (score, confidence) pair per feature vector.
//
// Context factors:
//   - volatility: >50% -> 1.5x price-impact threshold, >20% -> 1.2x, else 1.0x
//   - congestion: utilization >0.8 -> +50% tip threshold, >0.5 -> +20%, else +0%
//   - time of day: weekend 1.3x, market hours (14-21 UTC) 1.1x, multiplicative
type Adaptive struct {
	mu sync.Mutex

	base ThresholdConfig

	volatilityMultiplier float64
	congestionFactor     float64
	timeAdjustment       float64

	tipHistory    []uint64
	impactHistory []float64
	maxHistory    int

	now func() time.Time
}

// AdaptiveOptions configures an Adaptive instance.
type AdaptiveOptions struct {
	Thresholds *ThresholdConfig
	MaxHistory int
	Now        func() time.Time // injected clock, defaults to time.Now
}

// NewAdaptive creates an adaptive scorer with default context factors.
func NewAdaptive(opts AdaptiveOptions) *Adaptive {
	base := DefaultThresholds()
	if opts.Thresholds != nil {
		base = *opts.Thresholds
	}
	maxHistory := opts.MaxHistory
	if maxHistory == 0 {
		maxHistory = 1000
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adaptive{
		base:                 base,
		volatilityMultiplier: 1.0,
		congestionFactor:     0.0,
		timeAdjustment:       1.0,
		maxHistory:           maxHistory,
		now:                  now,
	}
}

// UpdateMarketConditions refreshes the volatility and congestion factors.
// Higher volatility loosens the price-impact threshold to avoid false
// positives; higher congestion raises the tip threshold since tips are
// naturally elevated.
func (a *Adaptive) UpdateMarketConditions(mc domain.MarketConditions) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case mc.Volatility24hPct > 50:
		a.volatilityMultiplier = 1.5
	case mc.Volatility24hPct > 20:
		a.volatilityMultiplier = 1.2
	default:
		a.volatilityMultiplier = 1.0
	}

	switch {
	case mc.TPSUtilization > 0.8:
		a.congestionFactor = 0.5
	case mc.TPSUtilization > 0.5:
		a.congestionFactor = 0.2
	default:
		a.congestionFactor = 0.0
	}
}

// calcTimeAdjustment derives the weekend/market-hours multiplier.
func (a *Adaptive) calcTimeAdjustment() float64 {
	t := a.now().UTC()

	weekendFactor := 1.0
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekendFactor = 1.3
	}

	marketHoursFactor := 1.0
	if h := t.Hour(); h >= 14 && h < 21 {
		marketHoursFactor = 1.1
	}

	return weekendFactor * marketHoursFactor
}

// CalculateRisk evaluates up to nine independent risk factors against the
// adjusted thresholds and returns a bounded (score, confidence) pair.
// Score combines as 0.7*max + 0.3*mean of fired contributions, capped at
// 0.95; confidence is the mean of the fired factors' confidence weights.
// With no fired factor the result is the low default (0.15, 0.5).
func (a *Adaptive) CalculateRisk(fv *domain.FeatureVector) (float64, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.timeAdjustment = a.calcTimeAdjustment()

	a.tipHistory = appendBounded(a.tipHistory, fv.TipLamports, a.maxHistory)
	a.impactHistory = appendBounded(a.impactHistory, fv.PriceImpactBps, a.maxHistory)

	var risks, confidences []float64
	add := func(risk, confidence float64) {
		risks = append(risks, risk)
		confidences = append(confidences, confidence)
	}

	// 1. Tip breach, scaled by recency percentile.
	adjustedTip := float64(a.base.HighTipLamports) * (1.0 + a.congestionFactor)
	if float64(fv.TipLamports) > adjustedTip {
		switch p := a.tipPercentile(fv.TipLamports); {
		case p > 95:
			add(0.75, 0.9)
		case p > 90:
			add(0.6, 0.75)
		default:
			add(0.45, 0.6)
		}
	}

	// 2. Price impact vs volatility-adjusted threshold.
	if fv.PriceImpactBps > a.base.PriceImpactBps*a.volatilityMultiplier {
		add(0.55, 0.85)
	}

	// 3. Sandwich triplet, the strongest single signal.
	if fv.HasSwapTriplet {
		add(a.base.TripletWeight, 0.95)
	}

	// 4. Producer risk breach.
	if fv.ProducerRiskScore > a.base.ProducerRisk {
		add(0.7, 0.8)
	}

	// 5. Liquidity utilization breach.
	if fv.LiquidityUtilization > a.base.LiquidityUtil {
		risk := fv.LiquidityUtilization / 0.1
		if risk > 0.5 {
			risk = 0.5
		}
		add(risk, 0.7)
	}

	// 6. Weekend DEX activity.
	if fv.IsDexSwap {
		if wd := a.now().UTC().Weekday(); wd == time.Saturday || wd == time.Sunday {
			add(0.2, 0.6)
		}
	}

	// 7. Compute price urgency.
	if fv.ComputeUnitPrice > a.base.ComputePriceHigh {
		add(0.45, 0.7)
	}

	// 8. Price deviation vs reference.
	if fv.PriceDeviationPct > 2.0 {
		add(0.6, 0.85)
	}

	// 9. Known bot pattern.
	if fv.MatchesBotPattern {
		add(0.7, 0.9)
	}

	if len(risks) == 0 {
		return 0.15, 0.5
	}

	score := blendRisks(risks)
	confidence := mean(confidences)
	return score, confidence
}

// AdjustedSnapshot returns the current runtime-adjusted thresholds.
func (a *Adaptive) AdjustedSnapshot() AdjustedThresholds {
	a.mu.Lock()
	defer a.mu.Unlock()

	return AdjustedThresholds{
		HighTipLamports: uint64(float64(a.base.HighTipLamports) * (1.0 + a.congestionFactor)),
		PriceImpactBps:  a.base.PriceImpactBps * a.volatilityMultiplier,
		ProducerRisk:    a.base.ProducerRisk,
		TimeAdjustment:  a.calcTimeAdjustment(),
	}
}

// tipPercentile ranks a tip against the rolling tip history (strictly-below
// fraction, 0-100). The current tip has already been appended, so a lone
// first observation ranks at 0.
func (a *Adaptive) tipPercentile(tip uint64) float64 {
	if len(a.tipHistory) == 0 {
		return 50.0
	}
	below := 0
	for _, t := range a.tipHistory {
		if t < tip {
			below++
		}
	}
	return float64(below) / float64(len(a.tipHistory)) * 100.0
}

// blendRisks combines fired contributions as 0.7*max + 0.3*mean, capped at
// 0.95 to always leave headroom below certainty. The max term lets any single
// strong signal dominate; the mean term rewards corroboration.
func blendRisks(risks []float64) float64 {
	maxRisk := risks[0]
	for _, r := range risks[1:] {
		if r > maxRisk {
			maxRisk = r
		}
	}
	blended := maxRisk*0.7 + mean(risks)*0.3
	if blended > 0.95 {
		blended = 0.95
	}
	return blended
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func appendBounded[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = append(s[:0], s[len(s)-max:]...)
	}
	return s
}
