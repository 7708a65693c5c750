package heuristics

import (
	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/observability"
)

// Stage discount factors and confidences, applied when validation fails.
const (
	stage2Discount   = 0.7
	stage2Confidence = 0.75
	stage3Discount   = 0.8
	stage3Confidence = 0.6

	stage1FastExitConfidence = 0.95
	stage3ConsensusQuorum    = 0.6
)

// Pipeline is the three-stage MEV detection pipeline. Stage 1 always runs;
// the later stages spend extra computation only on ambiguous or high-stakes
// transactions, keeping the common low-risk path fast.
type Pipeline struct {
	adaptive *Adaptive

	enablePatternValidation bool
	enableEnsembleVoting    bool
}

// PipelineOptions configures a Pipeline. Stage toggles default to enabled.
type PipelineOptions struct {
	Adaptive                 *Adaptive
	DisablePatternValidation bool
	DisableEnsembleVoting    bool
}

// NewPipeline creates a pipeline over the given adaptive scorer, creating a
// default one when nil.
func NewPipeline(opts PipelineOptions) *Pipeline {
	adaptive := opts.Adaptive
	if adaptive == nil {
		adaptive = NewAdaptive(AdaptiveOptions{})
	}
	return &Pipeline{
		adaptive:                adaptive,
		enablePatternValidation: !opts.DisablePatternValidation,
		enableEnsembleVoting:    !opts.DisableEnsembleVoting,
	}
}

// Adaptive exposes the underlying adaptive scorer for market condition
// updates and threshold snapshots.
func (p *Pipeline) Adaptive() *Adaptive {
	return p.adaptive
}

// Predict runs the staged decision process:
//
//	Stage 1: adaptive scoring; score < 0.5 exits immediately with confidence 0.95.
//	Stage 2: for 0.5 <= score < 0.8, at least 2 of 4 pattern checks must hold,
//	         otherwise the score is discounted by 0.7 and confidence drops to 0.75.
//	Stage 3: for score >= 0.8, at least 60% of 3 detectors must agree,
//	         otherwise the score is discounted by 0.8 and confidence drops to 0.6.
func (p *Pipeline) Predict(fv *domain.FeatureVector) (domain.RiskScore, float64) {
	score, confidence := p.adaptive.CalculateRisk(fv)

	if score < domain.MediumRiskThreshold {
		observability.RecordStageOutcome("stage1", "fast_exit")
		return domain.NewRiskScore(score), stage1FastExitConfidence
	}

	if p.enablePatternValidation && score < domain.HighRiskThreshold {
		if !p.validatePatterns(fv) {
			observability.RecordStageOutcome("stage2", "discounted")
			return domain.NewRiskScore(score * stage2Discount), stage2Confidence
		}
		observability.RecordStageOutcome("stage2", "validated")
	}

	if p.enableEnsembleVoting && score >= domain.HighRiskThreshold {
		votes := []bool{
			p.detectSandwich(fv),
			p.detectBundleTip(fv),
			p.detectProducerCollusion(fv),
		}
		fired := 0
		for _, v := range votes {
			if v {
				fired++
			}
		}
		consensus := float64(fired) / float64(len(votes))
		if consensus < stage3ConsensusQuorum {
			observability.RecordStageOutcome("stage3", "discounted")
			return domain.NewRiskScore(score * stage3Discount), stage3Confidence
		}
		observability.RecordStageOutcome("stage3", "confirmed")
	}

	return domain.NewRiskScore(score), confidence
}

// validatePatterns requires at least 2 of 4 independent pattern checks.
func (p *Pipeline) validatePatterns(fv *domain.FeatureVector) bool {
	matches := 0

	// High tip co-occurring with a DEX swap.
	if fv.TipLamports > p.adaptive.base.HighTipLamports && fv.IsDexSwap {
		matches++
	}

	// Price impact exceeding the declared slippage tolerance by half again.
	if fv.PriceImpactBps > fv.SlippageToleranceBps*1.5 {
		matches++
	}

	// Repeated activity on the same pair in the recent window.
	if fv.RecentSwapsSamePair > 3 {
		matches++
	}

	// Aggressive priority combined with a malicious next producer.
	if fv.PriorityScore > 0.7 && fv.NextProducerMalicious {
		matches++
	}

	return matches >= 2
}

// detectSandwich matches the classic front-victim-back signature.
func (p *Pipeline) detectSandwich(fv *domain.FeatureVector) bool {
	return fv.HasSwapTriplet && fv.PriceImpactBps > 150 && fv.IsDexSwap
}

// detectBundleTip matches aggressive bundle tipping toward a producer that
// participates heavily in the relay.
func (p *Pipeline) detectBundleTip(fv *domain.FeatureVector) bool {
	return fv.TipLamports > p.adaptive.base.HighTipLamports &&
		fv.NextProducerParticipationRate > 0.5 &&
		fv.PriorityScore > 0.6
}

// detectProducerCollusion matches a malicious next producer with a high
// aggregated risk and a history of MEV extraction.
func (p *Pipeline) detectProducerCollusion(fv *domain.FeatureVector) bool {
	return fv.NextProducerMalicious &&
		fv.ProducerRiskScore > 0.7 &&
		fv.NextProducerMevRate > 0.3
}
