package heuristics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/observability"
)

func newTestPipeline() *Pipeline {
	return NewPipeline(PipelineOptions{
		Adaptive: newTestAdaptive(wednesdayMorning),
	})
}

func TestPipelineStage1FastExit(t *testing.T) {
	p := newTestPipeline()

	score, confidence := p.Predict(&domain.FeatureVector{})

	assert.Equal(t, "low", score.Band())
	assert.InDelta(t, 0.15, score.Score(), 1e-9)
	assert.Equal(t, 0.95, confidence)
}

func TestPipelineStage2DiscountsUnvalidated(t *testing.T) {
	p := newTestPipeline()

	// Producer risk (0.7) and compute price (0.45) fire for a medium raw
	// score of 0.6625, but none of the pattern checks hold.
	score, confidence := p.Predict(&domain.FeatureVector{
		ProducerRiskScore: 0.8,
		ComputeUnitPrice:  250_000,
	})

	assert.InDelta(t, 0.6625*stage2Discount, score.Score(), 1e-9)
	assert.Equal(t, stage2Confidence, confidence)
	assert.Equal(t, "low", score.Band())
}

func TestPipelineStage2PassesValidated(t *testing.T) {
	p := newTestPipeline()

	// Same medium-band score, but the tip+DEX and impact-over-slippage
	// checks both hold, so the raw score survives.
	score, confidence := p.Predict(&domain.FeatureVector{
		ProducerRiskScore:    0.8,
		ComputeUnitPrice:     250_000,
		TipLamports:          150_000,
		IsDexSwap:            true,
		PriceImpactBps:       300,
		SlippageToleranceBps: 100,
	})

	assert.InDelta(t, 0.65125, score.Score(), 1e-9)
	assert.InDelta(t, (0.6+0.85+0.8+0.7)/4, confidence, 1e-9)
	assert.Equal(t, "medium", score.Band())
}

func TestPipelineStage3ConsensusConfirms(t *testing.T) {
	p := newTestPipeline()

	// Sandwich and producer-collusion detectors agree (2 of 3 >= 60%), so
	// the high raw score of 0.845 stands.
	score, confidence := p.Predict(&domain.FeatureVector{
		HasSwapTriplet:        true,
		IsDexSwap:             true,
		PriceImpactBps:        300,
		ProducerRiskScore:     0.9,
		NextProducerMalicious: true,
		NextProducerMevRate:   0.4,
	})

	assert.InDelta(t, 0.845, score.Score(), 1e-9)
	assert.InDelta(t, (0.95+0.8+0.85)/3, confidence, 1e-9)
	assert.Equal(t, "high", score.Band())
}

func TestPipelineStage3DiscountsWithoutConsensus(t *testing.T) {
	p := newTestPipeline()

	// Triplet (0.9) and bot pattern (0.7) blend to 0.87, but without a DEX
	// swap or producer signals no detector votes.
	score, confidence := p.Predict(&domain.FeatureVector{
		HasSwapTriplet:    true,
		MatchesBotPattern: true,
	})

	assert.InDelta(t, 0.87*stage3Discount, score.Score(), 1e-9)
	assert.Equal(t, stage3Confidence, confidence)
	assert.Equal(t, "medium", score.Band())
}

func TestPipelineStagesDisabled(t *testing.T) {
	p := NewPipeline(PipelineOptions{
		Adaptive:                 newTestAdaptive(wednesdayMorning),
		DisablePatternValidation: true,
		DisableEnsembleVoting:    true,
	})

	// With both later stages off the raw adaptive score passes through.
	score, confidence := p.Predict(&domain.FeatureVector{
		ProducerRiskScore: 0.8,
		ComputeUnitPrice:  250_000,
	})

	assert.InDelta(t, 0.6625, score.Score(), 1e-9)
	assert.InDelta(t, (0.8+0.7)/2, confidence, 1e-9)
}

func TestPipelineDefaultAdaptive(t *testing.T) {
	p := NewPipeline(PipelineOptions{})
	assert.NotNil(t, p.Adaptive())
}

func TestPipelineRecordsStageOutcomes(t *testing.T) {
	stage1 := observability.DefaultMetrics.StageOutcomes.WithLabelValues("stage1", "fast_exit")
	stage2 := observability.DefaultMetrics.StageOutcomes.WithLabelValues("stage2", "discounted")
	stage3 := observability.DefaultMetrics.StageOutcomes.WithLabelValues("stage3", "discounted")
	before1 := testutil.ToFloat64(stage1)
	before2 := testutil.ToFloat64(stage2)
	before3 := testutil.ToFloat64(stage3)

	p := newTestPipeline()
	p.Predict(&domain.FeatureVector{})
	p.Predict(&domain.FeatureVector{
		ProducerRiskScore: 0.8,
		ComputeUnitPrice:  250_000,
	})
	p.Predict(&domain.FeatureVector{
		HasSwapTriplet:    true,
		MatchesBotPattern: true,
	})

	assert.Equal(t, before1+1, testutil.ToFloat64(stage1))
	assert.Equal(t, before2+1, testutil.ToFloat64(stage2))
	assert.Equal(t, before3+1, testutil.ToFloat64(stage3))
}
