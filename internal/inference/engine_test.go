package inference_test

import (
	"bytes"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/drift"
	"solana-mev-engine/internal/features"
	"solana-mev-engine/internal/heuristics"
	"solana-mev-engine/internal/inference"
	"solana-mev-engine/internal/intel"
	"solana-mev-engine/internal/shadow"
	"solana-mev-engine/internal/storage/memory"
)

const maliciousProducer = "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2"

func benignTx(sig string) *domain.TransactionData {
	return &domain.TransactionData{
		Signature:        sig,
		Slot:             1000,
		FeePayer:         "PayerAAA",
		ComputeUnitLimit: 200_000,
		ComputeUnitPrice: 5_000,
		TipLamports:      1_000,
		TotalFeeLamports: 6_000,
		AccountCount:     8,
		InstructionCount: 3,
		TxSizeBytes:      500,
		TimestampMs:      1_700_000_000_000,
	}
}

func suspiciousTx(sig string) *domain.TransactionData {
	tx := benignTx(sig)
	tx.ComputeUnitPrice = 250_000
	tx.TipLamports = 200_000
	tx.NextProducerKey = maliciousProducer
	tx.Swap = &domain.SwapDetails{
		InputMint:            "MintA",
		OutputMint:           "MintB",
		InputAmount:          100,
		OutputAmount:         95,
		ExpectedOutput:       100,
		RouteLength:          1,
		SlippageToleranceBps: 50,
		PoolLiquidityUSD:     10_000,
	}
	return tx
}

func newWarmEngine(opts inference.Options) *inference.Engine {
	e := inference.NewEngine(opts)
	e.Warmup(1)
	return e
}

func TestEngine_PredictBeforeWarmup(t *testing.T) {
	e := inference.NewEngine(inference.Options{})

	_, err := e.Predict(benignTx("sig1"))
	assert.ErrorIs(t, err, inference.ErrNotWarmedUp)
	assert.False(t, e.WarmedUp())
}

func TestEngine_Predict_Benign(t *testing.T) {
	e := newWarmEngine(inference.Options{})

	pred, err := e.Predict(benignTx("sig1"))
	require.NoError(t, err)

	assert.Equal(t, "low", pred.Band)
	assert.False(t, pred.IsMev)
	assert.Less(t, pred.RiskScore, 0.5)
	assert.NotEmpty(t, pred.RequestID)
	assert.Equal(t, inference.DefaultModelVersion, pred.ModelVersion)
	assert.Nil(t, pred.Drift, "plain Predict must not run drift detection")
}

func TestEngine_Predict_SuspiciousScoresHigher(t *testing.T) {
	extractor := features.NewExtractor(features.Options{
		Intel: intel.NewStaticLookup(intel.SampleIntel()),
	})
	e := newWarmEngine(inference.Options{Extractor: extractor})

	benign, err := e.Predict(benignTx("sig1"))
	require.NoError(t, err)

	sus, err := e.Predict(suspiciousTx("sig2"))
	require.NoError(t, err)

	assert.Greater(t, sus.RiskScore, benign.RiskScore)
	assert.True(t, sus.IsMev)
}

func TestEngine_Predict_ValidationBlocksScoring(t *testing.T) {
	e := newWarmEngine(inference.Options{})

	tx := benignTx("sig1")
	tx.ComputeUnitPrice = 2_000_000 // beyond plausible range

	_, err := e.Predict(tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute_unit_price")

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.Zero(t, e.Info().Predictions, "rejected input must not count as a prediction")
}

func TestEngine_PredictWithShadow_DriftWindowGrows(t *testing.T) {
	e := newWarmEngine(inference.Options{
		Drift: drift.NewDetector(drift.Options{}),
	})

	pred, err := e.PredictWithShadow(benignTx("sig1"))
	require.NoError(t, err)

	// First vector scores against empty history: defined as no drift.
	require.NotNil(t, pred.Drift)
	assert.False(t, pred.Drift.DriftDetected)

	stats, ok := e.DriftStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.HistorySize)

	_, err = e.PredictWithShadow(benignTx("sig2"))
	require.NoError(t, err)
	stats, _ = e.DriftStats()
	assert.Equal(t, 2, stats.HistorySize)
}

func TestEngine_PredictWithShadow_LogsComparison(t *testing.T) {
	store := memory.NewShadowLogStore()
	mgr := shadow.NewManager(shadow.Options{Store: store, Enabled: true})
	defer mgr.Close()

	e := newWarmEngine(inference.Options{Shadow: mgr})

	pred, err := e.PredictWithShadow(benignTx("sig1"))
	require.NoError(t, err)

	mgr.Flush()
	records := store.All()
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, pred.RequestID, rec.RequestID)
	assert.Equal(t, "sig1", rec.Signature)
	assert.Equal(t, shadow.DefaultModelVersion, rec.ModelVersion)
	require.NotNil(t, rec.ProductionRiskScore)
	assert.Equal(t, pred.RiskScore, *rec.ProductionRiskScore)
	require.NotNil(t, rec.ProductionIsMev)
	assert.Equal(t, pred.IsMev, *rec.ProductionIsMev)
	assert.Len(t, rec.Features, domain.FeatureCount)

	// The candidate model scored on the consumer side: a benign vector
	// fires no factor, so the flat field scorer reports its low default.
	assert.Empty(t, rec.Error)
	assert.InDelta(t, 0.15, rec.ShadowRiskScore, 1e-9)
	assert.False(t, rec.ShadowIsMev)
}

func TestEngine_PredictWithShadow_DisabledManagerLogsNothing(t *testing.T) {
	store := memory.NewShadowLogStore()
	mgr := shadow.NewManager(shadow.Options{Store: store})
	defer mgr.Close()

	e := newWarmEngine(inference.Options{Shadow: mgr})

	_, err := e.PredictWithShadow(benignTx("sig1"))
	require.NoError(t, err)

	mgr.Flush()
	assert.Zero(t, store.Len())
}

func TestEngine_RequestIDsUnique(t *testing.T) {
	e := newWarmEngine(inference.Options{})

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		pred, err := e.Predict(benignTx("sig"))
		require.NoError(t, err)
		if _, dup := seen[pred.RequestID]; dup {
			t.Fatalf("duplicate request id %s", pred.RequestID)
		}
		seen[pred.RequestID] = struct{}{}
	}
}

func TestEngine_UpdateMarketConditions(t *testing.T) {
	e := newWarmEngine(inference.Options{})

	e.UpdateMarketConditions(domain.MarketConditions{
		Volatility24hPct: 60,
		TPSUtilization:   0.9,
	})

	snap, ok := e.Thresholds()
	require.True(t, ok)
	assert.Equal(t, uint64(150_000), snap.HighTipLamports)
	assert.Equal(t, 300.0, snap.PriceImpactBps)
}

func TestEngine_Info(t *testing.T) {
	e := newWarmEngine(inference.Options{})

	_, err := e.Predict(benignTx("sig1"))
	require.NoError(t, err)

	info := e.Info()
	assert.Equal(t, inference.DefaultModelVersion, info.Version)
	assert.Equal(t, domain.FeatureSchemaVersion, info.SchemaVersion)
	assert.Equal(t, domain.FeatureCount, info.FeatureCount)
	assert.True(t, info.WarmedUp)
	assert.Equal(t, uint64(1), info.Predictions)
	assert.Equal(t, inference.DefaultLatencyTargetMs, info.LatencyTargetMs)
	assert.True(t, info.SLOCompliant)
	assert.Equal(t, 1.0, info.SLOCompliance)
}

// fixedScorer always reports the same score, bypassing the staged pipeline.
type fixedScorer struct {
	score      float64
	confidence float64
	delay      time.Duration
}

func (s fixedScorer) Predict(_ *domain.FeatureVector) (domain.RiskScore, float64) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return domain.NewRiskScore(s.score), s.confidence
}

func TestEngine_SandwichVictimScoresHighBand(t *testing.T) {
	extractor := features.NewExtractor(features.Options{
		Intel: intel.NewStaticLookup(intel.SampleIntel()),
	})
	weekday := func() time.Time {
		return time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)
	}
	pipeline := heuristics.NewPipeline(heuristics.PipelineOptions{
		Adaptive: heuristics.NewAdaptive(heuristics.AdaptiveOptions{Now: weekday}),
	})

	e := inference.NewEngine(inference.Options{
		Extractor: extractor,
		Scorer:    pipeline,
	})
	e.Warmup(100)

	// Attacker legs around the victim: same pair bought one slot before,
	// reversed pair sold one slot after. Only the extractor sees them.
	front := benignTx("front")
	front.Slot = 100
	front.FeePayer = "AttackerAAA"
	front.Swap = &domain.SwapDetails{
		InputMint: "MintSOL", OutputMint: "MintUSDC",
		InputAmount: 50, OutputAmount: 49, ExpectedOutput: 50,
		RouteLength: 1, SlippageToleranceBps: 50, PoolLiquidityUSD: 100_000,
	}
	back := benignTx("back")
	back.Slot = 102
	back.FeePayer = "AttackerAAA"
	back.Swap = &domain.SwapDetails{
		InputMint: "MintUSDC", OutputMint: "MintSOL",
		InputAmount: 49, OutputAmount: 50, ExpectedOutput: 49,
		RouteLength: 1, SlippageToleranceBps: 50, PoolLiquidityUSD: 100_000,
	}
	extractor.Extract(front)
	extractor.Extract(back)

	victim := benignTx("victim")
	victim.Slot = 101
	victim.TipLamports = 200_000
	victim.NextProducerKey = maliciousProducer
	victim.Swap = &domain.SwapDetails{
		InputMint: "MintSOL", OutputMint: "MintUSDC",
		InputAmount: 1000, OutputAmount: 970, ExpectedOutput: 1000,
		RouteLength: 1, SlippageToleranceBps: 50, PoolLiquidityUSD: 100_000,
	}

	pred, err := e.Predict(victim)
	require.NoError(t, err)

	assert.Equal(t, "high", pred.Band)
	assert.GreaterOrEqual(t, pred.RiskScore, 0.8)
	assert.True(t, pred.IsMev)
}

func TestEngine_HighRiskSignalFires(t *testing.T) {
	var signaled []*inference.Prediction
	e := newWarmEngine(inference.Options{
		Scorer: fixedScorer{score: 0.95, confidence: 0.9},
		OnHighRisk: func(p *inference.Prediction) {
			signaled = append(signaled, p)
		},
	})

	pred, err := e.Predict(benignTx("sig1"))
	require.NoError(t, err)

	require.Len(t, signaled, 1)
	assert.Equal(t, pred.RequestID, signaled[0].RequestID)
	assert.Equal(t, 0.95, signaled[0].RiskScore)
}

func TestEngine_HighRiskSignalSkippedBelowThreshold(t *testing.T) {
	fired := false
	e := newWarmEngine(inference.Options{
		OnHighRisk: func(*inference.Prediction) { fired = true },
	})

	_, err := e.Predict(benignTx("sig1"))
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestEngine_DefaultHighRiskSignalLogs(t *testing.T) {
	var buf bytes.Buffer
	e := newWarmEngine(inference.Options{
		Scorer: fixedScorer{score: 0.95, confidence: 0.9},
		Logger: log.New(&buf, "", 0),
	})

	_, err := e.Predict(benignTx("sig1"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "high-risk prediction")
}

func TestEngine_LatencyOverrunLogged(t *testing.T) {
	var buf bytes.Buffer
	e := newWarmEngine(inference.Options{
		Scorer:          fixedScorer{score: 0.2, confidence: 0.9, delay: 5 * time.Millisecond},
		LatencyTargetMs: 1,
		Logger:          log.New(&buf, "", 0),
	})

	_, err := e.Predict(benignTx("sig1"))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "over 1ms target")
	assert.Less(t, e.SLOCompliance(), 1.0)
}
