package domain

import (
	"fmt"
	"math"
)

// FeatureCount is the fixed length of the scoring feature vector. The array
// order produced by ToArray is a versioned wire contract with any scoring
// backend; changing field order requires bumping FeatureSchemaVersion.
const FeatureCount = 55

// FeatureSchemaVersion tags the current field ordering of ToArray.
const FeatureSchemaVersion = "v1"

// FeatureVector is the immutable, fixed-order numeric record scored by the
// inference engine. Fields are grouped semantically:
//   - base transaction metadata (8)
//   - DEX/swap economics (12)
//   - market/oracle context (8)
//   - MEV pattern indicators (15)
//   - next-block-producer risk intel (12)
type FeatureVector struct {
	// Base (8)
	Slot             uint64
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64 // micro-lamports per CU, high values indicate urgency
	TipLamports      uint64 // tips >100k lamports correlate strongly with MEV
	TotalFeeLamports uint64
	AccountCount     uint32
	InstructionCount uint32
	TxSizeBytes      uint32

	// DEX (12)
	IsDexSwap            bool
	InputAmount          float64
	OutputAmount         float64
	ExpectedOutput       float64
	PriceImpactBps       float64 // >200 bps suggests manipulation
	SlippageToleranceBps float64
	SwapRouteLength      uint32
	InputPriceUSD        float64
	OutputPriceUSD       float64
	TradeSizeUSD         float64
	PoolLiquidityUSD     float64
	LiquidityUtilization float64 // trade size / pool liquidity

	// Market (8)
	OraclePrice       float64
	OracleConfidence  float64 // wide confidence interval indicates manipulatable price
	OracleStalenessMs uint64
	PriceDeviationPct float64 // execution vs reference price, >2% suggests front-running
	Volume24hUSD      float64
	Volatility24hPct  float64
	MarketDepthUSD    float64
	IsHighRiskPair    bool

	// Patterns (15)
	HasSwapTriplet            bool // front-victim-back signature, strongest sandwich indicator
	IsPotentialSandwichVictim bool
	IsPotentialFrontRun       bool
	IsPotentialBackRun        bool
	RecentSwapsSamePair       uint32  // last 10 slots
	RecentSwapsSameActor      uint32  // last 100 slots
	TipPercentileVsRecent     float64 // 0-100, >95 suggests aggressive bot
	TimeSinceLastSlotMs       uint64
	AccountCollisionCount     uint32
	TripletTimeSpreadMs       uint64
	UsesLookupTables          bool
	PriorityScore             float64 // bounded blend of compute price and tip
	MatchesBotPattern         bool
	ArbOpportunityScore       float64
	HasFlashLoan              bool

	// Producer (12)
	NextProducerKey               string // base58, encoded as a hashed feature
	NextProducerMalicious         bool
	NextProducerMevRate           float64
	NextProducerStakeSol          float64
	NextProducerCommissionPct     float64
	NextProducerParticipationRate float64 // bundle-relay participation rate
	NextProducerAvgTip            uint64
	NextProducerRecentBlocks      uint32
	NextProducerSkipRate          float64
	ProducerRiskScore             float64 // aggregated 0-1 risk
	SlotsUntilNextProducer        uint32
	ProducerPredictionConfidence  float64
}

// ToArray flattens the vector into its wire representation. The order is the
// FeatureSchemaVersion contract; FeatureFieldNames documents it index by index.
func (f *FeatureVector) ToArray() [FeatureCount]float64 {
	return [FeatureCount]float64{
		// Base (0-7)
		float64(f.Slot),
		float64(f.ComputeUnitLimit),
		float64(f.ComputeUnitPrice),
		float64(f.TipLamports),
		float64(f.TotalFeeLamports),
		float64(f.AccountCount),
		float64(f.InstructionCount),
		float64(f.TxSizeBytes),

		// DEX (8-19)
		boolFeature(f.IsDexSwap),
		f.InputAmount,
		f.OutputAmount,
		f.ExpectedOutput,
		f.PriceImpactBps,
		f.SlippageToleranceBps,
		float64(f.SwapRouteLength),
		f.InputPriceUSD,
		f.OutputPriceUSD,
		f.TradeSizeUSD,
		f.PoolLiquidityUSD,
		f.LiquidityUtilization,

		// Market (20-27)
		f.OraclePrice,
		f.OracleConfidence,
		float64(f.OracleStalenessMs),
		f.PriceDeviationPct,
		f.Volume24hUSD,
		f.Volatility24hPct,
		f.MarketDepthUSD,
		boolFeature(f.IsHighRiskPair),

		// Patterns (28-42)
		boolFeature(f.HasSwapTriplet),
		boolFeature(f.IsPotentialSandwichVictim),
		boolFeature(f.IsPotentialFrontRun),
		boolFeature(f.IsPotentialBackRun),
		float64(f.RecentSwapsSamePair),
		float64(f.RecentSwapsSameActor),
		f.TipPercentileVsRecent,
		float64(f.TimeSinceLastSlotMs),
		float64(f.AccountCollisionCount),
		float64(f.TripletTimeSpreadMs),
		boolFeature(f.UsesLookupTables),
		f.PriorityScore,
		boolFeature(f.MatchesBotPattern),
		f.ArbOpportunityScore,
		boolFeature(f.HasFlashLoan),

		// Producer (43-54)
		f.encodeProducerKey(),
		boolFeature(f.NextProducerMalicious),
		f.NextProducerMevRate,
		f.NextProducerStakeSol,
		f.NextProducerCommissionPct,
		f.NextProducerParticipationRate,
		float64(f.NextProducerAvgTip),
		float64(f.NextProducerRecentBlocks),
		f.NextProducerSkipRate,
		f.ProducerRiskScore,
		float64(f.SlotsUntilNextProducer),
		f.ProducerPredictionConfidence,
	}
}

// encodeProducerKey folds the producer key bytes into a stable [0,1) feature.
func (f *FeatureVector) encodeProducerKey() float64 {
	var sum uint64
	for i := 0; i < len(f.NextProducerKey); i++ {
		sum += uint64(f.NextProducerKey[i])
	}
	return float64(sum%1000) / 1000.0
}

// Plausibility bounds for validation. Values beyond these indicate upstream
// parsing bugs rather than extreme-but-real transactions.
const (
	MaxComputeUnitPrice = 1_000_000   // micro-lamports per CU
	MaxTipLamports      = 100_000_000 // lamports
	MaxPriceImpactBps   = 10_000
)

// ValidationError reports a malformed feature vector. Validation blocks
// scoring instead of clamping; silent clamping would mask upstream bugs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid feature %s: %s", e.Field, e.Reason)
}

// Validate rejects NaN/Infinity anywhere in the array representation and
// out-of-plausible-range values on critical fields.
func (f *FeatureVector) Validate() error {
	arr := f.ToArray()
	names := FeatureFieldNames()

	for i, v := range arr {
		if math.IsNaN(v) {
			return &ValidationError{Field: names[i], Reason: "NaN value"}
		}
		if math.IsInf(v, 0) {
			return &ValidationError{Field: names[i], Reason: "infinite value"}
		}
	}

	if f.ComputeUnitPrice > MaxComputeUnitPrice {
		return &ValidationError{Field: "compute_unit_price", Reason: fmt.Sprintf("%d exceeds %d", f.ComputeUnitPrice, MaxComputeUnitPrice)}
	}
	if f.TipLamports > MaxTipLamports {
		return &ValidationError{Field: "tip_lamports", Reason: fmt.Sprintf("%d exceeds %d", f.TipLamports, MaxTipLamports)}
	}
	if f.PriceImpactBps < 0 || f.PriceImpactBps > MaxPriceImpactBps {
		return &ValidationError{Field: "price_impact_bps", Reason: fmt.Sprintf("%.2f outside [0, %d]", f.PriceImpactBps, MaxPriceImpactBps)}
	}

	return nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
