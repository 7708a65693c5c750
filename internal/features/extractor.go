// Package features converts raw transaction data plus short-term swap history
// into the fixed-order feature vector consumed by the inference engine.
package features

import (
	"sync"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/intel"
)

// Default history capacity and window sizes (slots) for the pattern features.
const (
	DefaultMaxHistory      = 1000
	DefaultTripletWindow   = 2   // backward and forward slots around the victim
	DefaultSamePairWindow  = 10  // recent-swaps-same-pair lookback
	DefaultSameActorWindow = 100 // recent-swaps-same-actor lookback
	DefaultTipWindow       = 100 // tip percentile lookback
)

const (
	neutralTipPercentile       = 50.0
	priorityNormalizerLamports = 1_000_000
)

// PriceResolver supplies an already-resolved reference price for a mint.
// Fetching is an external collaborator's concern; a nil resolver or a false
// return degrades the DEX economics features to neutral defaults.
type PriceResolver interface {
	ReferencePrice(mint string) (price, confidence float64, ok bool)
}

// swapRecord is one entry of the rolling swap history. The buffer is owned
// exclusively by the extractor; eviction is oldest-first at capacity.
type swapRecord struct {
	slot        uint64
	actor       string
	inputMint   string
	outputMint  string
	tipLamports uint64
	timestampMs int64
}

// Extractor builds feature vectors and owns the rolling swap history.
type Extractor struct {
	mu sync.Mutex

	recentSwaps []swapRecord
	maxHistory  int

	tripletWindow   uint64
	samePairWindow  uint64
	sameActorWindow uint64
	tipWindow       uint64

	intel     intel.Lookup
	prices    PriceResolver
	botActors map[string]struct{}
}

// Options configures an Extractor. Zero values select the defaults above.
type Options struct {
	MaxHistory      int
	TripletWindow   uint64
	SamePairWindow  uint64
	SameActorWindow uint64
	TipWindow       uint64

	// Intel is the read-only producer reputation lookup. Nil degrades all
	// producer features to neutral defaults.
	Intel intel.Lookup

	// Prices resolves reference prices for DEX economics features.
	Prices PriceResolver

	// BotActorKeys lists fee-payer keys of known MEV bot operators.
	BotActorKeys []string
}

// NewExtractor creates an extractor with the given collaborators.
func NewExtractor(opts Options) *Extractor {
	maxHistory := opts.MaxHistory
	if maxHistory == 0 {
		maxHistory = DefaultMaxHistory
	}
	tripletWindow := opts.TripletWindow
	if tripletWindow == 0 {
		tripletWindow = DefaultTripletWindow
	}
	samePairWindow := opts.SamePairWindow
	if samePairWindow == 0 {
		samePairWindow = DefaultSamePairWindow
	}
	sameActorWindow := opts.SameActorWindow
	if sameActorWindow == 0 {
		sameActorWindow = DefaultSameActorWindow
	}
	tipWindow := opts.TipWindow
	if tipWindow == 0 {
		tipWindow = DefaultTipWindow
	}

	botActors := make(map[string]struct{}, len(opts.BotActorKeys))
	for _, k := range opts.BotActorKeys {
		botActors[k] = struct{}{}
	}

	return &Extractor{
		recentSwaps:     make([]swapRecord, 0, maxHistory),
		maxHistory:      maxHistory,
		tripletWindow:   tripletWindow,
		samePairWindow:  samePairWindow,
		sameActorWindow: sameActorWindow,
		tipWindow:       tipWindow,
		intel:           opts.Intel,
		prices:          opts.Prices,
		botActors:       botActors,
	}
}

// Extract computes the feature vector for one transaction. It never fails:
// missing collaborator data degrades to neutral defaults. The history update
// happens after feature computation, so a transaction never sees itself as
// history.
func (e *Extractor) Extract(tx *domain.TransactionData) domain.FeatureVector {
	e.mu.Lock()
	defer e.mu.Unlock()

	hasTriplet, tripletSpreadMs := e.detectSwapTriplet(tx)

	fv := domain.FeatureVector{
		// Base
		Slot:             tx.Slot,
		ComputeUnitLimit: tx.ComputeUnitLimit,
		ComputeUnitPrice: tx.ComputeUnitPrice,
		TipLamports:      tx.TipLamports,
		TotalFeeLamports: tx.TotalFeeLamports,
		AccountCount:     tx.AccountCount,
		InstructionCount: tx.InstructionCount,
		TxSizeBytes:      tx.TxSizeBytes,

		// Patterns
		HasSwapTriplet:            hasTriplet,
		IsPotentialSandwichVictim: hasTriplet,
		TripletTimeSpreadMs:       tripletSpreadMs,
		RecentSwapsSamePair:       e.countRecentSwapsSamePair(tx),
		RecentSwapsSameActor:      e.countRecentSwapsSameActor(tx),
		TipPercentileVsRecent:     e.tipPercentile(tx),
		TimeSinceLastSlotMs:       tx.TimeSinceLastSlotMs,
		UsesLookupTables:          tx.UsesLookupTables,
		PriorityScore:             priorityScore(tx),
		MatchesBotPattern:         e.matchesBotPattern(tx),

		// Producer
		NextProducerKey: tx.NextProducerKey,
	}

	e.fillProducerFeatures(&fv, tx.NextProducerKey)

	if tx.Swap != nil {
		e.fillDexFeatures(&fv, tx.Swap)
	}

	e.updateHistory(tx)

	return fv
}

// fillDexFeatures derives the swap economics features. All of them stay at
// zero for non-DEX transactions.
func (e *Extractor) fillDexFeatures(fv *domain.FeatureVector, swap *domain.SwapDetails) {
	fv.IsDexSwap = true
	fv.InputAmount = swap.InputAmount
	fv.OutputAmount = swap.OutputAmount
	fv.ExpectedOutput = swap.ExpectedOutput
	fv.SwapRouteLength = swap.RouteLength
	fv.SlippageToleranceBps = swap.SlippageToleranceBps
	fv.PoolLiquidityUSD = swap.PoolLiquidityUSD

	if e.prices != nil {
		if price, conf, ok := e.prices.ReferencePrice(swap.InputMint); ok {
			fv.InputPriceUSD = price
			fv.OraclePrice = price
			fv.OracleConfidence = conf

			if swap.InputAmount > 0 && price > 0 {
				executionPrice := swap.OutputAmount / swap.InputAmount
				fv.PriceDeviationPct = (executionPrice - price) / price * 100.0
			}
		}
		if price, _, ok := e.prices.ReferencePrice(swap.OutputMint); ok {
			fv.OutputPriceUSD = price
		}
	}

	fv.TradeSizeUSD = swap.InputAmount * fv.InputPriceUSD
	if swap.PoolLiquidityUSD > 0 {
		fv.LiquidityUtilization = fv.TradeSizeUSD / swap.PoolLiquidityUSD
	}

	if swap.ExpectedOutput > 0 {
		impact := (swap.ExpectedOutput - swap.OutputAmount) / swap.ExpectedOutput * 10_000
		if impact < 0 {
			impact = -impact
		}
		fv.PriceImpactBps = impact
	}
}

// fillProducerFeatures resolves next-producer intel. Unknown producers get
// the default low risk instead of an error.
func (e *Extractor) fillProducerFeatures(fv *domain.FeatureVector, pubkey string) {
	fv.ProducerRiskScore = intel.DefaultUnknownRisk
	if e.intel == nil || pubkey == "" {
		return
	}
	p, ok := e.intel.Get(pubkey)
	if !ok {
		return
	}
	fv.NextProducerMalicious = p.IsMalicious
	fv.NextProducerMevRate = p.MevRate
	fv.NextProducerStakeSol = p.StakeSol
	fv.NextProducerCommissionPct = p.CommissionPct
	fv.NextProducerParticipationRate = p.ParticipationRate
	fv.NextProducerAvgTip = p.AvgTipLamports
	fv.NextProducerRecentBlocks = p.RecentBlocks
	fv.NextProducerSkipRate = p.SkipRate
	fv.ProducerRiskScore = intel.RiskScore(p)
}

// detectSwapTriplet looks for the sandwich signature around the current swap:
// a recent swap from a different actor on the same pair within the backward
// window, followed by a swap from that same actor on the reversed pair within
// the forward window. Returns on the first match.
func (e *Extractor) detectSwapTriplet(tx *domain.TransactionData) (bool, uint64) {
	if tx.Swap == nil {
		return false, 0
	}
	victim := tx.Swap
	minSlot := tx.Slot - min64(e.tripletWindow, tx.Slot)
	maxSlot := tx.Slot + e.tripletWindow

	for _, front := range e.recentSwaps {
		if front.slot < minSlot || front.slot > tx.Slot {
			continue
		}
		if front.actor == tx.FeePayer {
			continue
		}
		if front.inputMint != victim.InputMint || front.outputMint != victim.OutputMint {
			continue
		}

		for _, back := range e.recentSwaps {
			if back.actor != front.actor {
				continue
			}
			if back.slot < tx.Slot || back.slot > maxSlot {
				continue
			}
			if back.inputMint == victim.OutputMint && back.outputMint == victim.InputMint {
				spread := tx.TimestampMs - front.timestampMs
				if spread < 0 {
					spread = 0
				}
				return true, uint64(spread)
			}
		}
	}
	return false, 0
}

func (e *Extractor) countRecentSwapsSamePair(tx *domain.TransactionData) uint32 {
	if tx.Swap == nil {
		return 0
	}
	minSlot := tx.Slot - min64(e.samePairWindow, tx.Slot)
	var n uint32
	for _, s := range e.recentSwaps {
		if s.slot >= minSlot && s.inputMint == tx.Swap.InputMint && s.outputMint == tx.Swap.OutputMint {
			n++
		}
	}
	return n
}

func (e *Extractor) countRecentSwapsSameActor(tx *domain.TransactionData) uint32 {
	minSlot := tx.Slot - min64(e.sameActorWindow, tx.Slot)
	var n uint32
	for _, s := range e.recentSwaps {
		if s.slot >= minSlot && s.actor == tx.FeePayer {
			n++
		}
	}
	return n
}

// tipPercentile ranks the transaction's tip against recent recorded tips:
// fraction strictly below, scaled to 0-100. Neutral 50 with no history.
func (e *Extractor) tipPercentile(tx *domain.TransactionData) float64 {
	minSlot := tx.Slot - min64(e.tipWindow, tx.Slot)
	var total, below int
	for _, s := range e.recentSwaps {
		if s.slot < minSlot {
			continue
		}
		total++
		if s.tipLamports < tx.TipLamports {
			below++
		}
	}
	if total == 0 {
		return neutralTipPercentile
	}
	return float64(below) / float64(total) * 100.0
}

// priorityScore is the bounded average of normalized compute price and tip.
func priorityScore(tx *domain.TransactionData) float64 {
	feeScore := float64(tx.ComputeUnitPrice) / priorityNormalizerLamports
	if feeScore > 1 {
		feeScore = 1
	}
	tipScore := float64(tx.TipLamports) / priorityNormalizerLamports
	if tipScore > 1 {
		tipScore = 1
	}
	return (feeScore + tipScore) / 2
}

func (e *Extractor) matchesBotPattern(tx *domain.TransactionData) bool {
	_, ok := e.botActors[tx.FeePayer]
	return ok
}

// updateHistory appends the current swap and evicts oldest entries beyond
// capacity. Non-DEX transactions leave the history untouched.
func (e *Extractor) updateHistory(tx *domain.TransactionData) {
	if tx.Swap == nil {
		return
	}
	e.recentSwaps = append(e.recentSwaps, swapRecord{
		slot:        tx.Slot,
		actor:       tx.FeePayer,
		inputMint:   tx.Swap.InputMint,
		outputMint:  tx.Swap.OutputMint,
		tipLamports: tx.TipLamports,
		timestampMs: tx.TimestampMs,
	})
	if excess := len(e.recentSwaps) - e.maxHistory; excess > 0 {
		e.recentSwaps = append(e.recentSwaps[:0], e.recentSwaps[excess:]...)
	}
}

// HistoryLen reports the current rolling buffer size.
func (e *Extractor) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.recentSwaps)
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
