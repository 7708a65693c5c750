// Package inference ties feature extraction, staged scoring, drift detection
// and shadow evaluation into a single scoring engine with a latency target.
package inference

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/drift"
	"solana-mev-engine/internal/features"
	"solana-mev-engine/internal/heuristics"
	"solana-mev-engine/internal/observability"
	"solana-mev-engine/internal/shadow"
)

// ErrNotWarmedUp is returned by Predict before Warmup has completed.
var ErrNotWarmedUp = errors.New("engine not warmed up")

const (
	// DefaultLatencyTargetMs is the per-prediction latency target. Overruns
	// are observed and counted, never enforced by aborting a prediction.
	DefaultLatencyTargetMs = 50

	// DefaultWarmupIterations is the number of synthetic predictions run by
	// Warmup to page in code paths and settle allocator state.
	DefaultWarmupIterations = 100

	// sloComplianceTarget is the fraction of predictions that must meet the
	// latency target for the engine to report itself SLO-compliant.
	sloComplianceTarget = 0.9

	// DefaultModelVersion identifies the production heuristic model.
	DefaultModelVersion = "heuristic-v1"

	// highRiskSignalThreshold is the risk score at or above which OnHighRisk
	// fires for downstream compliance handling.
	highRiskSignalThreshold = 0.9
)

// Scorer turns a feature vector into a risk score with a confidence.
// heuristics.Pipeline is the production implementation.
type Scorer interface {
	Predict(fv *domain.FeatureVector) (domain.RiskScore, float64)
}

// Prediction is the result of scoring one transaction.
type Prediction struct {
	RequestID    string       `json:"request_id"`
	RiskScore    float64      `json:"risk_score"`
	Band         string       `json:"band"`
	IsMev        bool         `json:"is_mev"`
	Confidence   float64      `json:"confidence"`
	ModelVersion string       `json:"model_version"`
	LatencyUs    uint64       `json:"latency_us"`
	Drift        *drift.Score `json:"drift,omitempty"`
}

// ModelInfo describes the loaded model and engine state.
type ModelInfo struct {
	Version         string  `json:"version"`
	SchemaVersion   string  `json:"schema_version"`
	FeatureCount    int     `json:"feature_count"`
	WarmedUp        bool    `json:"warmed_up"`
	Predictions     uint64  `json:"predictions"`
	SLOCompliance   float64 `json:"slo_compliance"`
	SLOCompliant    bool    `json:"slo_compliant"`
	LatencyTargetMs int     `json:"latency_target_ms"`
}

// Options configures an Engine. Zero values select production defaults.
type Options struct {
	// Extractor builds feature vectors. A default stateful extractor is
	// created when nil.
	Extractor *features.Extractor

	// Scorer is the production model. Defaults to a staged pipeline over
	// default thresholds.
	Scorer Scorer

	// Drift observes production feature vectors. Optional.
	Drift *drift.Detector

	// Shadow receives candidate-model evaluation requests. The candidate
	// model itself is configured on the manager. Optional.
	Shadow *shadow.Manager

	// OnHighRisk is called for every prediction scoring at or above
	// highRiskSignalThreshold. Defaults to a warning on Logger.
	OnHighRisk func(*Prediction)

	ModelVersion    string
	LatencyTargetMs int

	// Logger for warmup, overruns and high-risk signals. Defaults to
	// log.Default().
	Logger *log.Logger
}

// Engine scores transactions for MEV risk. Safe for concurrent use.
type Engine struct {
	extractor *features.Extractor
	scorer    Scorer

	driftMu sync.Mutex
	drift   *drift.Detector

	shadow     *shadow.Manager
	onHighRisk func(*Prediction)

	modelVersion  string
	latencyTarget time.Duration
	logger        *log.Logger

	warmedUp    atomic.Bool
	predictions atomic.Uint64
	overruns    atomic.Uint64
	reqSeq      atomic.Uint64
}

// NewEngine creates an engine. Warmup must be called before Predict.
func NewEngine(opts Options) *Engine {
	extractor := opts.Extractor
	if extractor == nil {
		extractor = features.NewExtractor(features.Options{})
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = heuristics.NewPipeline(heuristics.PipelineOptions{})
	}
	modelVersion := opts.ModelVersion
	if modelVersion == "" {
		modelVersion = DefaultModelVersion
	}
	latencyTargetMs := opts.LatencyTargetMs
	if latencyTargetMs == 0 {
		latencyTargetMs = DefaultLatencyTargetMs
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	onHighRisk := opts.OnHighRisk
	if onHighRisk == nil {
		onHighRisk = func(p *Prediction) {
			logger.Printf("inference: high-risk prediction %s score=%.4f band=%s", p.RequestID, p.RiskScore, p.Band)
		}
	}

	return &Engine{
		extractor:     extractor,
		scorer:        scorer,
		drift:         opts.Drift,
		shadow:        opts.Shadow,
		onHighRisk:    onHighRisk,
		modelVersion:  modelVersion,
		latencyTarget: time.Duration(latencyTargetMs) * time.Millisecond,
		logger:        logger,
	}
}

// Warmup runs n synthetic predictions through the scorer and marks the
// engine ready. With n <= 0 DefaultWarmupIterations is used. Warmup vectors
// never touch extractor history or the drift window.
func (e *Engine) Warmup(n int) {
	if n <= 0 {
		n = DefaultWarmupIterations
	}

	fv := warmupVector()
	for i := 0; i < n; i++ {
		e.scorer.Predict(fv)
	}

	e.warmedUp.Store(true)
	e.logger.Printf("inference: warmed up with %d iterations", n)
}

// WarmedUp reports whether Warmup has completed.
func (e *Engine) WarmedUp() bool {
	return e.warmedUp.Load()
}

// Predict extracts features from the transaction and scores them with the
// production model. Validation failures block scoring and return the field
// that failed.
func (e *Engine) Predict(tx *domain.TransactionData) (*Prediction, error) {
	return e.predict(tx, false)
}

// PredictWithShadow is Predict plus drift observation and shadow evaluation.
// The drift verdict is computed against history that excludes the current
// vector, which is appended only afterwards. The candidate model runs on the
// shadow manager's consumer goroutine; submission never blocks, and a full
// queue drops the request.
func (e *Engine) PredictWithShadow(tx *domain.TransactionData) (*Prediction, error) {
	return e.predict(tx, true)
}

func (e *Engine) predict(tx *domain.TransactionData, withShadow bool) (*Prediction, error) {
	if !e.warmedUp.Load() {
		return nil, ErrNotWarmedUp
	}
	if tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}

	start := time.Now()

	fv := e.extractor.Extract(tx)
	observability.DefaultMetrics.FeatureExtractions.Inc()

	if err := fv.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			observability.RecordValidationFailure(verr.Field)
		}
		return nil, fmt.Errorf("validate features: %w", err)
	}

	score, confidence := e.scorer.Predict(&fv)

	pred := &Prediction{
		RequestID:    e.nextRequestID(),
		RiskScore:    score.Score(),
		Band:         score.Band(),
		IsMev:        !score.IsLow(),
		Confidence:   confidence,
		ModelVersion: e.modelVersion,
	}

	if withShadow {
		pred.Drift = e.observeDrift(&fv)
		e.submitShadow(tx, &fv, pred)
	}

	if pred.RiskScore >= highRiskSignalThreshold {
		e.onHighRisk(pred)
	}

	elapsed := time.Since(start)
	pred.LatencyUs = uint64(elapsed.Microseconds())

	e.predictions.Add(1)
	overSLO := elapsed > e.latencyTarget
	if overSLO {
		e.overruns.Add(1)
		e.logger.Printf("inference: prediction %s took %s, over %s target", pred.RequestID, elapsed, e.latencyTarget)
	}
	observability.RecordPrediction(pred.Band, elapsed.Seconds(), overSLO)
	observability.RecordScore(pred.RiskScore)

	return pred, nil
}

// observeDrift scores the vector against existing history before appending
// it, so a vector never votes on its own drift.
func (e *Engine) observeDrift(fv *domain.FeatureVector) *drift.Score {
	if e.drift == nil {
		return nil
	}

	arr := fv.ToArray()
	flat := arr[:]

	e.driftMu.Lock()
	score := e.drift.CalculateDrift(flat)
	e.drift.AddObservation(flat)
	historySize := e.drift.Stats().HistorySize
	e.driftMu.Unlock()

	observability.DefaultMetrics.DriftChecks.Inc()
	observability.DefaultMetrics.DriftHistorySize.Set(float64(historySize))
	observability.RecordDrift("psi", score.PSIScore, score.PSIDrift)
	observability.RecordDrift("ks", score.KSScore, score.KSDrift)
	observability.RecordDrift("js", score.JSScore, score.JSDrift)

	return &score
}

// submitShadow hands the feature vector and production verdict to the shadow
// manager, which evaluates the candidate model off the scoring path. The
// vector is copied so the consumer never shares memory with the caller.
func (e *Engine) submitShadow(tx *domain.TransactionData, fv *domain.FeatureVector, prod *Prediction) {
	if e.shadow == nil || !e.shadow.Enabled() {
		return
	}

	fvCopy := *fv
	req := &shadow.Request{
		RequestID:           prod.RequestID,
		TimestampMs:         tx.TimestampMs,
		Signature:           tx.Signature,
		Features:            &fvCopy,
		ProductionRiskScore: prod.RiskScore,
		ProductionIsMev:     prod.IsMev,
	}

	if e.shadow.Submit(req) {
		observability.DefaultMetrics.ShadowSubmitted.Inc()
	}
	stats := e.shadow.Stats()
	observability.DefaultMetrics.ShadowQueueDepth.Set(float64(stats.QueueDepth))
}

// UpdateMarketConditions forwards market state to the adaptive thresholds
// when the production scorer is a staged pipeline.
func (e *Engine) UpdateMarketConditions(mc domain.MarketConditions) {
	p, ok := e.scorer.(*heuristics.Pipeline)
	if !ok {
		return
	}
	p.Adaptive().UpdateMarketConditions(mc)

	snap := p.Adaptive().AdjustedSnapshot()
	observability.UpdateThresholds(snap.HighTipLamports, snap.PriceImpactBps)
}

// Thresholds returns the current adjusted thresholds when the production
// scorer is a staged pipeline.
func (e *Engine) Thresholds() (heuristics.AdjustedThresholds, bool) {
	p, ok := e.scorer.(*heuristics.Pipeline)
	if !ok {
		return heuristics.AdjustedThresholds{}, false
	}
	return p.Adaptive().AdjustedSnapshot(), true
}

// DriftStats returns the drift detector snapshot, if drift is configured.
func (e *Engine) DriftStats() (drift.Stats, bool) {
	if e.drift == nil {
		return drift.Stats{}, false
	}
	e.driftMu.Lock()
	defer e.driftMu.Unlock()
	return e.drift.Stats(), true
}

// Info describes the engine and its SLO standing.
func (e *Engine) Info() ModelInfo {
	compliance := e.SLOCompliance()
	return ModelInfo{
		Version:         e.modelVersion,
		SchemaVersion:   domain.FeatureSchemaVersion,
		FeatureCount:    domain.FeatureCount,
		WarmedUp:        e.warmedUp.Load(),
		Predictions:     e.predictions.Load(),
		SLOCompliance:   compliance,
		SLOCompliant:    compliance >= sloComplianceTarget,
		LatencyTargetMs: int(e.latencyTarget / time.Millisecond),
	}
}

// SLOCompliance is the fraction of predictions that met the latency target.
// With no predictions yet it reports full compliance.
func (e *Engine) SLOCompliance() float64 {
	total := e.predictions.Load()
	if total == 0 {
		return 1.0
	}
	return 1.0 - float64(e.overruns.Load())/float64(total)
}

func (e *Engine) nextRequestID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), e.reqSeq.Add(1))
}

// warmupVector is a representative mid-risk vector used only to exercise the
// scoring path.
func warmupVector() *domain.FeatureVector {
	return &domain.FeatureVector{
		ComputeUnitLimit:      200_000,
		ComputeUnitPrice:      50_000,
		TipLamports:           10_000,
		TotalFeeLamports:      15_000,
		AccountCount:          12,
		InstructionCount:      4,
		TxSizeBytes:           700,
		IsDexSwap:             true,
		TradeSizeUSD:          1_500,
		PoolLiquidityUSD:      500_000,
		LiquidityUtilization:  0.003,
		PriceImpactBps:        25,
		SlippageToleranceBps:  50,
		TipPercentileVsRecent: 50,
		PriorityScore:         0.3,
	}
}
