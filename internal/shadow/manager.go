// Package shadow runs a candidate model alongside production without
// affecting the production scoring path. Scored transactions are handed to a
// single background consumer over a bounded queue; the consumer evaluates
// the candidate model, times it, and persists the comparison records in
// batches. When the queue is full the request is dropped and counted rather
// than blocking the hot path.
package shadow

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/heuristics"
	"solana-mev-engine/internal/observability"
	"solana-mev-engine/internal/storage"
)

const (
	// DefaultBufferSize is the batch size at which the consumer flushes.
	DefaultBufferSize = 1000
	// DefaultQueueSize is the capacity of the hand-off queue.
	DefaultQueueSize = 4096
	// DefaultModelVersion tags records of the default candidate scorer.
	DefaultModelVersion = "shadow-heuristic-v1"
)

// Scorer is the candidate model evaluated in shadow.
type Scorer interface {
	Predict(fv *domain.FeatureVector) (domain.RiskScore, float64)
}

// FieldScorerAdapter exposes a heuristics.FieldScorer as a Scorer with a
// fixed confidence.
type FieldScorerAdapter struct {
	Scorer     *heuristics.FieldScorer
	Confidence float64
}

// Predict implements Scorer.
func (a *FieldScorerAdapter) Predict(fv *domain.FeatureVector) (domain.RiskScore, float64) {
	return a.Scorer.Score(fv), a.Confidence
}

// Request is one unit of shadow work: the features of a production-scored
// transaction plus the production verdict to compare against. The candidate
// model runs on the consumer goroutine, never on the submitter's.
type Request struct {
	RequestID           string
	TimestampMs         int64
	Signature           string
	Features            *domain.FeatureVector
	ProductionRiskScore float64
	ProductionIsMev     bool
}

// Stats is a monitoring snapshot of the manager.
type Stats struct {
	Enabled     bool   `json:"enabled"`
	Submitted   uint64 `json:"submitted"`
	Dropped     uint64 `json:"dropped"`
	Errors      uint64 `json:"errors"`
	Flushed     uint64 `json:"flushed"`
	FlushErrors uint64 `json:"flush_errors"`
	Buffered    int    `json:"buffered"`
	QueueDepth  int    `json:"queue_depth"`
}

// Options configures a Manager.
type Options struct {
	// Store receives flushed batches. Required.
	Store storage.ShadowLogStore

	// Scorer is the candidate model. Defaults to a flat field scorer over
	// the default thresholds.
	Scorer Scorer

	// ModelVersion tags the log records. Defaults to DefaultModelVersion.
	ModelVersion string

	// BufferSize is the flush batch size. Defaults to DefaultBufferSize.
	BufferSize int

	// QueueSize is the hand-off queue capacity. Defaults to DefaultQueueSize.
	QueueSize int

	// Enabled sets the initial toggle state.
	Enabled bool

	// Logger for flush failures. Defaults to log.Default().
	Logger *log.Logger

	// OnDrop is called when a request is discarded because the queue is
	// full. Optional, used for metrics.
	OnDrop func()
}

// Manager owns the shadow evaluation log. Submit is safe for concurrent use;
// all candidate scoring and persistence happens on the single consumer
// goroutine.
type Manager struct {
	store        storage.ShadowLogStore
	scorer       Scorer
	modelVersion string
	bufferSize   int
	logger       *log.Logger
	onDrop       func()

	enabled atomic.Bool
	closed  atomic.Bool

	queue    chan *Request
	flushReq chan chan struct{}
	done     chan struct{}

	submitted   atomic.Uint64
	dropped     atomic.Uint64
	scoreErrors atomic.Uint64
	flushed     atomic.Uint64
	flushErrors atomic.Uint64

	mu       sync.Mutex
	buffered int

	closeOnce sync.Once
}

// NewManager creates a Manager and starts its consumer goroutine.
func NewManager(opts Options) *Manager {
	scorer := opts.Scorer
	if scorer == nil {
		scorer = &FieldScorerAdapter{
			Scorer:     heuristics.NewFieldScorer(heuristics.DefaultThresholds()),
			Confidence: 0.5,
		}
	}
	modelVersion := opts.ModelVersion
	if modelVersion == "" {
		modelVersion = DefaultModelVersion
	}
	bufferSize := opts.BufferSize
	if bufferSize == 0 {
		bufferSize = DefaultBufferSize
	}
	queueSize := opts.QueueSize
	if queueSize == 0 {
		queueSize = DefaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	m := &Manager{
		store:        opts.Store,
		scorer:       scorer,
		modelVersion: modelVersion,
		bufferSize:   bufferSize,
		logger:       logger,
		onDrop:       opts.OnDrop,
		queue:        make(chan *Request, queueSize),
		flushReq:     make(chan chan struct{}),
		done:         make(chan struct{}),
	}
	m.enabled.Store(opts.Enabled)

	go m.consume()
	return m
}

// Enable turns shadow evaluation on.
func (m *Manager) Enable() { m.enabled.Store(true) }

// Disable turns shadow evaluation off. Already queued requests still flush.
func (m *Manager) Disable() { m.enabled.Store(false) }

// Enabled reports the current toggle state.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

// Submit hands a request to the consumer. It never blocks and never scores:
// when shadow mode is off or the queue is full the request is discarded and
// Submit returns false.
func (m *Manager) Submit(req *Request) bool {
	if req == nil || !m.enabled.Load() || m.closed.Load() {
		return false
	}

	select {
	case m.queue <- req:
		m.submitted.Add(1)
		return true
	default:
		m.dropped.Add(1)
		if m.onDrop != nil {
			m.onDrop()
		}
		return false
	}
}

// Flush asks the consumer to persist its current buffer and waits for it.
func (m *Manager) Flush() {
	if m.closed.Load() {
		return
	}

	ack := make(chan struct{})
	select {
	case m.flushReq <- ack:
		<-ack
	case <-m.done:
	}
}

// Close stops accepting requests, drains the queue, flushes the remainder
// and stops the consumer. Safe to call more than once. Callers must stop
// submitting before Close; Submit calls racing with Close may panic on the
// closed queue.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.queue)
		<-m.done
	})
}

// Stats returns a monitoring snapshot.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	buffered := m.buffered
	m.mu.Unlock()

	return Stats{
		Enabled:     m.enabled.Load(),
		Submitted:   m.submitted.Load(),
		Dropped:     m.dropped.Load(),
		Errors:      m.scoreErrors.Load(),
		Flushed:     m.flushed.Load(),
		FlushErrors: m.flushErrors.Load(),
		Buffered:    buffered,
		QueueDepth:  len(m.queue),
	}
}

// evaluate runs the candidate scorer on one request and builds the log
// record. The production result travels with the record; a scorer panic is
// captured as an error record so a broken candidate never kills the
// consumer or loses the comparison row.
func (m *Manager) evaluate(req *Request) *domain.ShadowPrediction {
	prodScore := req.ProductionRiskScore
	prodIsMev := req.ProductionIsMev

	rec := &domain.ShadowPrediction{
		RequestID:           req.RequestID,
		TimestampMs:         req.TimestampMs,
		Signature:           req.Signature,
		ModelVersion:        m.modelVersion,
		ProductionRiskScore: &prodScore,
		ProductionIsMev:     &prodIsMev,
	}

	if req.Features == nil {
		m.scoreErrors.Add(1)
		rec.Error = "missing features"
		return rec
	}

	arr := req.Features.ToArray()
	rec.Features = append([]float64(nil), arr[:]...)

	start := time.Now()
	score, err := m.runScorer(req.Features)
	rec.LatencyUs = uint64(time.Since(start).Microseconds())

	if err != nil {
		m.scoreErrors.Add(1)
		m.logger.Printf("shadow: scoring %s failed: %v", req.RequestID, err)
		rec.Error = err.Error()
		return rec
	}

	rec.ShadowRiskScore = score.Score()
	rec.ShadowIsMev = !score.IsLow()
	return rec
}

// runScorer isolates candidate scorer panics.
func (m *Manager) runScorer(fv *domain.FeatureVector) (score domain.RiskScore, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer panic: %v", r)
		}
	}()
	score, _ = m.scorer.Predict(fv)
	return score, nil
}

// consume is the single background goroutine. It owns the batch buffer, so
// no lock is needed around scoring and flushes.
func (m *Manager) consume() {
	defer close(m.done)

	buffer := make([]*domain.ShadowPrediction, 0, m.bufferSize)

	setBuffered := func(n int) {
		m.mu.Lock()
		m.buffered = n
		m.mu.Unlock()
	}

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		if err := m.store.AppendBatch(context.Background(), buffer); err != nil {
			m.flushErrors.Add(1)
			observability.DefaultMetrics.ShadowFlushFails.Inc()
			m.logger.Printf("shadow: flush of %d predictions failed: %v", len(buffer), err)
		} else {
			m.flushed.Add(uint64(len(buffer)))
			observability.DefaultMetrics.ShadowFlushed.Add(float64(len(buffer)))
		}
		buffer = buffer[:0]
		setBuffered(0)
	}

	for {
		select {
		case req, ok := <-m.queue:
			if !ok {
				flush()
				return
			}
			buffer = append(buffer, m.evaluate(req))
			setBuffered(len(buffer))
			if len(buffer) >= m.bufferSize {
				flush()
			}
		case ack := <-m.flushReq:
			// Drain whatever is already queued before flushing so Flush
			// observes every request submitted before the call.
			for drained := false; !drained; {
				select {
				case req, ok := <-m.queue:
					if !ok {
						flush()
						close(ack)
						return
					}
					buffer = append(buffer, m.evaluate(req))
				default:
					drained = true
				}
			}
			setBuffered(len(buffer))
			flush()
			close(ack)
		}
	}
}
