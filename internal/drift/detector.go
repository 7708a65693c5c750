// Package drift detects distribution shift of incoming feature vectors
// against a rolling historical window using three independent statistics
// combined by a configurable voting policy.
package drift

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Industry-standard default thresholds for the three statistics.
const (
	DefaultMaxHistory   = 1000
	DefaultPSIThreshold = 0.25
	DefaultKSThreshold  = 0.05
	DefaultJSThreshold  = 0.1
)

// Score is the result of one drift calculation: three independent statistics
// with per-method verdicts, the overall voted verdict and a confidence equal
// to the fraction of methods agreeing.
type Score struct {
	PSIScore float64 `json:"psi_score"`
	KSScore  float64 `json:"ks_score"`
	JSScore  float64 `json:"js_score"`

	PSIDrift bool `json:"psi_drift"`
	KSDrift  bool `json:"ks_drift"`
	JSDrift  bool `json:"js_drift"`

	DriftDetected bool    `json:"drift_detected"`
	Confidence    float64 `json:"confidence"`
}

// Stats is a monitoring snapshot of the detector configuration and window.
type Stats struct {
	HistorySize  int     `json:"history_size"`
	MaxHistory   int     `json:"max_history"`
	PSIThreshold float64 `json:"psi_threshold"`
	KSThreshold  float64 `json:"ks_threshold"`
	JSThreshold  float64 `json:"js_threshold"`
	Policy       string  `json:"policy"`
}

// Detector holds the rolling window of historical feature vectors. It is
// owned by a single logical caller: CalculateDrift is read-only and must be
// invoked before AddObservation for the same vector, so a point never
// influences its own drift verdict.
type Detector struct {
	history    [][]float64
	maxHistory int

	psiThreshold float64
	ksThreshold  float64
	jsThreshold  float64
	policy       VotingPolicy
}

// Options configures a Detector. Zero thresholds select the defaults.
type Options struct {
	MaxHistory   int
	PSIThreshold float64
	KSThreshold  float64
	JSThreshold  float64
	Policy       VotingPolicy
}

// NewDetector creates a detector with the given configuration.
func NewDetector(opts Options) *Detector {
	maxHistory := opts.MaxHistory
	if maxHistory == 0 {
		maxHistory = DefaultMaxHistory
	}
	psi := opts.PSIThreshold
	if psi == 0 {
		psi = DefaultPSIThreshold
	}
	ks := opts.KSThreshold
	if ks == 0 {
		ks = DefaultKSThreshold
	}
	js := opts.JSThreshold
	if js == 0 {
		js = DefaultJSThreshold
	}
	return &Detector{
		maxHistory:   maxHistory,
		psiThreshold: psi,
		ksThreshold:  ks,
		jsThreshold:  js,
		policy:       opts.Policy,
	}
}

// AddObservation appends a vector to the rolling window, evicting the oldest
// entry beyond capacity. The vector is copied.
func (d *Detector) AddObservation(features []float64) {
	copied := make([]float64, len(features))
	copy(copied, features)
	d.history = append(d.history, copied)
	if len(d.history) > d.maxHistory {
		d.history = append(d.history[:0], d.history[len(d.history)-d.maxHistory:]...)
	}
}

// CalculateDrift computes the three statistics for the current vector against
// the historical window. With an empty history drift is defined as
// not-detected with all-zero scores: no assumption substitutes for missing
// data. History is not modified.
func (d *Detector) CalculateDrift(current []float64) Score {
	if len(d.history) == 0 {
		return Score{}
	}

	psi := d.calculatePSI(current)
	ks := d.calculateKS(current)
	js := d.calculateJS(current)

	score := Score{
		PSIScore: psi,
		KSScore:  ks,
		JSScore:  js,
		PSIDrift: psi > d.psiThreshold,
		KSDrift:  ks > d.ksThreshold,
		JSDrift:  js > d.jsThreshold,
	}

	votes := []bool{score.PSIDrift, score.KSDrift, score.JSDrift}
	score.DriftDetected = d.policy.Decide(votes)

	fired := 0
	for _, v := range votes {
		if v {
			fired++
		}
	}
	score.Confidence = float64(fired) / float64(len(votes))

	return score
}

// minSamples is the smallest per-dimension history all three statistics
// require. A single sample has no spread: the sample stddev is undefined
// (NaN) and the ecdf position is always 0.5 away from the median, so such
// dimensions are skipped rather than scored.
const minSamples = 2

// calculatePSI is a population-stability proxy: the per-dimension normalized
// deviation of the current value from the historical mean, averaged across
// dimensions and capped at 1.
func (d *Detector) calculatePSI(current []float64) float64 {
	total := 0.0
	for dim, cur := range current {
		vals := d.column(dim)
		if len(vals) < minSamples {
			continue
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if std > 0 {
			total += abs(cur-mean) / std
		}
	}
	return capAt(total/float64(len(current)), 1.0)
}

// calculateKS is a rank-position proxy for the Kolmogorov-Smirnov statistic:
// the maximum over dimensions of |ecdf(current) - 0.5| against the sorted
// historical values.
func (d *Detector) calculateKS(current []float64) float64 {
	maxKS := 0.0
	for dim, cur := range current {
		vals := d.column(dim)
		if len(vals) < minSamples {
			continue
		}
		sort.Float64s(vals)
		pos := sort.SearchFloat64s(vals, cur)
		diff := abs(float64(pos)/float64(len(vals)) - 0.5)
		if diff > maxKS {
			maxKS = diff
		}
	}
	return maxKS
}

// calculateJS is a bounded divergence proxy built on z-score saturation:
// z/(1+z) per dimension, averaged and capped at 1. Symmetric and free of the
// infinities a raw KL divergence would produce.
func (d *Detector) calculateJS(current []float64) float64 {
	total := 0.0
	for dim, cur := range current {
		vals := d.column(dim)
		if len(vals) < minSamples {
			continue
		}
		mean, std := stat.MeanStdDev(vals, nil)
		if std < 1e-6 {
			std = 1e-6
		}
		z := abs(cur-mean) / std
		total += capAt(z/(1.0+z), 1.0)
	}
	return capAt(total/float64(len(current)), 1.0)
}

// column collects the historical values of one feature dimension.
func (d *Detector) column(dim int) []float64 {
	vals := make([]float64, 0, len(d.history))
	for _, h := range d.history {
		if dim < len(h) {
			vals = append(vals, h[dim])
		}
	}
	return vals
}

// Stats returns a monitoring snapshot.
func (d *Detector) Stats() Stats {
	return Stats{
		HistorySize:  len(d.history),
		MaxHistory:   d.maxHistory,
		PSIThreshold: d.psiThreshold,
		KSThreshold:  d.ksThreshold,
		JSThreshold:  d.jsThreshold,
		Policy:       d.policy.String(),
	}
}

// ClearHistory drops the rolling window.
func (d *Detector) ClearHistory() {
	d.history = nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
