package shadow

import (
	"math"
	"sort"

	"solana-mev-engine/internal/domain"
)

// Disagreement is one record where the shadow and production models landed
// on different MEV verdicts.
type Disagreement struct {
	RequestID       string  `json:"request_id"`
	Signature       string  `json:"signature"`
	ShadowScore     float64 `json:"shadow_score"`
	ProductionScore float64 `json:"production_score"`
	ShadowIsMev     bool    `json:"shadow_is_mev"`
	ProductionIsMev bool    `json:"production_is_mev"`
}

// Report summarizes a shadow log against the production results it carries.
type Report struct {
	Total          int `json:"total"`
	WithProduction int `json:"with_production"`
	Errors         int `json:"errors"`

	VerdictAgreement  float64 `json:"verdict_agreement"`
	MeanAbsScoreDelta float64 `json:"mean_abs_score_delta"`
	MaxAbsScoreDelta  float64 `json:"max_abs_score_delta"`

	MeanLatencyUs uint64 `json:"mean_latency_us"`
	P99LatencyUs  uint64 `json:"p99_latency_us"`

	Disagreements []Disagreement `json:"disagreements"`
}

// Analyze compares shadow predictions with their recorded production
// counterparts. Records without production results count toward totals and
// latency but not toward agreement.
func Analyze(preds []*domain.ShadowPrediction) Report {
	report := Report{Total: len(preds)}
	if len(preds) == 0 {
		return report
	}

	var latencies []uint64
	var sumDelta float64
	agreed := 0

	for _, p := range preds {
		latencies = append(latencies, p.LatencyUs)
		if p.Error != "" {
			report.Errors++
		}
		if p.ProductionRiskScore == nil || p.ProductionIsMev == nil {
			continue
		}

		report.WithProduction++
		delta := math.Abs(p.ShadowRiskScore - *p.ProductionRiskScore)
		sumDelta += delta
		if delta > report.MaxAbsScoreDelta {
			report.MaxAbsScoreDelta = delta
		}

		if p.ShadowIsMev == *p.ProductionIsMev {
			agreed++
		} else {
			report.Disagreements = append(report.Disagreements, Disagreement{
				RequestID:       p.RequestID,
				Signature:       p.Signature,
				ShadowScore:     p.ShadowRiskScore,
				ProductionScore: *p.ProductionRiskScore,
				ShadowIsMev:     p.ShadowIsMev,
				ProductionIsMev: *p.ProductionIsMev,
			})
		}
	}

	if report.WithProduction > 0 {
		report.VerdictAgreement = float64(agreed) / float64(report.WithProduction)
		report.MeanAbsScoreDelta = sumDelta / float64(report.WithProduction)
	}

	var sum uint64
	for _, l := range latencies {
		sum += l
	}
	report.MeanLatencyUs = sum / uint64(len(latencies))

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	idx := (len(latencies)*99 + 99) / 100
	if idx >= len(latencies) {
		idx = len(latencies) - 1
	}
	report.P99LatencyUs = latencies[idx]

	return report
}
