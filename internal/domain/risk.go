package domain

// Risk band boundaries on the 0-1 score scale.
const (
	MediumRiskThreshold = 0.5
	HighRiskThreshold   = 0.8
)

// RiskScore is a bounded MEV risk score in [0, 1].
type RiskScore float64

// NewRiskScore clamps v into [0, 1].
func NewRiskScore(v float64) RiskScore {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return RiskScore(v)
}

// Score returns the raw value.
func (s RiskScore) Score() float64 {
	return float64(s)
}

// IsLow reports score < 0.5.
func (s RiskScore) IsLow() bool {
	return float64(s) < MediumRiskThreshold
}

// IsMedium reports 0.5 <= score < 0.8.
func (s RiskScore) IsMedium() bool {
	return float64(s) >= MediumRiskThreshold && float64(s) < HighRiskThreshold
}

// IsHigh reports score >= 0.8.
func (s RiskScore) IsHigh() bool {
	return float64(s) >= HighRiskThreshold
}

// Band returns the convenience classifier name: "low", "medium" or "high".
func (s RiskScore) Band() string {
	switch {
	case s.IsHigh():
		return "high"
	case s.IsMedium():
		return "medium"
	default:
		return "low"
	}
}
