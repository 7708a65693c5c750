package domain

// ShadowPrediction is one record of the append-only shadow evaluation log.
// It carries both the shadow result and the production result so the two
// scoring paths can be compared offline.
type ShadowPrediction struct {
	RequestID           string    `json:"request_id"`
	TimestampMs         int64     `json:"timestamp_ms"`
	Signature           string    `json:"signature"`
	ModelVersion        string    `json:"model_version"`
	ShadowRiskScore     float64   `json:"shadow_risk_score"`
	ShadowIsMev         bool      `json:"shadow_is_mev"`
	LatencyUs           uint64    `json:"latency_us"`
	ProductionRiskScore *float64  `json:"production_risk_score,omitempty"`
	ProductionIsMev     *bool     `json:"production_is_mev,omitempty"`
	Features            []float64 `json:"features"`
	Error               string    `json:"error,omitempty"`
}
