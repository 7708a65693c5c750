package domain

// ProducerIntel holds the historical risk attributes of a block producer.
// The dataset is externally owned and refreshed; the engine only reads it.
type ProducerIntel struct {
	Pubkey            string  // producer identity (base58)
	IsMalicious       bool    // in the tracked malicious set
	MevRate           float64 // 0-1 historical MEV extraction rate
	StakeSol          float64 // SOL staked
	CommissionPct     float64 // commission rate
	ParticipationRate float64 // bundle-relay participation rate (0-1)
	AvgTipLamports    uint64  // average tip extracted
	RecentBlocks      uint32  // blocks produced in the last epoch
	SkipRate          float64 // block skip rate (0-1)
	Label             string  // human-readable label
}
