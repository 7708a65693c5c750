package intel

import "solana-mev-engine/internal/domain"

// SampleIntel returns a small known-operator dataset for demos and tests.
// Production deployments load the full tracked set from storage instead.
func SampleIntel() map[string]*domain.ProducerIntel {
	return map[string]*domain.ProducerIntel{
		"7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2": {
			Pubkey:            "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2",
			IsMalicious:       true,
			MevRate:           0.87,
			StakeSol:          500_000,
			CommissionPct:     10.0,
			ParticipationRate: 0.95,
			AvgTipLamports:    250_000,
			RecentBlocks:      1000,
			SkipRate:          0.02,
			Label:             "Known MEV Operator",
		},
		"GRJQtWwdJmp5LLpy8JNzYDQY8JrKRJ3wzcmb7MrKnXY6": {
			Pubkey:            "GRJQtWwdJmp5LLpy8JNzYDQY8JrKRJ3wzcmb7MrKnXY6",
			IsMalicious:       true,
			MevRate:           0.92,
			StakeSol:          750_000,
			CommissionPct:     8.0,
			ParticipationRate: 0.98,
			AvgTipLamports:    300_000,
			RecentBlocks:      1200,
			SkipRate:          0.01,
			Label:             "Aggressive Sandwich Bot",
		},
	}
}
