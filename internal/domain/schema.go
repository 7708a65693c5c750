package domain

// featureFieldNames lists the ToArray positions by name. The slice index IS
// the wire index for FeatureSchemaVersion; tests pin this mapping so that a
// struct reordering cannot silently shift the contract.
var featureFieldNames = [FeatureCount]string{
	// Base (0-7)
	"slot",
	"compute_unit_limit",
	"compute_unit_price",
	"tip_lamports",
	"total_fee_lamports",
	"account_count",
	"instruction_count",
	"tx_size_bytes",

	// DEX (8-19)
	"is_dex_swap",
	"input_amount",
	"output_amount",
	"expected_output",
	"price_impact_bps",
	"slippage_tolerance_bps",
	"swap_route_length",
	"input_price_usd",
	"output_price_usd",
	"trade_size_usd",
	"pool_liquidity_usd",
	"liquidity_utilization",

	// Market (20-27)
	"oracle_price",
	"oracle_confidence",
	"oracle_staleness_ms",
	"price_deviation_pct",
	"volume_24h_usd",
	"volatility_24h_pct",
	"market_depth_usd",
	"is_high_risk_pair",

	// Patterns (28-42)
	"has_swap_triplet",
	"is_potential_sandwich_victim",
	"is_potential_front_run",
	"is_potential_back_run",
	"recent_swaps_same_pair",
	"recent_swaps_same_actor",
	"tip_percentile_vs_recent",
	"time_since_last_slot_ms",
	"account_collision_count",
	"triplet_time_spread_ms",
	"uses_lookup_tables",
	"priority_score",
	"matches_bot_pattern",
	"arb_opportunity_score",
	"has_flash_loan",

	// Producer (43-54)
	"next_producer_key",
	"next_producer_malicious",
	"next_producer_mev_rate",
	"next_producer_stake_sol",
	"next_producer_commission_pct",
	"next_producer_participation_rate",
	"next_producer_avg_tip",
	"next_producer_recent_blocks",
	"next_producer_skip_rate",
	"producer_risk_score",
	"slots_until_next_producer",
	"producer_prediction_confidence",
}

// FeatureFieldNames returns the documented field order of ToArray.
func FeatureFieldNames() [FeatureCount]string {
	return featureFieldNames
}

// FeatureIndex returns the wire index of a named feature, or -1 if unknown.
func FeatureIndex(name string) int {
	for i, n := range featureFieldNames {
		if n == name {
			return i
		}
	}
	return -1
}
