package domain

// TransactionData is the structured per-transaction input consumed by the
// feature extractor. It is constructed by an external parser from the raw wire
// format, consumed once by Extract, and not retained.
type TransactionData struct {
	Signature           string       `json:"signature"`                // transaction signature (base58)
	Slot                uint64       `json:"slot"`                     // Solana slot number
	FeePayer            string       `json:"fee_payer"`                // fee payer pubkey (base58)
	ComputeUnitLimit    uint32       `json:"compute_unit_limit"`       // requested compute unit limit
	ComputeUnitPrice    uint64       `json:"compute_unit_price"`       // micro-lamports per compute unit
	TipLamports         uint64       `json:"tip_lamports"`             // priority tip in lamports
	TotalFeeLamports    uint64       `json:"total_fee_lamports"`       // total transaction fee
	AccountCount        uint32       `json:"account_count"`            // number of accounts referenced
	InstructionCount    uint32       `json:"instruction_count"`        // number of instructions
	TxSizeBytes         uint32       `json:"tx_size_bytes"`            // serialized transaction size
	Swap                *SwapDetails `json:"swap,omitempty"`           // swap sub-record, nil for non-DEX transactions
	TimeSinceLastSlotMs uint64       `json:"time_since_last_slot_ms"`  // ms elapsed since the previous slot
	UsesLookupTables    bool         `json:"uses_lookup_tables"`       // address lookup tables present
	NextProducerKey     string       `json:"next_producer_key"`        // next block producer pubkey (base58)
	TimestampMs         int64        `json:"timestamp_ms"`             // observation timestamp (Unix ms)
}

// SwapDetails describes the DEX leg of a transaction, when present.
type SwapDetails struct {
	InputMint            string  `json:"input_mint"`             // input token mint (base58)
	OutputMint           string  `json:"output_mint"`            // output token mint (base58)
	InputAmount          float64 `json:"input_amount"`           // normalized input amount
	OutputAmount         float64 `json:"output_amount"`          // normalized output amount
	ExpectedOutput       float64 `json:"expected_output"`        // quoted expected output
	RouteLength          uint32  `json:"route_length"`           // 1 = direct, >1 = multi-hop
	SlippageToleranceBps float64 `json:"slippage_tolerance_bps"` // user slippage tolerance (bps)
	PoolLiquidityUSD     float64 `json:"pool_liquidity_usd"`     // pool liquidity in USD
}

// MarketConditions carries the exogenous context used for adaptive threshold
// adjustment. It is pushed into the engine by an external market monitor.
type MarketConditions struct {
	Volatility24hPct float64 `json:"volatility_24h_pct"` // 24h high-low range, percent
	TPSUtilization   float64 `json:"tps_utilization"`    // current TPS as fraction of network max (0-1)
}
