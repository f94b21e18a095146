package types

// QuoteRequest asks the swap aggregator for a route between two mints.
type QuoteRequest struct {
	InputMint  string  `json:"input_mint"`
	OutputMint string  `json:"output_mint"`
	Amount     float64 `json:"amount"`
	Mode       string  `json:"mode"` // ExactIn or ExactOut
}

// Quote is an accepted aggregator route for a sized swap.
type Quote struct {
	InputMint  string  `json:"input_mint"`
	OutputMint string  `json:"output_mint"`
	InAmount   float64 `json:"in_amount"`
	OutAmount  float64 `json:"out_amount"`
	Price      float64 `json:"price"`
	RoutePlan  string  `json:"route_plan,omitempty"`
}

// UnsignedTransaction is a serialized transaction built from a quote,
// awaiting signing and submission.
type UnsignedTransaction struct {
	Payload   string `json:"payload"` // base64 transaction
	Blockhash string `json:"blockhash"`
	Signer    string `json:"signer"`
}

// SimulationResult is the dry-run outcome of a built transaction.
type SimulationResult struct {
	Success       bool   `json:"success"`
	UnitsConsumed uint64 `json:"units_consumed"`
	Logs          string `json:"logs,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
}

// SendResult confirms a submitted transaction.
type SendResult struct {
	Signature string `json:"signature"`
}
