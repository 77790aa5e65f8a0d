package models

import "time"

// SwapQuote is the ephemeral per-call request handed to the AMM router.
// Constructed fresh for every swap, never persisted.
type SwapQuote struct {
	AmountIn     int64     `json:"amount_in"`
	AmountOutMin int64     `json:"amount_out_min"`
	Path         []string  `json:"path"`
	Recipient    string    `json:"recipient"`
	Deadline     time.Time `json:"deadline"`
}
