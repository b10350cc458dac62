package oracle

import "time"

// Quote is the raw read from the market data source.
type Quote struct {
	MarketValue float64 `json:"market_value"`
	UnitPrice   float64 `json:"unit_price"`
}

// Snapshot is an immutable market observation. It is replaced wholesale on
// refresh and never mutated in place.
type Snapshot struct {
	MarketValue   float64   `json:"market_value"`
	UnitPrice     float64   `json:"unit_price"`
	Target        float64   `json:"target"`
	TargetReached bool      `json:"target_reached"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// NewSnapshot derives TargetReached at construction. An unset or
// non-positive target can never be reached: a missing threshold must not
// trigger a payout.
func NewSnapshot(q Quote, target float64, at time.Time) Snapshot {
	return Snapshot{
		MarketValue:   q.MarketValue,
		UnitPrice:     q.UnitPrice,
		Target:        target,
		TargetReached: target > 0 && q.MarketValue >= target,
		FetchedAt:     at,
	}
}
