package market

import "math"

// Snapshot is the top-of-book view handed to the quoting engine on every
// order-book update. Timestamp is nanoseconds since the unix epoch.
type Snapshot struct {
	BestBid   float64
	BestAsk   float64
	BidVolume float64
	AskVolume float64
	Timestamp int64
}

// Valid reports whether both sides are present, i.e. a mid-price is computable.
func (s Snapshot) Valid() bool {
	return isPositive(s.BestBid) && isPositive(s.BestAsk)
}

// Mid returns (bid+ask)/2, or 0 when either side is missing.
func (s Snapshot) Mid() float64 {
	if !s.Valid() {
		return 0
	}
	return (s.BestBid + s.BestAsk) * 0.5
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
