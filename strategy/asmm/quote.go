package asmm

import "math"

// ReservationPrice returns r = mid − q·γ·σ²·T.
func ReservationPrice(mid, q, gamma, sigma, horizon float64) float64 {
	return mid - q*gamma*sigma*sigma*horizon
}

// OrderSize scales the base size down linearly with inventory utilisation,
// reaching zero at |q| >= maxInventory.
func OrderSize(base, q, maxInventory float64) float64 {
	return base * (1 - math.Min(math.Abs(q)/maxInventory, 1))
}

// ComputeQuote runs the quoting formula for one mid-price.
//
// The inventory penalty q·factor·σ is subtracted from both bid and ask, so a
// long book shifts the whole quote down rather than skewing it around the
// reservation price.
func ComputeQuote(cfg Config, mid, sigma, q float64) QuoteUpdate {
	gamma := cfg.RiskAversion
	reservation := ReservationPrice(mid, q, gamma, sigma, cfg.TimeHorizon)

	spread := OptimalSpread(gamma, sigma, cfg.TimeHorizon, cfg.PriceSensitivity)
	spread = ClampSpread(spread, mid, cfg.MinSpreadBps, cfg.MaxSpreadBps)

	half := spread * 0.5
	penalty := q * cfg.InventoryPenaltyFactor * sigma
	bid := reservation - half - penalty
	ask := reservation + half - penalty

	size := OrderSize(cfg.BaseOrderSize, q, cfg.MaxInventory)
	return QuoteUpdate{
		BidPrice:         bid,
		AskPrice:         ask,
		BidSize:          size,
		AskSize:          size,
		Spread:           spread,
		ReservationPrice: reservation,
	}
}
