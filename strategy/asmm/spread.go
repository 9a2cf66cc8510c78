package asmm

import "math"

// OptimalSpread returns the Avellaneda–Stoikov spread
//
//	δ = γ·σ²·T + (2/γ)·ln(1 + γ/κ)
func OptimalSpread(gamma, sigma, horizon, kappa float64) float64 {
	base := gamma * sigma * sigma * horizon
	adjustment := (2 / gamma) * math.Log1p(gamma/kappa)
	return base + adjustment
}

// SpreadBounds converts the basis-point limits into absolute spreads at mid.
func SpreadBounds(mid, minBps, maxBps float64) (lo, hi float64) {
	return mid * minBps / 10000, mid * maxBps / 10000
}

// ClampSpread clips spread into SpreadBounds(mid, minBps, maxBps).
func ClampSpread(spread, mid, minBps, maxBps float64) float64 {
	lo, hi := SpreadBounds(mid, minBps, maxBps)
	return math.Max(lo, math.Min(hi, spread))
}
