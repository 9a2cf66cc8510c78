package market

import "math"

// DefaultVolatility is returned whenever there is not enough usable history
// to estimate volatility.
const DefaultVolatility = 0.01

// EWMAVolatility is a streaming variance estimator over returns. The first
// observation seeds the variance with r²; later ones blend in with weight alpha.
type EWMAVolatility struct {
	alpha    float64
	variance float64
	seeded   bool
}

// NewEWMAVolatility creates an estimator with smoothing factor alpha in (0,1).
func NewEWMAVolatility(alpha float64) *EWMAVolatility {
	return &EWMAVolatility{alpha: alpha}
}

// Update folds in one return and returns the new volatility. A non-finite
// return is ignored.
func (e *EWMAVolatility) Update(r float64) float64 {
	if !finite(r) {
		return math.Sqrt(e.variance)
	}
	if !e.seeded {
		e.variance = r * r
		e.seeded = true
	} else {
		e.variance = e.alpha*r*r + (1-e.alpha)*e.variance
	}
	return math.Sqrt(e.variance)
}

// Value returns the current volatility, 0 before the first update.
func (e *EWMAVolatility) Value() float64 {
	return math.Sqrt(e.variance)
}

// Seeded reports whether at least one return has been observed.
func (e *EWMAVolatility) Seeded() bool { return e.seeded }

// Reset forgets all observations.
func (e *EWMAVolatility) Reset() {
	e.variance = 0
	e.seeded = false
}

// ParkinsonVolatility estimates volatility from high/low ranges:
//
//	σ = sqrt( Σ ln(H/L)² / (4·ln2·n) )
//
// Pairs with a non-positive or non-finite high or low are skipped and not
// counted in n.
// Fewer than two valid pairs yields DefaultVolatility.
func ParkinsonVolatility(w *Ring[HighLow]) float64 {
	var sumSq float64
	n := 0
	for i := 0; i < w.Len(); i++ {
		hl := w.At(i)
		if !positive(hl.High) || !positive(hl.Low) {
			continue
		}
		x := math.Log(hl.High / hl.Low)
		if !finite(x) {
			continue
		}
		sumSq += x * x
		n++
	}
	if n < 2 {
		return DefaultVolatility
	}
	return math.Sqrt(sumSq / (4 * math.Ln2 * float64(n)))
}

// StandardVolatility is the standard deviation of log-returns between
// consecutive prices in w (population variance, mean-centred). Fewer than
// two prices, or no usable return, yields DefaultVolatility.
func StandardVolatility(w *Ring[float64]) float64 {
	if w.Len() < 2 {
		return DefaultVolatility
	}
	// two passes over the ring, no scratch slice
	var sum float64
	n := 0
	for i := 1; i < w.Len(); i++ {
		if r, ok := logReturn(w.At(i-1), w.At(i)); ok {
			sum += r
			n++
		}
	}
	if n == 0 {
		return DefaultVolatility
	}
	mean := sum / float64(n)

	var sumSqDiff float64
	for i := 1; i < w.Len(); i++ {
		if r, ok := logReturn(w.At(i-1), w.At(i)); ok {
			d := r - mean
			sumSqDiff += d * d
		}
	}
	return math.Sqrt(sumSqDiff / float64(n))
}

// LogReturn returns ln(cur/prev) when both prices are positive and finite
// and the return itself is finite.
func LogReturn(prev, cur float64) (float64, bool) {
	return logReturn(prev, cur)
}

func logReturn(prev, cur float64) (float64, bool) {
	if !positive(prev) || !positive(cur) {
		return 0, false
	}
	r := math.Log(cur / prev)
	if !finite(r) {
		return 0, false
	}
	return r, true
}

// GarmanKlassVolatility estimates volatility from full OHLC bars:
//
//	σ = sqrt( Σ [ ½·ln(H/L)² − (2·ln2 − 1)·ln(C/O)² ] / n )
//
// Bars with any non-positive or non-finite price are skipped and not counted
// in n. Fewer than two valid bars, or a negative sum (close-to-open moves
// dominating the ranges), yields DefaultVolatility.
func GarmanKlassVolatility(w *Ring[OHLC]) float64 {
	const k = 2*math.Ln2 - 1
	var sum float64
	n := 0
	for i := 0; i < w.Len(); i++ {
		b := w.At(i)
		if !positive(b.Open) || !positive(b.High) || !positive(b.Low) || !positive(b.Close) {
			continue
		}
		hl := math.Log(b.High / b.Low)
		co := math.Log(b.Close / b.Open)
		term := 0.5*hl*hl - k*co*co
		if !finite(term) {
			continue
		}
		sum += term
		n++
	}
	if n < 2 || sum < 0 {
		return DefaultVolatility
	}
	return math.Sqrt(sum / float64(n))
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 1) }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
