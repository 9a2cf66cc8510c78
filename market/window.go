package market

// HighLow is one bar's range, the input of the Parkinson estimator.
type HighLow struct {
	High float64
	Low  float64
}

// OHLC is the full price range of one bar, kept for the Garman–Klass window.
type OHLC struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Ring is a fixed-capacity FIFO backed by a slice allocated once at
// construction. Pushing into a full ring evicts the oldest entry.
// Not safe for concurrent use.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest entry
	n    int
}

// NewRing allocates a ring holding at most capacity entries (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v; if the ring is full the oldest entry is dropped.
func (r *Ring[T]) Push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.head+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int { return r.n }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th entry counted from the oldest. It panics when i is out
// of range, like slice indexing.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.n {
		panic("market: ring index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// Oldest returns the entry that the next overflowing Push evicts.
func (r *Ring[T]) Oldest() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	return r.buf[r.head], true
}

// Newest returns the most recently pushed entry.
func (r *Ring[T]) Newest() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	return r.At(r.n - 1), true
}

// Clear drops all entries and keeps the backing storage.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.n = 0
}
