// Package atomicx provides lock-free float cells and cache-line padded
// counters for single-writer hot paths that are observed from other goroutines.
package atomicx

import (
	"math"
	"sync/atomic"
)

// CacheLineSize is the padding unit used to keep hot cells on separate lines.
const CacheLineSize = 64

// Float64 is an atomically loaded/stored float64.
type Float64 struct {
	bits atomic.Uint64
}

func (f *Float64) Load() float64 { return math.Float64frombits(f.bits.Load()) }

func (f *Float64) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

// Add adds delta and returns the new value.
func (f *Float64) Add(delta float64) float64 {
	for {
		old := f.bits.Load()
		next := math.Float64frombits(old) + delta
		if f.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// PaddedFloat64 occupies a full cache line.
type PaddedFloat64 struct {
	Float64
	_ [CacheLineSize - 8]byte
}

// PaddedUint64 occupies a full cache line.
type PaddedUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// PaddedInt64 occupies a full cache line.
type PaddedInt64 struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte
}
