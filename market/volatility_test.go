package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEWMAVolatility_ClosedForm(t *testing.T) {
	const alpha = 0.06
	e := NewEWMAVolatility(alpha)
	require.False(t, e.Seeded())

	r0, r1 := 0.01, -0.015
	assert.InDelta(t, math.Abs(r0), e.Update(r0), 1e-15)
	require.True(t, e.Seeded())

	want := math.Sqrt(alpha*r1*r1 + (1-alpha)*r0*r0)
	assert.InDelta(t, want, e.Update(r1), 1e-15)
	assert.InDelta(t, want, e.Value(), 1e-15)
}

func TestEWMAVolatility_NonNegativeAndReset(t *testing.T) {
	e := NewEWMAVolatility(0.94)
	for _, r := range []float64{0.01, -0.015, 0.008, -0.012, 0.02, 0} {
		assert.GreaterOrEqual(t, e.Update(r), 0.0)
	}
	e.Reset()
	assert.False(t, e.Seeded())
	assert.Zero(t, e.Value())
}

func TestParkinsonVolatility(t *testing.T) {
	tests := []struct {
		name  string
		pairs []HighLow
		want  float64
	}{
		{name: "empty", want: DefaultVolatility},
		{name: "single pair", pairs: []HighLow{{High: 101, Low: 99}}, want: DefaultVolatility},
		{
			name:  "one valid pair among invalid",
			pairs: []HighLow{{High: 101, Low: 99}, {High: 0, Low: 99}, {High: 101, Low: -1}},
			want:  DefaultVolatility,
		},
		{
			name:  "two identical ranges",
			pairs: []HighLow{{High: 110, Low: 100}, {High: 110, Low: 100}},
			want:  math.Sqrt(2 * math.Pow(math.Log(1.1), 2) / (4 * math.Ln2 * 2)),
		},
		{
			name:  "invalid pairs are not counted",
			pairs: []HighLow{{High: 110, Low: 100}, {High: -5, Low: 3}, {High: 110, Low: 100}},
			want:  math.Sqrt(2 * math.Pow(math.Log(1.1), 2) / (4 * math.Ln2 * 2)),
		},
		{
			name:  "non-finite ranges are skipped",
			pairs: []HighLow{{High: 110, Low: 100}, {High: math.Inf(1), Low: 99}, {High: 110, Low: math.NaN()}, {High: 110, Low: 100}},
			want:  math.Sqrt(2 * math.Pow(math.Log(1.1), 2) / (4 * math.Ln2 * 2)),
		},
		{
			name:  "flat bars",
			pairs: []HighLow{{High: 100, Low: 100}, {High: 100, Low: 100}},
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRing[HighLow](10)
			for _, p := range tt.pairs {
				w.Push(p)
			}
			got := ParkinsonVolatility(w)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestStandardVolatility(t *testing.T) {
	w := NewRing[float64](20)
	assert.Equal(t, DefaultVolatility, StandardVolatility(w))
	w.Push(100)
	assert.Equal(t, DefaultVolatility, StandardVolatility(w), "one sample is not enough")

	// constant prices: zero variance
	w.Push(100)
	w.Push(100)
	assert.Zero(t, StandardVolatility(w))

	w.Clear()
	prices := []float64{100, 101, 100, 102}
	for _, p := range prices {
		w.Push(p)
	}
	var rets []float64
	for i := 1; i < len(prices); i++ {
		rets = append(rets, math.Log(prices[i]/prices[i-1]))
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var v float64
	for _, r := range rets {
		v += (r - mean) * (r - mean)
	}
	assert.InDelta(t, math.Sqrt(v/float64(len(rets))), StandardVolatility(w), 1e-15)
}

func TestStandardVolatility_IncreasingSeriesIsSmallAndPositive(t *testing.T) {
	w := NewRing[float64](20)
	for i := 0; i < 30; i++ {
		w.Push(50000 + float64(i)*10)
	}
	vol := StandardVolatility(w)
	assert.False(t, math.IsNaN(vol) || math.IsInf(vol, 0))
	assert.Greater(t, vol, 0.0)
	assert.Less(t, vol, 1.0)
}

func TestStandardVolatility_SkipsNonPositivePrices(t *testing.T) {
	w := NewRing[float64](5)
	w.Push(0)
	w.Push(-1)
	assert.Equal(t, DefaultVolatility, StandardVolatility(w))
}

func TestEWMAVolatility_IgnoresNonFiniteReturns(t *testing.T) {
	e := NewEWMAVolatility(0.1)
	e.Update(0.02)
	before := e.Value()

	assert.InDelta(t, before, e.Update(math.Inf(1)), 1e-15)
	assert.InDelta(t, before, e.Update(math.NaN()), 1e-15)
	assert.InDelta(t, before, e.Value(), 1e-15)
}

func TestStandardVolatility_SkipsNonFinitePrices(t *testing.T) {
	w := NewRing[float64](5)
	w.Push(100)
	w.Push(math.Inf(1))
	w.Push(101)
	assert.Equal(t, DefaultVolatility, StandardVolatility(w))

	w.Push(102)
	vol := StandardVolatility(w)
	assert.False(t, math.IsNaN(vol) || math.IsInf(vol, 0))
	assert.Zero(t, vol, "a single usable return has no spread around its mean")
}

func TestLogReturn(t *testing.T) {
	r, ok := LogReturn(100, 110)
	require.True(t, ok)
	assert.InDelta(t, math.Log(1.1), r, 1e-15)

	for _, pair := range [][2]float64{{0, 1}, {1, -1}, {math.Inf(1), 1}, {1, math.NaN()}, {math.SmallestNonzeroFloat64, math.MaxFloat64}} {
		_, ok := LogReturn(pair[0], pair[1])
		assert.False(t, ok, "%v", pair)
	}
}

func TestGarmanKlassVolatility(t *testing.T) {
	gk := func(bars ...OHLC) float64 {
		var sum float64
		for _, b := range bars {
			hl := math.Log(b.High / b.Low)
			co := math.Log(b.Close / b.Open)
			sum += 0.5*hl*hl - (2*math.Ln2-1)*co*co
		}
		return math.Sqrt(sum / float64(len(bars)))
	}
	a := OHLC{Open: 100, High: 110, Low: 95, Close: 105}
	b := OHLC{Open: 105, High: 108, Low: 101, Close: 102}

	tests := []struct {
		name string
		bars []OHLC
		want float64
	}{
		{name: "empty", want: DefaultVolatility},
		{name: "single bar", bars: []OHLC{a}, want: DefaultVolatility},
		{name: "two bars", bars: []OHLC{a, b}, want: gk(a, b)},
		{
			name: "invalid bars are not counted",
			bars: []OHLC{a, {Open: 0, High: 1, Low: 1, Close: 1}, {Open: 1, High: math.Inf(1), Low: 1, Close: 1}, b},
			want: gk(a, b),
		},
		{name: "flat bars", bars: []OHLC{{100, 100, 100, 100}, {100, 100, 100, 100}}, want: 0},
		{
			name: "close outside the range falls back",
			bars: []OHLC{{Open: 100, High: 101, Low: 100, Close: 150}, {Open: 100, High: 101, Low: 100, Close: 150}},
			want: DefaultVolatility,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRing[OHLC](10)
			for _, bar := range tt.bars {
				w.Push(bar)
			}
			got := GarmanKlassVolatility(w)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestEstimatorsDoNotAllocate(t *testing.T) {
	prices := NewRing[float64](20)
	ranges := NewRing[HighLow](20)
	bars := NewRing[OHLC](20)
	for i := 0; i < 20; i++ {
		prices.Push(100 + float64(i%3))
		ranges.Push(HighLow{High: 101 + float64(i%2), Low: 99})
		bars.Push(OHLC{Open: 100, High: 101 + float64(i%2), Low: 99, Close: 100.5})
	}
	allocs := testing.AllocsPerRun(100, func() {
		_ = StandardVolatility(prices)
		_ = ParkinsonVolatility(ranges)
		_ = GarmanKlassVolatility(bars)
	})
	assert.Zero(t, allocs)
}
