package asmm

import (
	"testing"

	"as-market-maker/market"
)

func benchEngine(b testing.TB) *Engine {
	e, err := New(DefaultConfig(), nil)
	if err != nil {
		b.Fatalf("new engine: %v", err)
	}
	for i := 0; i < 40; i++ {
		p := 50000 + float64(i)
		e.OnOrderBook(testSnapshot(p, p+10))
		e.OnBar(market.Bar{Open: p, High: p + 20, Low: p - 20, Close: p})
	}
	return e
}

func TestHotPathDoesNotAllocate(t *testing.T) {
	e := benchEngine(t)
	snap := testSnapshot(50000, 50010)
	bar := market.Bar{Open: 50000, High: 50030, Low: 49980, Close: 50010}

	cases := map[string]func(){
		"OnOrderBook": func() { e.OnOrderBook(snap) },
		"OnBar":       func() { e.OnBar(bar) },
		"OnFill":      func() { e.OnFill(Buy, 0.0001); e.OnFill(Sell, 0.0001) },
		"Stats":       func() { _ = e.Stats() },
	}
	for name, fn := range cases {
		if allocs := testing.AllocsPerRun(1000, fn); allocs != 0 {
			t.Errorf("%s allocates %.1f times per call", name, allocs)
		}
	}

	ewma := benchEngine(t)
	ewma.model = ModelEWMA
	if allocs := testing.AllocsPerRun(1000, func() { ewma.OnBar(bar) }); allocs != 0 {
		t.Errorf("OnBar(ewma) allocates %.1f times per call", allocs)
	}
	gk := benchEngine(t)
	gk.model = ModelGarmanKlass
	if allocs := testing.AllocsPerRun(1000, func() { gk.OnBar(bar) }); allocs != 0 {
		t.Errorf("OnBar(garman_klass) allocates %.1f times per call", allocs)
	}
	std := benchEngine(t)
	std.model = ModelStandard
	if allocs := testing.AllocsPerRun(1000, func() { std.OnBar(bar) }); allocs != 0 {
		t.Errorf("OnBar(standard) allocates %.1f times per call", allocs)
	}
}

func BenchmarkOnOrderBook(b *testing.B) {
	e := benchEngine(b)
	snap := testSnapshot(50000, 50010)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap.BestBid = 50000 + float64(i&63)
		snap.BestAsk = snap.BestBid + 10
		e.OnOrderBook(snap)
	}
}

func BenchmarkOnBarParkinson(b *testing.B) {
	e := benchEngine(b)
	bar := market.Bar{Open: 50000, High: 50030, Low: 49980, Close: 50010}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.OnBar(bar)
	}
}

func BenchmarkOnFill(b *testing.B) {
	e := benchEngine(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i&1 == 0 {
			e.OnFill(Buy, 0.0001)
		} else {
			e.OnFill(Sell, 0.0001)
		}
	}
}

func BenchmarkStats(b *testing.B) {
	e := benchEngine(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Stats()
	}
}
