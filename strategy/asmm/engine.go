// Package asmm implements an Avellaneda–Stoikov market-making quote engine
// for a single instrument.
//
// An Engine is driven synchronously by one goroutine through OnOrderBook,
// OnBar, OnFill and Reset. Stats and the scalar accessors may be called from
// other goroutines: every field they read is an atomic cell padded to its own
// cache line. Nothing else is safe for concurrent use.
package asmm

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"as-market-maker/internal/atomicx"
	"as-market-maker/inventory"
	"as-market-maker/market"
)

// Engine holds the quoting state of one instrument.
type Engine struct {
	cfg   Config
	model VolatilityModel
	log   *zap.Logger

	mid        atomicx.PaddedFloat64
	volatility atomicx.PaddedFloat64
	inv        inventory.Tracker

	quoteUpdates         atomicx.PaddedUint64
	orderbookUpdates     atomicx.PaddedUint64
	inventoryAdjustments atomicx.PaddedUint64
	inventoryBreaches    atomicx.PaddedUint64
	lastUpdate           atomicx.PaddedInt64

	// writer-only state
	prices    *market.Ring[float64]
	ranges    *market.Ring[market.HighLow]
	bars      *market.Ring[market.OHLC]
	ewma      market.EWMAVolatility
	lastClose float64
}

// New validates cfg and builds an engine with both histories pre-allocated
// to cfg.VolatilityWindow. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:    cfg,
		model:  cfg.Model(),
		log:    logger.With(zap.String("instrument", cfg.InstrumentID)),
		prices: market.NewRing[float64](cfg.VolatilityWindow),
		ranges: market.NewRing[market.HighLow](cfg.VolatilityWindow),
		bars:   market.NewRing[market.OHLC](cfg.VolatilityWindow),
		ewma:   *market.NewEWMAVolatility(cfg.EWMAAlpha),
	}
	e.volatility.Store(market.DefaultVolatility)
	return e, nil
}

// OnOrderBook refreshes the mid-price, records it in the price history and
// returns a fresh quote. ok is false when the snapshot is missing a side; the
// update is still counted and its timestamp recorded.
func (e *Engine) OnOrderBook(snap market.Snapshot) (q QuoteUpdate, ok bool) {
	e.orderbookUpdates.Add(1)
	e.lastUpdate.Store(snap.Timestamp)
	if !snap.Valid() {
		return QuoteUpdate{}, false
	}

	mid := snap.Mid()
	e.mid.Store(mid)
	e.prices.Push(mid)

	q = ComputeQuote(e.cfg, mid, e.volatility.Load(), e.inv.NetExposure())
	q.Timestamp = snap.Timestamp
	e.quoteUpdates.Add(1)
	return q, true
}

// OnBar pushes the bar into the range and OHLC histories and recomputes the
// volatility estimate with the configured model. It never produces a quote.
func (e *Engine) OnBar(bar market.Bar) {
	e.ranges.Push(bar.HighLow())
	e.bars.Push(bar.OHLC())

	var vol float64
	switch e.model {
	case ModelParkinson:
		vol = market.ParkinsonVolatility(e.ranges)
	case ModelStandard:
		vol = market.StandardVolatility(e.prices)
	case ModelGarmanKlass:
		vol = market.GarmanKlassVolatility(e.bars)
	case ModelEWMA:
		vol = e.updateEWMA(bar.Close)
	}
	if !(vol >= 0) || math.IsInf(vol, 1) {
		vol = market.DefaultVolatility
	}
	e.volatility.Store(vol)
}

func (e *Engine) updateEWMA(closePrice float64) float64 {
	if r, ok := market.LogReturn(e.lastClose, closePrice); ok {
		e.ewma.Update(r)
	}
	if closePrice > 0 && !math.IsInf(closePrice, 1) {
		e.lastClose = closePrice
	}
	if !e.ewma.Seeded() {
		return market.DefaultVolatility
	}
	return e.ewma.Value()
}

// OnFill applies a fill to the inventory: buys add, sells subtract. Breaching
// MaxInventory only logs a warning. Unknown sides and non-positive quantities
// are dropped.
func (e *Engine) OnFill(side Side, qty float64) {
	var delta float64
	switch side {
	case Buy:
		delta = qty
	case Sell:
		delta = -qty
	default:
		e.log.Debug("fill ignored: unknown side", zap.String("side", string(side)))
		return
	}
	if !(qty > 0) || math.IsInf(qty, 1) {
		e.log.Debug("fill ignored: bad quantity", zap.Float64("qty", qty))
		return
	}

	e.inventoryAdjustments.Add(1)
	inv := e.inv.Update(delta)
	if math.Abs(inv) > e.cfg.MaxInventory {
		e.inventoryBreaches.Add(1)
		e.log.Warn("inventory exceeds limit",
			zap.Float64("inventory", inv),
			zap.Float64("max", e.cfg.MaxInventory),
		)
	}
}

// RestoreInventory sets the position to q without counting an adjustment or
// checking the soft limit. It is meant for seeding a fresh engine with a
// position carried over from elsewhere; non-finite values are ignored.
func (e *Engine) RestoreInventory(q float64) {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return
	}
	e.inv.Set(q)
}

// Reset returns every mutable field to its construction-time value. The
// configuration and the history storage are kept.
func (e *Engine) Reset() {
	e.mid.Store(0)
	e.volatility.Store(market.DefaultVolatility)
	e.inv.Reset()
	e.prices.Clear()
	e.ranges.Clear()
	e.bars.Clear()
	e.ewma.Reset()
	e.lastClose = 0
	e.quoteUpdates.Store(0)
	e.orderbookUpdates.Store(0)
	e.inventoryAdjustments.Store(0)
	e.inventoryBreaches.Store(0)
	e.lastUpdate.Store(0)
}

// Stats returns counters and the latest market/inventory view. Each field is
// read atomically; the set as a whole is not a consistent snapshot while a
// writer is active.
func (e *Engine) Stats() Stats {
	return Stats{
		QuoteUpdates:         e.quoteUpdates.Load(),
		OrderbookUpdates:     e.orderbookUpdates.Load(),
		InventoryAdjustments: e.inventoryAdjustments.Load(),
		InventoryBreaches:    e.inventoryBreaches.Load(),
		CurrentInventory:     e.inv.NetExposure(),
		CurrentVolatility:    e.volatility.Load(),
		MidPrice:             e.mid.Load(),
		LastUpdate:           e.lastUpdate.Load(),
	}
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Inventory() float64 { return e.inv.NetExposure() }

// InventoryExceeded is the soft-limit predicate |inventory| > MaxInventory.
func (e *Engine) InventoryExceeded() bool { return e.inv.Exceeds(e.cfg.MaxInventory) }

func (e *Engine) Volatility() float64 { return e.volatility.Load() }

func (e *Engine) MidPrice() float64 { return e.mid.Load() }

// LastUpdate is the timestamp of the latest order-book snapshot, unix nanoseconds.
func (e *Engine) LastUpdate() int64 { return e.lastUpdate.Load() }

// StandardVolatility evaluates the log-return estimator over the current
// price history. Writer goroutine only.
func (e *Engine) StandardVolatility() float64 {
	return market.StandardVolatility(e.prices)
}

// ParkinsonVolatility evaluates the range estimator over the current OHLC
// history. Writer goroutine only.
func (e *Engine) ParkinsonVolatility() float64 {
	return market.ParkinsonVolatility(e.ranges)
}

// GarmanKlassVolatility evaluates the OHLC estimator over the current bar
// history. Writer goroutine only.
func (e *Engine) GarmanKlassVolatility() float64 {
	return market.GarmanKlassVolatility(e.bars)
}

// PriceHistoryLen and RangeHistoryLen never exceed Config.VolatilityWindow.
func (e *Engine) PriceHistoryLen() int { return e.prices.Len() }

func (e *Engine) RangeHistoryLen() int { return e.ranges.Len() }
