package market

import "sync"

// OrderBook 维护简单的价格->数量映射，用于从部分深度快照推导最优档。
type OrderBook struct {
	mu   sync.RWMutex
	bids map[float64]float64 // price -> qty
	asks map[float64]float64
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids: make(map[float64]float64),
		asks: make(map[float64]float64),
	}
}

// Replace 用全量档位覆盖当前盘口（例如 bookTicker / 部分深度快照）。
func (ob *OrderBook) Replace(bids map[float64]float64, asks map[float64]float64) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	clear(ob.bids)
	clear(ob.asks)
	apply(ob.bids, bids)
	apply(ob.asks, asks)
}

func apply(side map[float64]float64, levels map[float64]float64) {
	for p, q := range levels {
		if q == 0 {
			delete(side, p)
		} else {
			side[p] = q
		}
	}
}

// Best 返回最好买/卖价；若不存在则为 0。
func (ob *OrderBook) Best() (bestBid float64, bestAsk float64) {
	bestBid, _, bestAsk, _ = ob.bestLevels()
	return bestBid, bestAsk
}

func (ob *OrderBook) bestLevels() (bid, bidQty, ask, askQty float64) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	for p, q := range ob.bids {
		if p > bid {
			bid, bidQty = p, q
		}
	}
	for p, q := range ob.asks {
		if ask == 0 || p < ask {
			ask, askQty = p, q
		}
	}
	return
}

// Mid 返回中间价；若缺失任一侧返回 0。
func (ob *OrderBook) Mid() float64 {
	bid, ask := ob.Best()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Snapshot 生成引擎使用的盘口快照，tsNanos 为 unix 纳秒时间戳。
func (ob *OrderBook) Snapshot(tsNanos int64) Snapshot {
	bid, bidQty, ask, askQty := ob.bestLevels()
	return Snapshot{
		BestBid:   bid,
		BestAsk:   ask,
		BidVolume: bidQty,
		AskVolume: askQty,
		Timestamp: tsNanos,
	}
}
