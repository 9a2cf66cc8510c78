// Package inventory tracks the signed net position built up by fills.
package inventory

import (
	"math"

	"as-market-maker/internal/atomicx"
)

// Tracker 维护净仓位（正=多头）。只允许一个写入者，读取可跨 goroutine。
// 零值即可使用。
type Tracker struct {
	net atomicx.PaddedFloat64
}

// Update 按成交数量调整仓位（买入为正、卖出为负），返回新仓位。不做任何截断。
func (t *Tracker) Update(deltaQty float64) float64 {
	return t.net.Add(deltaQty)
}

// NetExposure 返回当前净仓位。
func (t *Tracker) NetExposure() float64 {
	return t.net.Load()
}

// Exceeds 软限制检查：|net| > limit。只用于告警，不拒绝成交。
func (t *Tracker) Exceeds(limit float64) bool {
	return math.Abs(t.net.Load()) > limit
}

// Set 直接覆盖仓位，用于重建引擎时恢复已有持仓。
func (t *Tracker) Set(qty float64) {
	t.net.Store(qty)
}

// Reset 清零仓位。
func (t *Tracker) Reset() {
	t.net.Store(0)
}
