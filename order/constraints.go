package order

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// SymbolConstraints 描述交易对的步长与名义限制。
type SymbolConstraints struct {
	TickSize    float64
	StepSize    float64
	MinQty      float64
	MaxQty      float64
	MinNotional float64
}

// Validate 检查订单价格/数量是否符合精度与最小名义。
func (c SymbolConstraints) Validate(price, qty float64) error {
	if !finite(price) || !finite(qty) {
		return fmt.Errorf("non-finite price %v or qty %v", price, qty)
	}
	if c.TickSize > 0 && !isMultiple(price, c.TickSize) {
		return fmt.Errorf("price %.8f not aligned to tickSize %.8f", price, c.TickSize)
	}
	if c.StepSize > 0 && !isMultiple(qty, c.StepSize) {
		return fmt.Errorf("qty %.8f not aligned to stepSize %.8f", qty, c.StepSize)
	}
	if c.MinQty > 0 && qty < c.MinQty {
		return fmt.Errorf("qty %.8f < minQty %.8f", qty, c.MinQty)
	}
	if c.MaxQty > 0 && qty > c.MaxQty {
		return fmt.Errorf("qty %.8f > maxQty %.8f", qty, c.MaxQty)
	}
	if c.MinNotional > 0 && price*qty < c.MinNotional {
		return fmt.Errorf("notional %.8f < minNotional %.8f", price*qty, c.MinNotional)
	}
	return nil
}

// RoundBid 买价向下取整到 tick，不会比模型价更激进。
func (c SymbolConstraints) RoundBid(price float64) float64 {
	return roundTo(price, c.TickSize, decimal.Decimal.Floor)
}

// RoundAsk 卖价向上取整到 tick。
func (c SymbolConstraints) RoundAsk(price float64) float64 {
	return roundTo(price, c.TickSize, decimal.Decimal.Ceil)
}

// RoundQty 数量向下取整到 step；低于 MinQty 或名义不足时返回 0，表示该边不挂单。
// 价格或数量非有限值同样返回 0。
func (c SymbolConstraints) RoundQty(price, qty float64) float64 {
	if !finite(price) {
		return 0
	}
	q := roundTo(qty, c.StepSize, decimal.Decimal.Floor)
	if c.MaxQty > 0 && q > c.MaxQty {
		q = roundTo(c.MaxQty, c.StepSize, decimal.Decimal.Floor)
	}
	if q <= 0 || (c.MinQty > 0 && q < c.MinQty) {
		return 0
	}
	if c.MinNotional > 0 && price*q < c.MinNotional {
		return 0
	}
	return q
}

// roundTo 对 NaN/Inf 返回 0，decimal 无法表示它们。
func roundTo(v, step float64, mode func(decimal.Decimal) decimal.Decimal) float64 {
	if !finite(v) {
		return 0
	}
	if step <= 0 {
		return v
	}
	s := decimal.NewFromFloat(step)
	return mode(decimal.NewFromFloat(v).Div(s)).Mul(s).InexactFloat64()
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func isMultiple(value, step float64) bool {
	if step <= 0 {
		return true
	}
	return decimal.NewFromFloat(value).Mod(decimal.NewFromFloat(step)).IsZero()
}
