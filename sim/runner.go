package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"as-market-maker/infrastructure/logger"
	"as-market-maker/infrastructure/monitor"
	"as-market-maker/market"
	"as-market-maker/order"
	"as-market-maker/strategy/asmm"
)

// ErrNotTrading is returned by OnBook while the runner is stopped. The engine
// still absorbs the snapshot; only order routing is skipped.
var ErrNotTrading = errors.New("runner not trading")

// Runner 将行情->AS 引擎->下单串起来。所有事件在内部互斥，引擎始终只有一个写入者。
type Runner struct {
	Symbol   string
	OrderMgr *order.Manager
	Monitor  *monitor.Monitor // 可选
	Log      *logger.Logger   // 可选
	Limiter  *rate.Limiter    // 可选，重报价限速

	mu      sync.Mutex
	engine  *asmm.Engine
	trading bool
	bidID   string
	askID   string
}

// NewRunner wires an engine to an order manager. Trading starts stopped.
func NewRunner(symbol string, engine *asmm.Engine, mgr *order.Manager) *Runner {
	return &Runner{Symbol: symbol, engine: engine, OrderMgr: mgr}
}

// Start 开始下单。
func (r *Runner) Start() {
	r.mu.Lock()
	r.trading = true
	r.mu.Unlock()
	r.logger().Info("runner started", zap.String("symbol", r.Symbol))
}

// Stop 停止下单并撤掉挂单；引擎状态保留。
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trading = false
	err := r.cancelResting()
	r.logger().Info("runner stopped", zap.String("symbol", r.Symbol))
	return err
}

// Trading reports whether quotes are routed to the order manager.
func (r *Runner) Trading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trading
}

// OnBook 接收盘口快照，生成报价并替换双边挂单。
func (r *Runner) OnBook(snap market.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil || r.OrderMgr == nil {
		return errors.New("runner not initialized")
	}
	r.logger().LogBook(r.Symbol, snap.BestBid, snap.BestAsk)

	start := time.Now()
	q, ok := r.engine.OnOrderBook(snap)
	latency := time.Since(start)
	if r.Monitor != nil {
		r.Monitor.RecordOrderbookUpdate(r.engine.MidPrice())
	}
	if !ok {
		r.logger().Debug("snapshot without two-sided book",
			zap.Float64("bid", snap.BestBid), zap.Float64("ask", snap.BestAsk))
		return nil
	}
	if r.Monitor != nil {
		r.Monitor.RecordQuote(q.BidPrice, q.AskPrice, q.BidSize, q.Spread, q.ReservationPrice, latency)
	}
	r.logger().LogQuote(r.Symbol, map[string]interface{}{
		"bid":         q.BidPrice,
		"ask":         q.AskPrice,
		"bidSize":     q.BidSize,
		"askSize":     q.AskSize,
		"spread":      q.Spread,
		"reservation": q.ReservationPrice,
	})

	if !r.trading {
		return ErrNotTrading
	}
	if r.Limiter != nil && !r.Limiter.AllowN(eventTime(snap.Timestamp), 1) {
		if r.Monitor != nil {
			r.Monitor.RecordRequoteThrottled()
		}
		return nil
	}
	return r.requote(q)
}

// OnBar 更新波动率估计。
func (r *Runner) OnBar(bar market.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return
	}
	r.engine.OnBar(bar)
	if r.Monitor != nil {
		r.Monitor.UpdateVolatility(r.engine.Volatility())
	}
}

// OnFill 把成交转给引擎。停止状态下也会处理，仓位必须与交易所一致。
// price 只用于日志，引擎不使用成交价。
func (r *Runner) OnFill(side asmm.Side, qty, price float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return
	}
	r.applyFill(side, qty, price)
}

// FillOrder 标记挂单成交并更新仓位。
func (r *Runner) FillOrder(o order.Order) error {
	side, err := asmm.ParseSide(o.Side)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.OrderMgr.Update(o.ID, order.StatusFilled); err != nil {
		return fmt.Errorf("fill %s: %w", o.ID, err)
	}
	switch o.ID {
	case r.bidID:
		r.bidID = ""
	case r.askID:
		r.askID = ""
	}
	r.applyFill(side, o.Quantity, o.Price)
	return nil
}

func (r *Runner) applyFill(side asmm.Side, qty, price float64) {
	breaches := r.engine.Stats().InventoryBreaches
	r.engine.OnFill(side, qty)
	inv := r.engine.Inventory()

	r.logger().LogFill(r.Symbol, string(side), qty, inv)
	if r.Monitor != nil {
		r.Monitor.RecordFill(string(side), qty, inv)
	}
	if r.engine.Stats().InventoryBreaches > breaches {
		if r.Monitor != nil {
			r.Monitor.RecordInventoryBreach()
		}
		r.logger().LogRisk(r.Symbol, "inventory_breach", map[string]interface{}{
			"inventory": inv,
			"max":       r.engine.Config().MaxInventory,
			"price":     price,
		})
	}
}

// Reload 用新参数重建引擎并带上当前仓位。新配置无效时保留旧引擎。
func (r *Runner) Reload(cfg asmm.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := asmm.New(cfg, r.logger().Logger)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if r.engine != nil {
		next.RestoreInventory(r.engine.Inventory())
	}
	r.engine = next
	r.logger().Info("engine rebuilt",
		zap.String("instrument", cfg.InstrumentID),
		zap.Float64("gamma", cfg.RiskAversion),
		zap.Float64("kappa", cfg.PriceSensitivity),
		zap.Int("window", cfg.VolatilityWindow),
	)
	return nil
}

// Stats 返回引擎统计。
func (r *Runner) Stats() asmm.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return asmm.Stats{}
	}
	return r.engine.Stats()
}

// Engine returns the current engine; it changes on Reload.
func (r *Runner) Engine() *asmm.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine
}

// requote 撤掉上一组挂单，再按精度挂新的双边单。数量为 0 的一边不挂。
func (r *Runner) requote(q asmm.QuoteUpdate) error {
	errs := []error{r.cancelResting()}
	if !finiteQuote(q) {
		if r.Monitor != nil {
			r.Monitor.RecordOrderError("place")
		}
		errs = append(errs, fmt.Errorf("non-finite quote bid=%v ask=%v size=%v", q.BidPrice, q.AskPrice, q.BidSize))
		return errors.Join(errs...)
	}

	c, _ := r.OrderMgr.Constraints(r.Symbol)
	bid, ask := c.RoundBid(q.BidPrice), c.RoundAsk(q.AskPrice)

	if qty := c.RoundQty(bid, q.BidSize); qty > 0 && bid > 0 {
		id, err := r.place("BUY", bid, qty)
		r.bidID = id
		errs = append(errs, err)
	}
	if qty := c.RoundQty(ask, q.AskSize); qty > 0 && ask > 0 {
		id, err := r.place("SELL", ask, qty)
		r.askID = id
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Runner) place(side string, price, qty float64) (string, error) {
	o, err := r.OrderMgr.Submit(order.Order{
		Symbol:   r.Symbol,
		Side:     side,
		Price:    price,
		Quantity: qty,
		ClientID: "asmm",
	})
	if err != nil {
		if r.Monitor != nil {
			r.Monitor.RecordOrderError("place")
		}
		r.logger().LogError(err, map[string]interface{}{"symbol": r.Symbol, "side": side})
		return "", err
	}
	if r.Monitor != nil {
		r.Monitor.RecordOrderPlaced()
	}
	return o.ID, nil
}

func (r *Runner) cancelResting() error {
	var errs []error
	for _, id := range []string{r.bidID, r.askID} {
		if id == "" {
			continue
		}
		if err := r.OrderMgr.Cancel(id); err != nil && !errors.Is(err, order.ErrUnknownOrder) {
			if r.Monitor != nil {
				r.Monitor.RecordOrderError("cancel")
			}
			errs = append(errs, err)
			continue
		}
		if r.Monitor != nil {
			r.Monitor.RecordOrderCanceled()
		}
	}
	r.bidID, r.askID = "", ""
	r.OrderMgr.Prune()
	return errors.Join(errs...)
}

func finiteQuote(q asmm.QuoteUpdate) bool {
	for _, v := range []float64{q.BidPrice, q.AskPrice, q.BidSize, q.AskSize} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

var nopLogger = logger.Wrap(nil)

func (r *Runner) logger() *logger.Logger {
	if r.Log == nil {
		return nopLogger
	}
	return r.Log
}

// eventTime 用快照时间驱动限速，回放时与墙钟无关。
func eventTime(tsNanos int64) time.Time {
	if tsNanos <= 0 {
		return time.Now()
	}
	return time.Unix(0, tsNanos)
}
