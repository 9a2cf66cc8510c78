package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器。所有方法可并发调用。
type Monitor struct {
	registry *prometheus.Registry

	// 行情指标
	orderbookUpdates prometheus.Counter
	midPrice         prometheus.Gauge
	volatility       prometheus.Gauge

	// 报价指标
	quotesGenerated   prometheus.Counter
	requotesThrottled prometheus.Counter
	bidPrice          prometheus.Gauge
	askPrice          prometheus.Gauge
	spread            prometheus.Gauge
	reservationPrice  prometheus.Gauge
	quoteSize         prometheus.Gauge
	quoteLatency      prometheus.Histogram

	// 订单指标
	ordersPlaced   prometheus.Counter
	ordersCanceled prometheus.Counter
	orderErrors    *prometheus.CounterVec

	// 成交/仓位指标
	fills             *prometheus.CounterVec
	filledVolume      prometheus.Counter
	position          prometheus.Gauge
	inventoryBreaches prometheus.Counter

	// 系统指标
	wsConnections prometheus.Counter
	wsDisconnects prometheus.Counter
	configReloads *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mm",
		Subsystem: "asmm",
	}
}

// New 创建新的Monitor实例，指标注册在私有 registry 上。
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Monitor{
		registry: reg,

		orderbookUpdates: counter("orderbook_updates_total", "处理的盘口快照总数"),
		midPrice:         gauge("mid_price", "当前中间价"),
		volatility:       gauge("volatility", "当前波动率估计"),

		quotesGenerated:   counter("quotes_generated_total", "策略生成报价总数"),
		requotesThrottled: counter("requotes_throttled_total", "因限速被跳过的重报价次数"),
		bidPrice:          gauge("bid_price", "当前报价买价"),
		askPrice:          gauge("ask_price", "当前报价卖价"),
		spread:            gauge("spread", "当前报价价差"),
		reservationPrice:  gauge("reservation_price", "当前保留价"),
		quoteSize:         gauge("quote_size", "当前单边报价数量"),
		quoteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "quote_latency_seconds",
			Help:      "盘口到报价的计算耗时（秒）",
			Buckets:   []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 1e-3},
		}),

		ordersPlaced:   counter("orders_placed_total", "订单下单总数"),
		ordersCanceled: counter("orders_canceled_total", "订单撤单总数"),
		orderErrors:    counterVec("order_errors_total", "下单/撤单错误总数", "action"),

		fills:             counterVec("fills_total", "成交笔数", "side"),
		filledVolume:      counter("filled_volume_total", "累计成交量"),
		position:          gauge("position", "当前净仓位"),
		inventoryBreaches: counter("inventory_limit_breaches_total", "成交后仓位超过软限制的次数"),

		wsConnections: counter("ws_connections_total", "WebSocket连接次数"),
		wsDisconnects: counter("ws_disconnects_total", "WebSocket断开次数"),
		configReloads: counterVec("config_reloads_total", "配置热加载次数", "result"),
	}
}

// 行情相关方法
func (m *Monitor) RecordOrderbookUpdate(mid float64) {
	m.orderbookUpdates.Inc()
	if mid > 0 {
		m.midPrice.Set(mid)
	}
}

func (m *Monitor) UpdateVolatility(value float64) {
	m.volatility.Set(value)
}

// RecordQuote 记录一次报价及其计算耗时。
func (m *Monitor) RecordQuote(bid, ask, size, spread, reservation float64, latency time.Duration) {
	m.quotesGenerated.Inc()
	m.bidPrice.Set(bid)
	m.askPrice.Set(ask)
	m.quoteSize.Set(size)
	m.spread.Set(spread)
	m.reservationPrice.Set(reservation)
	m.quoteLatency.Observe(latency.Seconds())
}

func (m *Monitor) RecordRequoteThrottled() {
	m.requotesThrottled.Inc()
}

// 订单相关方法
func (m *Monitor) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

func (m *Monitor) RecordOrderCanceled() {
	m.ordersCanceled.Inc()
}

func (m *Monitor) RecordOrderError(action string) {
	m.orderErrors.WithLabelValues(action).Inc()
}

// 成交/仓位相关方法
func (m *Monitor) RecordFill(side string, qty, position float64) {
	m.fills.WithLabelValues(side).Inc()
	m.filledVolume.Add(qty)
	m.position.Set(position)
}

func (m *Monitor) RecordInventoryBreach() {
	m.inventoryBreaches.Inc()
}

// 系统相关方法
func (m *Monitor) RecordWSConnection() {
	m.wsConnections.Inc()
}

func (m *Monitor) RecordWSDisconnect() {
	m.wsDisconnects.Inc()
}

func (m *Monitor) RecordConfigReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.configReloads.WithLabelValues(result).Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Serve 在 addr 上暴露 /metrics，直到 ctx 结束。addr 为空时直接返回。
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	return m.serve(ctx, ln)
}

func (m *Monitor) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
