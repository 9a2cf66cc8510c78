package sim

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"as-market-maker/infrastructure/logger"
	"as-market-maker/infrastructure/monitor"
	"as-market-maker/order"
	"as-market-maker/strategy/asmm"
)

// RunnerConfig 描述 Runner 的组装参数。
type RunnerConfig struct {
	Symbol      string
	Strategy    asmm.Config
	Constraints order.SymbolConstraints

	RequotePerSecond float64 // 0 表示不限速
	RequoteBurst     int

	Gateway order.Gateway    // 为空时使用 PaperGateway
	Logger  *logger.Logger   // 可选
	Monitor *monitor.Monitor // 可选
}

// BuildRunner 基于配置组装 Runner（默认使用内存网关，适合离线/仿真）。
func BuildRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("build runner: symbol is required")
	}
	log := cfg.Logger
	if log == nil {
		log = nopLogger
	}
	engine, err := asmm.New(cfg.Strategy, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	gw := cfg.Gateway
	if gw == nil {
		gw = NewPaperGateway(log.WithFields(map[string]interface{}{"component": "paper_gateway"}))
	}
	mgr := order.NewManager(gw)
	mgr.SetConstraints(map[string]order.SymbolConstraints{cfg.Symbol: cfg.Constraints})

	r := NewRunner(cfg.Symbol, engine, mgr)
	if cfg.Logger != nil {
		r.Log = cfg.Logger.WithFields(map[string]interface{}{"component": "runner"})
	}
	r.Monitor = cfg.Monitor
	if cfg.RequotePerSecond > 0 {
		burst := cfg.RequoteBurst
		if burst < 1 {
			burst = 1
		}
		r.Limiter = rate.NewLimiter(rate.Limit(cfg.RequotePerSecond), burst)
	}
	return r, nil
}

// PaperGateway 只记录订单不连交易所，用于纸面交易和回测。
type PaperGateway struct {
	log *logger.Logger

	mu       sync.Mutex
	placed   int
	canceled int
}

func NewPaperGateway(log *logger.Logger) *PaperGateway {
	if log == nil {
		log = nopLogger
	}
	return &PaperGateway{log: log}
}

func (p *PaperGateway) Place(o order.Order) (string, error) {
	p.mu.Lock()
	p.placed++
	p.mu.Unlock()
	p.log.Debug("paper order placed",
		zap.String("id", o.ID),
		zap.String("side", o.Side),
		zap.Float64("price", o.Price),
		zap.Float64("qty", o.Quantity),
	)
	return o.ID, nil
}

func (p *PaperGateway) Cancel(orderID string) error {
	p.mu.Lock()
	p.canceled++
	p.mu.Unlock()
	p.log.Debug("paper order canceled", zap.String("id", orderID))
	return nil
}

// Counts 返回累计下单/撤单次数。
func (p *PaperGateway) Counts() (placed, canceled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placed, p.canceled
}
