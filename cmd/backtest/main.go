package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"as-market-maker/config"
	"as-market-maker/infrastructure/logger"
	"as-market-maker/market"
	"as-market-maker/sim"
)

type summary struct {
	Symbol         string
	Snapshots      int
	Quotes         uint64
	Bars           int
	BuyFills       int
	SellFills      int
	Inventory      float64
	Cash           float64
	PnL            float64
	Volatility     float64
	Min            float64
	Max            float64
	Mean           float64
	MaxDrawdownPct float64
}

// 回放盘口快照 CSV，驱动 AS 引擎并模拟挂单成交。
// 用法：
//
//	go run ./cmd/backtest -config configs/quoter.yaml -data data/btc_book.csv -bar 1m -out summary.csv
func main() {
	cfgPath := flag.String("config", "", "配置文件路径，留空使用默认配置")
	dataPath := flag.String("data", "data/book.csv", "盘口快照 CSV：ts_ns,bid,ask[,bid_qty,ask_qty]")
	barInterval := flag.Duration("bar", time.Minute, "K 线周期，用于波动率估计")
	outPath := flag.String("out", "", "若指定则写入 CSV 汇总")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.LoadWithEnvOverrides(*cfgPath); err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	f, err := os.Open(*dataPath)
	if err != nil {
		lg.Fatal("open replay", zap.String("path", *dataPath), zap.Error(err))
	}
	snaps, err := sim.ReadSnapshots(f)
	f.Close()
	if err != nil {
		lg.Fatal("read replay", zap.Error(err))
	}
	if len(snaps) == 0 {
		lg.Fatal("replay is empty", zap.String("path", *dataPath))
	}

	sum, err := run(cfg, lg, snaps, *barInterval)
	if err != nil {
		lg.Fatal("backtest failed", zap.Error(err))
	}
	lg.Info("backtest done",
		zap.String("symbol", sum.Symbol),
		zap.Int("snapshots", sum.Snapshots),
		zap.Uint64("quotes", sum.Quotes),
		zap.Int("bars", sum.Bars),
		zap.Int("buyFills", sum.BuyFills),
		zap.Int("sellFills", sum.SellFills),
		zap.Float64("inventory", sum.Inventory),
		zap.Float64("pnl", sum.PnL),
		zap.Float64("maxDrawdownPct", sum.MaxDrawdownPct),
	)

	if *outPath != "" {
		if err := writeSummaryCSV(*outPath, []summary{sum}); err != nil {
			lg.Error("写入汇总 CSV 失败", zap.Error(err))
		} else {
			lg.Info("已写入汇总", zap.String("path", *outPath))
		}
	}
}

// run 依次处理快照：先用新盘口撮合上一轮挂单，再送入引擎重新报价。
func run(cfg config.AppConfig, lg *logger.Logger, snaps []market.Snapshot, bar time.Duration) (summary, error) {
	r, err := sim.BuildRunner(sim.RunnerConfig{
		Symbol:           cfg.Feed.Symbol,
		Strategy:         cfg.Strategy,
		Constraints:      cfg.Router.Constraints(),
		RequotePerSecond: cfg.Router.RequotePerSecond,
		RequoteBurst:     cfg.Router.RequoteBurst,
		Logger:           lg,
	})
	if err != nil {
		return summary{}, err
	}
	r.Start()

	sum := summary{Symbol: cfg.Feed.Symbol, Snapshots: len(snaps)}
	agg := market.NewKlineAggregator(bar)
	mids := make([]float64, 0, len(snaps))
	lastMid := 0.0

	for _, snap := range snaps {
		if snap.Valid() {
			if err := matchResting(r, snap, &sum); err != nil {
				return sum, err
			}
		}
		if err := r.OnBook(snap); err != nil && !errors.Is(err, sim.ErrNotTrading) {
			lg.Warn("requote failed", zap.Error(err))
		}
		if !snap.Valid() {
			continue
		}
		mid := snap.Mid()
		lastMid = mid
		mids = append(mids, mid)
		if k := agg.OnTradeEvent(market.Trade{Price: mid, Ts: time.Unix(0, snap.Timestamp)}); k != nil {
			r.OnBar(k.Bar())
			sum.Bars++
		}
	}
	if k := agg.Flush(); k != nil {
		r.OnBar(k.Bar())
		sum.Bars++
	}
	if err := r.Stop(); err != nil {
		lg.Warn("stop runner", zap.Error(err))
	}

	stats := r.Stats()
	st := computeStats(mids)
	sum.Quotes = stats.QuoteUpdates
	sum.Inventory = stats.CurrentInventory
	sum.Volatility = stats.CurrentVolatility
	sum.PnL = sum.Cash + sum.Inventory*lastMid
	sum.Min, sum.Max, sum.Mean, sum.MaxDrawdownPct = st.Min, st.Max, st.Mean, st.MaxDrawdownPct
	return sum, nil
}

// matchResting 盘口穿过挂单价即视为全部成交，按挂单价结算。
func matchResting(r *sim.Runner, snap market.Snapshot, sum *summary) error {
	for _, o := range r.OrderMgr.Open() {
		var filled bool
		switch o.Side {
		case "BUY":
			filled = snap.BestAsk <= o.Price
		case "SELL":
			filled = snap.BestBid >= o.Price
		}
		if !filled {
			continue
		}
		if err := r.FillOrder(o); err != nil {
			return fmt.Errorf("fill %s: %w", o.ID, err)
		}
		notional := o.Price * o.Quantity
		if o.Side == "BUY" {
			sum.BuyFills++
			sum.Cash -= notional
		} else {
			sum.SellFills++
			sum.Cash += notional
		}
	}
	return nil
}

type statsResult struct {
	Min            float64
	Max            float64
	Mean           float64
	MaxDrawdownPct float64
}

func computeStats(series []float64) statsResult {
	if len(series) == 0 {
		return statsResult{}
	}
	lo, hi := series[0], series[0]
	sum := 0.0
	peak := series[0]
	maxDD := 0.0
	for _, v := range series {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
		if v > peak {
			peak = v
		}
		if peak != 0 {
			dd := (peak - v) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return statsResult{
		Min:            lo,
		Max:            hi,
		Mean:           sum / float64(len(series)),
		MaxDrawdownPct: maxDD,
	}
}

func writeSummaryCSV(path string, sums []summary) error {
	if len(sums) == 0 {
		return fmt.Errorf("no summary data")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	header := []string{"symbol", "snapshots", "quotes", "bars", "buyFills", "sellFills",
		"inventory", "cash", "pnl", "volatility", "min", "max", "mean", "maxDrawdownPct"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, s := range sums {
		record := []string{
			s.Symbol,
			fmt.Sprintf("%d", s.Snapshots),
			fmt.Sprintf("%d", s.Quotes),
			fmt.Sprintf("%d", s.Bars),
			fmt.Sprintf("%d", s.BuyFills),
			fmt.Sprintf("%d", s.SellFills),
			fmt.Sprintf("%.8f", s.Inventory),
			fmt.Sprintf("%.6f", s.Cash),
			fmt.Sprintf("%.6f", s.PnL),
			fmt.Sprintf("%.8f", s.Volatility),
			fmt.Sprintf("%.6f", s.Min),
			fmt.Sprintf("%.6f", s.Max),
			fmt.Sprintf("%.6f", s.Mean),
			fmt.Sprintf("%.6f", s.MaxDrawdownPct),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
