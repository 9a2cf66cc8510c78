package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"as-market-maker/config"
	"as-market-maker/gateway"
	"as-market-maker/infrastructure/logger"
	"as-market-maker/infrastructure/monitor"
	"as-market-maker/sim"
)

// 实时报价：Binance 行情 -> AS 引擎 -> 纸面网关（只记录订单，不连交易所）。
// 用法：
//
//	go run ./cmd/quoter -config configs/quoter.yaml -env .env
func main() {
	cfgPath := flag.String("config", "configs/quoter.yaml", "配置文件路径")
	envFile := flag.String("env", ".env", "环境变量文件，不存在则忽略")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("加载 %s 失败: %v", *envFile, err)
	}

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfgPath, cfg, lg); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("quoter exited", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("quoter exit", zap.String("symbol", cfg.Feed.Symbol))
}

func run(ctx context.Context, cfgPath string, cfg config.AppConfig, lg *logger.Logger) error {
	symbol := strings.ToUpper(cfg.Feed.Symbol)
	mon := monitor.New(monitor.Config{Namespace: cfg.Metrics.Namespace, Subsystem: "asmm"})

	runner, err := sim.BuildRunner(sim.RunnerConfig{
		Symbol:           symbol,
		Strategy:         cfg.Strategy,
		Constraints:      cfg.Router.Constraints(),
		RequotePerSecond: cfg.Router.RequotePerSecond,
		RequoteBurst:     cfg.Router.RequoteBurst,
		Logger:           lg,
		Monitor:          mon,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := mon.Serve(ctx, cfg.Metrics.Addr); err != nil {
			lg.LogError(err, map[string]interface{}{"component": "metrics", "addr": cfg.Metrics.Addr})
		}
	}()

	if cfg.Watch.Enabled {
		w, err := config.NewWatcher(cfgPath, cfg.Watch.Cooldown, lg.Logger)
		if err != nil {
			return err
		}
		defer w.Close()
		go w.Run(ctx, func(next config.AppConfig, err error) {
			mon.RecordConfigReload(err == nil)
			if err != nil {
				lg.LogError(err, map[string]interface{}{"component": "config", "path": cfgPath})
				return
			}
			if err := runner.Reload(next.Strategy); err != nil {
				lg.LogError(err, map[string]interface{}{"component": "config", "path": cfgPath})
				return
			}
			lg.LogConfig(cfgPath, map[string]interface{}{"instrument": next.Strategy.InstrumentID})
			if !strings.EqualFold(next.Feed.Symbol, symbol) || next.Router != cfg.Router {
				lg.Warn("feed/router changes need a restart", zap.String("symbol", next.Feed.Symbol))
			}
		})
	}

	ws := gateway.NewBinanceWS(cfg.Feed.Endpoint, symbol, cfg.Feed.KlineInterval)
	ws.Log = lg.Logger
	ws.Monitor = mon

	runner.Start()
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("systemd notify failed", zap.Error(err))
	} else if ok {
		lg.Info("systemd notified ready")
	}

	err = ws.Run(ctx, runner)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if stopErr := runner.Stop(); stopErr != nil {
		lg.LogError(stopErr, map[string]interface{}{"component": "runner"})
	}
	stats := runner.Stats()
	lg.Info("final stats",
		zap.Uint64("quotes", stats.QuoteUpdates),
		zap.Uint64("orderbookUpdates", stats.OrderbookUpdates),
		zap.Uint64("fills", stats.InventoryAdjustments),
		zap.Float64("inventory", stats.CurrentInventory),
	)
	return err
}
