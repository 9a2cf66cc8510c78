package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"as-market-maker/infrastructure/logger"
	"as-market-maker/order"
	"as-market-maker/strategy/asmm"
)

// AppConfig holds the quoter's runtime configuration.
type AppConfig struct {
	Env      string        `yaml:"env"`
	Log      logger.Config `yaml:"log"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Strategy asmm.Config   `yaml:"strategy"`
	Feed     FeedConfig    `yaml:"feed"`
	Router   RouterConfig  `yaml:"router"`
	Watch    WatchConfig   `yaml:"watch"`
}

type MetricsConfig struct {
	Addr      string `yaml:"addr"` // 为空则不启动 /metrics
	Namespace string `yaml:"namespace"`
}

// FeedConfig 描述行情 websocket 订阅。
type FeedConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Symbol        string `yaml:"symbol"`
	KlineInterval string `yaml:"klineInterval"`
}

// RouterConfig 保存交易对的精度/名义限制以及重报价限速。
type RouterConfig struct {
	TickSize         float64 `yaml:"tickSize"`
	StepSize         float64 `yaml:"stepSize"`
	MinQty           float64 `yaml:"minQty"`
	MaxQty           float64 `yaml:"maxQty"`
	MinNotional      float64 `yaml:"minNotional"`
	RequotePerSecond float64 `yaml:"requotePerSecond"` // 0 表示不限速
	RequoteBurst     int     `yaml:"requoteBurst"`
}

// Constraints converts the router block into order rounding constraints.
func (r RouterConfig) Constraints() order.SymbolConstraints {
	return order.SymbolConstraints{
		TickSize:    r.TickSize,
		StepSize:    r.StepSize,
		MinQty:      r.MinQty,
		MaxQty:      r.MaxQty,
		MinNotional: r.MinNotional,
	}
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// Default returns a configuration that passes Validate.
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Log: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Addr:      ":9100",
			Namespace: "mm",
		},
		Strategy: asmm.DefaultConfig(),
		Feed: FeedConfig{
			Endpoint:      "wss://stream.binance.com:9443",
			Symbol:        "BTCUSDT",
			KlineInterval: "1m",
		},
		Router: RouterConfig{
			TickSize:         0.01,
			StepSize:         0.00001,
			MinQty:           0.00001,
			MaxQty:           9000,
			MinNotional:      5,
			RequotePerSecond: 10,
			RequoteBurst:     5,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Cooldown: 2 * time.Second,
		},
	}
}

// Load reads YAML config from path on top of Default and validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deployment fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("MM_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("MM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("MM_FEED_SYMBOL"); v != "" {
		cfg.Feed.Symbol = v
	}
	if v := os.Getenv("MM_FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
}
