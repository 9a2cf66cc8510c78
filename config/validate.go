package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present and the strategy block is usable.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if _, err := zapcore.ParseLevel(cfg.Log.Level); err != nil {
		return ErrInvalid(fmt.Sprintf("log.level %q is not a valid level", cfg.Log.Level))
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if cfg.Feed.Symbol == "" {
		return ErrInvalid("feed.symbol is required")
	}
	r := cfg.Router
	if r.TickSize <= 0 {
		return ErrInvalid("router.tickSize must be > 0")
	}
	if r.StepSize <= 0 {
		return ErrInvalid("router.stepSize must be > 0")
	}
	if r.MinQty < 0 || r.MaxQty < 0 {
		return ErrInvalid("router qty bounds must be >= 0")
	}
	if r.MaxQty > 0 && r.MinQty > r.MaxQty {
		return ErrInvalid("router.minQty must be <= router.maxQty")
	}
	if r.MinNotional < 0 {
		return ErrInvalid("router.minNotional must be >= 0")
	}
	if r.RequotePerSecond < 0 {
		return ErrInvalid("router.requotePerSecond must be >= 0")
	}
	if r.RequotePerSecond > 0 && r.RequoteBurst < 1 {
		return ErrInvalid("router.requoteBurst must be >= 1 when requotePerSecond is set")
	}
	if cfg.Watch.Cooldown < 0 {
		return ErrInvalid("watch.cooldown must be >= 0")
	}
	return nil
}
