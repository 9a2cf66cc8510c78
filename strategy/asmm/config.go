package asmm

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid asmm config")

// VolatilityModel selects the estimator recomputed on every bar.
type VolatilityModel string

const (
	// ModelAuto derives the model from Config.UseParkinson.
	ModelAuto      VolatilityModel = ""
	ModelParkinson VolatilityModel = "parkinson"
	ModelStandard  VolatilityModel = "standard"
	ModelEWMA      VolatilityModel = "ewma"

	// ModelGarmanKlass uses full OHLC bars.
	ModelGarmanKlass VolatilityModel = "garman_klass"
)

// Config holds the Avellaneda–Stoikov parameters of one instrument. It is
// immutable for the lifetime of an Engine.
type Config struct {
	InstrumentID string `yaml:"instrumentId" json:"instrumentId"`

	// RiskAversion γ: larger means wider, more conservative quotes.
	RiskAversion float64 `yaml:"riskAversion" json:"riskAversion"`
	// OrderArrivalRate λ is kept for calibration; the quote formula does not use it.
	OrderArrivalRate float64 `yaml:"orderArrivalRate" json:"orderArrivalRate"`
	// PriceSensitivity κ: larger means a narrower spread adjustment term.
	PriceSensitivity float64 `yaml:"priceSensitivity" json:"priceSensitivity"`
	// TimeHorizon T in seconds.
	TimeHorizon float64 `yaml:"timeHorizon" json:"timeHorizon"`

	BaseOrderSize   float64 `yaml:"baseOrderSize" json:"baseOrderSize"`
	MaxPositionSize float64 `yaml:"maxPositionSize" json:"maxPositionSize"`
	// MaxInventory is a soft bound: it scales quote size and triggers a
	// warning, it never rejects or clamps a fill.
	MaxInventory float64 `yaml:"maxInventory" json:"maxInventory"`

	// VolatilityWindow is the capacity of both rolling histories.
	VolatilityWindow int             `yaml:"volatilityWindow" json:"volatilityWindow"`
	UseParkinson     bool            `yaml:"useParkinson" json:"useParkinson"`
	VolatilityModel  VolatilityModel `yaml:"volatilityModel" json:"volatilityModel"`
	EWMAAlpha        float64         `yaml:"ewmaAlpha" json:"ewmaAlpha"`

	InventoryPenaltyFactor float64 `yaml:"inventoryPenaltyFactor" json:"inventoryPenaltyFactor"`
	MaxSpreadBps           float64 `yaml:"maxSpreadBps" json:"maxSpreadBps"`
	MinSpreadBps           float64 `yaml:"minSpreadBps" json:"minSpreadBps"`
}

// DefaultConfig returns the reference BTCUSDT parameters.
func DefaultConfig() Config {
	return Config{
		InstrumentID:           "BTCUSDT.BINANCE",
		RiskAversion:           0.1,
		OrderArrivalRate:       100,
		PriceSensitivity:       1.5,
		TimeHorizon:            300,
		BaseOrderSize:          0.001,
		MaxPositionSize:        0.1,
		MaxInventory:           0.05,
		VolatilityWindow:       20,
		UseParkinson:           true,
		EWMAAlpha:              0.06,
		InventoryPenaltyFactor: 2.0,
		MaxSpreadBps:           200,
		MinSpreadBps:           2,
	}
}

// Model resolves the effective volatility model.
func (c Config) Model() VolatilityModel {
	if c.VolatilityModel != ModelAuto {
		return c.VolatilityModel
	}
	if c.UseParkinson {
		return ModelParkinson
	}
	return ModelStandard
}

// Validate checks the configuration; an Engine is never built from a config
// that fails here.
func (c Config) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"riskAversion", c.RiskAversion},
		{"orderArrivalRate", c.OrderArrivalRate},
		{"priceSensitivity", c.PriceSensitivity},
		{"timeHorizon", c.TimeHorizon},
		{"baseOrderSize", c.BaseOrderSize},
		{"maxPositionSize", c.MaxPositionSize},
		{"maxInventory", c.MaxInventory},
		{"ewmaAlpha", c.EWMAAlpha},
		{"inventoryPenaltyFactor", c.InventoryPenaltyFactor},
		{"maxSpreadBps", c.MaxSpreadBps},
		{"minSpreadBps", c.MinSpreadBps},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return invalid("%s must be finite, got %v", f.name, f.v)
		}
	}
	if !(c.RiskAversion > 0) {
		return invalid("riskAversion must be > 0, got %v", c.RiskAversion)
	}
	if !(c.BaseOrderSize > 0) {
		return invalid("baseOrderSize must be > 0, got %v", c.BaseOrderSize)
	}
	if !(c.MaxSpreadBps > c.MinSpreadBps) {
		return invalid("maxSpreadBps (%v) must be > minSpreadBps (%v)", c.MaxSpreadBps, c.MinSpreadBps)
	}
	if c.VolatilityWindow <= 0 {
		return invalid("volatilityWindow must be > 0, got %d", c.VolatilityWindow)
	}
	if !(c.PriceSensitivity > 0) {
		return invalid("priceSensitivity must be > 0, got %v", c.PriceSensitivity)
	}
	if !(c.TimeHorizon > 0) {
		return invalid("timeHorizon must be > 0, got %v", c.TimeHorizon)
	}
	if !(c.MaxInventory > 0) {
		return invalid("maxInventory must be > 0, got %v", c.MaxInventory)
	}
	if !(c.MinSpreadBps >= 0) {
		return invalid("minSpreadBps must be >= 0, got %v", c.MinSpreadBps)
	}
	if !(c.OrderArrivalRate >= 0) {
		return invalid("orderArrivalRate must be >= 0, got %v", c.OrderArrivalRate)
	}
	if !(c.MaxPositionSize >= 0) {
		return invalid("maxPositionSize must be >= 0, got %v", c.MaxPositionSize)
	}
	if !(c.InventoryPenaltyFactor >= 0) {
		return invalid("inventoryPenaltyFactor must be >= 0, got %v", c.InventoryPenaltyFactor)
	}
	switch c.Model() {
	case ModelParkinson, ModelStandard, ModelGarmanKlass:
	case ModelEWMA:
		if !(c.EWMAAlpha > 0 && c.EWMAAlpha < 1) {
			return invalid("ewmaAlpha must be in (0,1), got %v", c.EWMAAlpha)
		}
	default:
		return invalid("unknown volatilityModel %q", c.VolatilityModel)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
