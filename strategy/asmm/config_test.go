package asmm

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModelParkinson, cfg.Model())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero risk aversion", func(c *Config) { c.RiskAversion = 0 }, "riskAversion"},
		{"negative risk aversion", func(c *Config) { c.RiskAversion = -0.1 }, "riskAversion"},
		{"NaN risk aversion", func(c *Config) { c.RiskAversion = math.NaN() }, "riskAversion"},
		{"zero base size", func(c *Config) { c.BaseOrderSize = 0 }, "baseOrderSize"},
		{"max spread equals min", func(c *Config) { c.MaxSpreadBps = c.MinSpreadBps }, "maxSpreadBps"},
		{"max spread below min", func(c *Config) { c.MaxSpreadBps, c.MinSpreadBps = 1, 5 }, "maxSpreadBps"},
		{"zero window", func(c *Config) { c.VolatilityWindow = 0 }, "volatilityWindow"},
		{"zero kappa", func(c *Config) { c.PriceSensitivity = 0 }, "priceSensitivity"},
		{"zero horizon", func(c *Config) { c.TimeHorizon = 0 }, "timeHorizon"},
		{"zero max inventory", func(c *Config) { c.MaxInventory = 0 }, "maxInventory"},
		{"negative min spread", func(c *Config) { c.MinSpreadBps = -1 }, "minSpreadBps"},
		{"infinite max spread", func(c *Config) { c.MaxSpreadBps = math.Inf(1) }, "maxSpreadBps"},
		{"infinite risk aversion", func(c *Config) { c.RiskAversion = math.Inf(1) }, "riskAversion must be finite"},
		{"infinite horizon", func(c *Config) { c.TimeHorizon = math.Inf(1) }, "timeHorizon must be finite"},
		{"infinite kappa", func(c *Config) { c.PriceSensitivity = math.Inf(1) }, "priceSensitivity must be finite"},
		{"infinite base size", func(c *Config) { c.BaseOrderSize = math.Inf(1) }, "baseOrderSize must be finite"},
		{"infinite max inventory", func(c *Config) { c.MaxInventory = math.Inf(1) }, "maxInventory must be finite"},
		{"infinite penalty", func(c *Config) { c.InventoryPenaltyFactor = math.Inf(1) }, "inventoryPenaltyFactor must be finite"},
		{"infinite arrival rate", func(c *Config) { c.OrderArrivalRate = math.Inf(1) }, "orderArrivalRate must be finite"},
		{"negative infinite max position", func(c *Config) { c.MaxPositionSize = math.Inf(-1) }, "maxPositionSize must be finite"},
		{"NaN min spread", func(c *Config) { c.MinSpreadBps = math.NaN() }, "minSpreadBps must be finite"},
		{"NaN ewma alpha", func(c *Config) { c.EWMAAlpha = math.NaN() }, "ewmaAlpha must be finite"},
		{"negative arrival rate", func(c *Config) { c.OrderArrivalRate = -1 }, "orderArrivalRate"},
		{"negative penalty", func(c *Config) { c.InventoryPenaltyFactor = -1 }, "inventoryPenaltyFactor"},
		{"unknown model", func(c *Config) { c.VolatilityModel = "garch" }, "volatilityModel"},
		{"ewma alpha out of range", func(c *Config) { c.VolatilityModel = ModelEWMA; c.EWMAAlpha = 1 }, "ewmaAlpha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigModelResolution(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseParkinson = false
	assert.Equal(t, ModelStandard, cfg.Model())

	cfg.VolatilityModel = ModelEWMA
	assert.Equal(t, ModelEWMA, cfg.Model())
	assert.NoError(t, cfg.Validate())

	cfg.VolatilityModel = ModelGarmanKlass
	assert.Equal(t, ModelGarmanKlass, cfg.Model())
	assert.NoError(t, cfg.Validate())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VolatilityWindow = 0
	e, err := New(cfg, nil)
	assert.Nil(t, e)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"buy": Buy, "BUY": Buy, "bid": Buy, " Sell ": Sell, "ask": Sell} {
		got, err := ParseSide(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSide("hold")
	assert.Error(t, err)
}
