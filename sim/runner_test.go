package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"as-market-maker/infrastructure/logger"
	"as-market-maker/infrastructure/monitor"
	"as-market-maker/market"
	"as-market-maker/order"
	"as-market-maker/strategy/asmm"
)

var btcConstraints = order.SymbolConstraints{
	TickSize:    0.01,
	StepSize:    0.00001,
	MinQty:      0.00001,
	MaxQty:      100,
	MinNotional: 5,
}

type stubGateway struct {
	placed    []order.Order
	canceled  []string
	errPlace  error
	errCancel error
}

func (s *stubGateway) Place(o order.Order) (string, error) {
	s.placed = append(s.placed, o)
	return o.ID, s.errPlace
}

func (s *stubGateway) Cancel(orderID string) error {
	s.canceled = append(s.canceled, orderID)
	return s.errCancel
}

func newTestRunner(t *testing.T, gw order.Gateway, mutate ...func(*RunnerConfig)) *Runner {
	t.Helper()
	cfg := RunnerConfig{
		Symbol:      "BTCUSDT",
		Strategy:    asmm.DefaultConfig(),
		Constraints: btcConstraints,
		Gateway:     gw,
		Monitor:     monitor.New(monitor.DefaultConfig()),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	r, err := BuildRunner(cfg)
	require.NoError(t, err)
	return r
}

func book(ts int64, bid, ask float64) market.Snapshot {
	return market.Snapshot{BestBid: bid, BestAsk: ask, BidVolume: 1, AskVolume: 1, Timestamp: ts}
}

func TestRunnerStoppedDoesNotRoute(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)

	err := r.OnBook(book(1, 50000, 50010))
	require.ErrorIs(t, err, ErrNotTrading)
	assert.Empty(t, gw.placed)

	stats := r.Stats()
	assert.Equal(t, uint64(1), stats.QuoteUpdates)
	assert.Equal(t, 50005.0, stats.MidPrice)
}

func TestRunnerOnBookPlacesRoundedOrders(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)
	r.Start()

	require.NoError(t, r.OnBook(book(1, 50000, 50010)))
	require.Len(t, gw.placed, 2)

	bid, ask := gw.placed[0], gw.placed[1]
	assert.Equal(t, "BUY", bid.Side)
	assert.Equal(t, "SELL", ask.Side)
	assert.Equal(t, 49999.99, bid.Price)
	assert.Equal(t, 50010.01, ask.Price)
	assert.Equal(t, 0.001, bid.Quantity)
	assert.NoError(t, btcConstraints.Validate(bid.Price, bid.Quantity))
	assert.NoError(t, btcConstraints.Validate(ask.Price, ask.Quantity))
}

func TestRunnerRequoteCancelsPrevious(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)
	r.Start()

	require.NoError(t, r.OnBook(book(1, 50000, 50010)))
	first := []string{gw.placed[0].ID, gw.placed[1].ID}
	require.NoError(t, r.OnBook(book(2, 50020, 50030)))

	assert.ElementsMatch(t, first, gw.canceled)
	assert.Len(t, gw.placed, 4)
	assert.Len(t, r.OrderMgr.Open(), 2)
}

func TestRunnerSkipsZeroSizeSides(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)
	r.Start()

	r.OnFill(asmm.Buy, 0.05, 50000) // |q| == maxInventory -> size 0
	require.NoError(t, r.OnBook(book(1, 50000, 50010)))
	assert.Empty(t, gw.placed)
}

func TestRunnerThrottlesRequotes(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw, func(c *RunnerConfig) {
		c.RequotePerSecond = 1
		c.RequoteBurst = 1
	})
	r.Start()

	const sec = int64(1_000_000_000)
	require.NoError(t, r.OnBook(book(10*sec, 50000, 50010)))
	require.NoError(t, r.OnBook(book(10*sec+1, 50001, 50011)))
	assert.Len(t, gw.placed, 2, "second quote inside the same second is throttled")

	require.NoError(t, r.OnBook(book(12*sec, 50002, 50012)))
	assert.Len(t, gw.placed, 4)
	assert.Equal(t, uint64(3), r.Stats().QuoteUpdates, "engine still sees every snapshot")
}

func TestRunnerFillWhileStopped(t *testing.T) {
	r := newTestRunner(t, &stubGateway{})
	r.OnFill(asmm.Buy, 0.01, 50000)
	r.OnFill(asmm.Sell, 0.004, 50010)
	assert.InDelta(t, 0.006, r.Stats().CurrentInventory, 1e-12)
}

func TestRunnerFillOrder(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)
	r.Start()
	require.NoError(t, r.OnBook(book(1, 50000, 50010)))

	open := r.OrderMgr.Open()
	require.Len(t, open, 2)
	var buy order.Order
	for _, o := range open {
		if o.Side == "BUY" {
			buy = o
		}
	}
	require.NoError(t, r.FillOrder(buy))
	assert.Equal(t, 0.001, r.Stats().CurrentInventory)

	st, ok := r.OrderMgr.Status(buy.ID)
	require.True(t, ok)
	assert.Equal(t, order.StatusFilled, st)

	// the filled order is not canceled on the next requote
	require.NoError(t, r.OnBook(book(2, 50000, 50010)))
	assert.NotContains(t, gw.canceled, buy.ID)

	assert.ErrorIs(t, r.FillOrder(order.Order{ID: "ghost", Side: "BUY", Quantity: 1}), order.ErrUnknownOrder)
	assert.Error(t, r.FillOrder(order.Order{ID: buy.ID, Side: "HOLD"}))
}

func TestRunnerStopCancelsResting(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)
	r.Start()
	require.NoError(t, r.OnBook(book(1, 50000, 50010)))

	require.NoError(t, r.Stop())
	assert.Len(t, gw.canceled, 2)
	assert.Empty(t, r.OrderMgr.Open())
	assert.False(t, r.Trading())
}

func TestRunnerPlaceErrorIsReported(t *testing.T) {
	boom := errors.New("venue down")
	gw := &stubGateway{errPlace: boom}
	r := newTestRunner(t, gw)
	r.Start()

	err := r.OnBook(book(1, 50000, 50010))
	require.ErrorIs(t, err, boom)
	assert.Empty(t, r.OrderMgr.Open())
}

func TestRunnerReload(t *testing.T) {
	r := newTestRunner(t, &stubGateway{})
	r.OnFill(asmm.Sell, 0.02, 50000)

	bad := asmm.DefaultConfig()
	bad.RiskAversion = 0
	require.ErrorIs(t, r.Reload(bad), asmm.ErrInvalidConfig)

	before := r.Engine()
	next := asmm.DefaultConfig()
	next.RiskAversion = 0.5
	require.NoError(t, r.Reload(next))

	assert.NotSame(t, before, r.Engine())
	assert.Equal(t, 0.5, r.Engine().Config().RiskAversion)
	assert.InDelta(t, -0.02, r.Stats().CurrentInventory, 1e-12, "position survives reload")
	assert.Zero(t, r.Stats().InventoryAdjustments, "carrying the position is not a fill")
}

func TestRunnerReloadDoesNotRepeatBreach(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRunner(t, &stubGateway{}, func(c *RunnerConfig) {
		c.Logger = logger.Wrap(zap.New(core))
	})
	r.OnFill(asmm.Buy, 0.06, 50000)
	require.Equal(t, uint64(1), r.Stats().InventoryBreaches)

	require.NoError(t, r.Reload(asmm.DefaultConfig()))

	stats := r.Stats()
	assert.InDelta(t, 0.06, stats.CurrentInventory, 1e-12)
	assert.Zero(t, stats.InventoryAdjustments)
	assert.Zero(t, stats.InventoryBreaches)
	assert.True(t, r.Engine().InventoryExceeded())
	assert.Equal(t, 1, logs.FilterMessage("inventory exceeds limit").Len())
}

func TestRunnerLogsInventoryBreach(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRunner(t, &stubGateway{}, func(c *RunnerConfig) {
		c.Logger = logger.Wrap(zap.New(core))
	})

	r.OnFill(asmm.Buy, 0.06, 50000)

	assert.Equal(t, 1, logs.FilterMessage("inventory exceeds limit").Len())
	risk := logs.FilterMessage("risk_event").All()
	require.Len(t, risk, 1)
	assert.Equal(t, "inventory_breach", risk[0].ContextMap()["state"])
	assert.Equal(t, 1, logs.FilterMessage("fill").Len())
}

func TestRunnerNotInitialized(t *testing.T) {
	r := &Runner{}
	require.Error(t, r.OnBook(book(1, 1, 2)))
	assert.NotPanics(t, func() {
		assert.Equal(t, asmm.Stats{}, r.Stats())
	})
}

func TestRunnerSurvivesNonFiniteBar(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)
	r.Start()

	r.OnBar(market.Bar{Open: 99.5, High: 100, Low: 99, Close: 99.5})
	r.OnBar(market.Bar{Open: 99.5, High: math.Inf(1), Low: 99, Close: 99.5})

	require.NotPanics(t, func() {
		require.NoError(t, r.OnBook(book(1, 50000, 50010)))
	})
	require.Len(t, gw.placed, 2)
	for _, o := range gw.placed {
		assert.False(t, math.IsNaN(o.Price) || math.IsInf(o.Price, 0), "price %v", o.Price)
	}
	assert.Equal(t, 49999.99, gw.placed[0].Price)
	assert.Equal(t, 50010.01, gw.placed[1].Price)
}

func TestRequoteRejectsNonFiniteQuote(t *testing.T) {
	gw := &stubGateway{}
	r := newTestRunner(t, gw)
	r.Start()

	q := asmm.QuoteUpdate{BidPrice: math.NaN(), AskPrice: 50010, BidSize: 0.001, AskSize: 0.001}
	require.NotPanics(t, func() {
		assert.Error(t, r.requote(q))
	})
	assert.Empty(t, gw.placed)
}

func TestRunnerLogsBookSnapshot(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newTestRunner(t, &stubGateway{}, func(c *RunnerConfig) {
		c.Logger = logger.Wrap(zap.New(core))
	})

	_ = r.OnBook(book(1, 50000, 50010))

	entries := logs.FilterMessage("book_snapshot").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "BTCUSDT", ctx["symbol"])
	assert.Equal(t, 50000.0, ctx["bid"])
	assert.Equal(t, "runner", ctx["component"])
}
