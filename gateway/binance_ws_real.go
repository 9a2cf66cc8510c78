package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"as-market-maker/infrastructure/monitor"
	"as-market-maker/market"
)

const BinanceSpotWSEndpoint = "wss://stream.binance.com:9443"

// Handler 接收解析后的行情。sim.Runner 直接满足该接口。
type Handler interface {
	OnBook(snap market.Snapshot) error
	OnBar(bar market.Bar)
}

// BinanceWS 订阅单个交易对的 bookTicker（或 depth20）与 K 线 combined stream。
type BinanceWS struct {
	Endpoint      string // 默认 BinanceSpotWSEndpoint
	Symbol        string
	KlineInterval string // 如 1m
	UseDepth      bool   // true 时用 depth20@100ms 维护本地盘口代替 bookTicker
	Dialer        *websocket.Dialer
	Log           *zap.Logger
	Monitor       *monitor.Monitor

	ReadTimeout time.Duration
	MaxBackoff  time.Duration
	book        *market.OrderBook
	now         func() time.Time
}

func NewBinanceWS(endpoint, symbol, interval string) *BinanceWS {
	if endpoint == "" {
		endpoint = BinanceSpotWSEndpoint
	}
	return &BinanceWS{
		Endpoint:      endpoint,
		Symbol:        symbol,
		KlineInterval: interval,
		Dialer:        websocket.DefaultDialer,
		ReadTimeout:   60 * time.Second,
		MaxBackoff:    30 * time.Second,
	}
}

// StreamURL 构建 combined stream 地址。
func (b *BinanceWS) StreamURL() (string, error) {
	if b.Symbol == "" {
		return "", errors.New("symbol required")
	}
	u, err := url.Parse(b.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	sym := strings.ToLower(b.Symbol)
	streams := []string{sym + "@bookTicker"}
	if b.UseDepth {
		streams[0] = sym + "@depth20@100ms"
	}
	if b.KlineInterval != "" {
		streams = append(streams, sym+"@kline_"+b.KlineInterval)
	}
	u.Path = "/stream"
	q := u.Query()
	q.Set("streams", strings.Join(streams, "/"))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run 连接并分发消息直到 ctx 结束；断线后指数退避重连。
func (b *BinanceWS) Run(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("handler required")
	}
	addr, err := b.StreamURL()
	if err != nil {
		return err
	}
	backoff := time.Second
	for {
		connected, err := b.runOnce(ctx, addr, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = time.Second
		}
		b.logger().Warn("binance ws disconnected", zap.Error(err), zap.Duration("retryIn", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if limit := b.maxBackoff(); backoff > limit {
			backoff = limit
		}
	}
}

func (b *BinanceWS) runOnce(ctx context.Context, addr string, h Handler) (bool, error) {
	dialer := b.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	if b.Monitor != nil {
		b.Monitor.RecordWSConnection()
		defer b.Monitor.RecordWSDisconnect()
	}
	b.logger().Info("binance ws connected", zap.String("url", addr))

	// ctx 结束时关闭连接以打断 ReadMessage
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	timeout := b.ReadTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		b.dispatch(message, h)
	}
}

func (b *BinanceWS) dispatch(raw []byte, h Handler) {
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	ts := now()
	ev, err := ParseCombined(raw, ts)
	if err != nil {
		b.logger().Debug("parse ws msg err", zap.Error(err))
		return
	}
	switch ev.Kind {
	case EventBook:
		b.onBook(h, ev.Book)
	case EventDepth:
		if b.book == nil {
			b.book = market.NewOrderBook()
		}
		b.book.Replace(ev.Bids, ev.Asks)
		b.onBook(h, b.book.Snapshot(ts.UnixNano()))
	case EventBar:
		h.OnBar(ev.Bar)
	}
}

func (b *BinanceWS) onBook(h Handler, snap market.Snapshot) {
	if err := h.OnBook(snap); err != nil {
		b.logger().Debug("book handler", zap.Error(err))
	}
}

func (b *BinanceWS) maxBackoff() time.Duration {
	if b.MaxBackoff <= 0 {
		return 30 * time.Second
	}
	return b.MaxBackoff
}

func (b *BinanceWS) logger() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}
