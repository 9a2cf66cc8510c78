package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"as-market-maker/market"
)

// EventKind 标识 combined stream 消息类型。
type EventKind int

const (
	EventNone  EventKind = iota // 未收盘的 K 线等可忽略的消息
	EventBook                   // bookTicker -> Snapshot
	EventDepth                  // depth 快照 -> Levels
	EventBar                    // 已收盘 K 线 -> Bar
)

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTicker 是 <symbol>@bookTicker 的最优档推送。
type BookTicker struct {
	UpdateID int64       `json:"u"`
	Symbol   string      `json:"s"`
	BidPrice json.Number `json:"b"`
	BidQty   json.Number `json:"B"`
	AskPrice json.Number `json:"a"`
	AskQty   json.Number `json:"A"`
}

// DepthUpdate 提取 depth20@100ms 部分深度消息的核心字段。
type DepthUpdate struct {
	Symbol string           `json:"s"`
	Bids   [][2]json.Number `json:"bids"`
	Asks   [][2]json.Number `json:"asks"`
}

// KlineEvent 是 <symbol>@kline_<interval> 推送。
type KlineEvent struct {
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		Start    int64       `json:"t"`
		Close    int64       `json:"T"`
		Interval string      `json:"i"`
		Open     json.Number `json:"o"`
		High     json.Number `json:"h"`
		Low      json.Number `json:"l"`
		ClosePx  json.Number `json:"c"`
		Volume   json.Number `json:"v"`
		Closed   bool        `json:"x"`
	} `json:"k"`
}

// Event 是解析后的行情事件。
type Event struct {
	Kind   EventKind
	Symbol string
	Book   market.Snapshot
	Bids   map[float64]float64
	Asks   map[float64]float64
	Bar    market.Bar
}

// ParseCombined 解析 combined stream 消息。bookTicker 没有事件时间，使用 now。
func ParseCombined(raw []byte, now time.Time) (Event, error) {
	var msg CombinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("decode combined: %w", err)
	}
	name := msg.Stream
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case name == "bookTicker":
		return parseBookTicker(msg.Data, now)
	case strings.HasPrefix(name, "depth"):
		return parseDepth(msg.Data, msg.Stream)
	case strings.HasPrefix(name, "kline_"):
		return parseKline(msg.Data)
	}
	return Event{}, fmt.Errorf("unsupported stream %q", msg.Stream)
}

func parseBookTicker(data json.RawMessage, now time.Time) (Event, error) {
	var bt BookTicker
	if err := json.Unmarshal(data, &bt); err != nil {
		return Event{}, fmt.Errorf("decode bookTicker: %w", err)
	}
	nums, err := floats(bt.BidPrice, bt.AskPrice, bt.BidQty, bt.AskQty)
	if err != nil {
		return Event{}, fmt.Errorf("bookTicker: %w", err)
	}
	return Event{
		Kind:   EventBook,
		Symbol: bt.Symbol,
		Book: market.Snapshot{
			BestBid:   nums[0],
			BestAsk:   nums[1],
			BidVolume: nums[2],
			AskVolume: nums[3],
			Timestamp: now.UnixNano(),
		},
	}, nil
}

func parseDepth(data json.RawMessage, stream string) (Event, error) {
	var depth DepthUpdate
	if err := json.Unmarshal(data, &depth); err != nil {
		return Event{}, fmt.Errorf("decode depth: %w", err)
	}
	bids, err := levels(depth.Bids)
	if err != nil {
		return Event{}, fmt.Errorf("depth bids: %w", err)
	}
	asks, err := levels(depth.Asks)
	if err != nil {
		return Event{}, fmt.Errorf("depth asks: %w", err)
	}
	symbol := depth.Symbol
	if symbol == "" {
		// 部分深度流的 payload 不带 symbol
		symbol = strings.ToUpper(strings.SplitN(stream, "@", 2)[0])
	}
	return Event{Kind: EventDepth, Symbol: symbol, Bids: bids, Asks: asks}, nil
}

func parseKline(data json.RawMessage) (Event, error) {
	var ev KlineEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode kline: %w", err)
	}
	if !ev.Kline.Closed {
		return Event{Kind: EventNone, Symbol: ev.Symbol}, nil
	}
	k := ev.Kline
	nums, err := floats(k.Open, k.High, k.Low, k.ClosePx, k.Volume)
	if err != nil {
		return Event{}, fmt.Errorf("kline: %w", err)
	}
	return Event{
		Kind:   EventBar,
		Symbol: ev.Symbol,
		Bar: market.Bar{
			Open:      nums[0],
			High:      nums[1],
			Low:       nums[2],
			Close:     nums[3],
			Volume:    nums[4],
			Timestamp: time.UnixMilli(k.Close).UnixNano(),
		},
	}, nil
}

func floats(ns ...json.Number) ([]float64, error) {
	out := make([]float64, len(ns))
	for i, n := range ns {
		v, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func levels(raw [][2]json.Number) (map[float64]float64, error) {
	out := make(map[float64]float64, len(raw))
	for _, lv := range raw {
		px, err := lv[0].Float64()
		if err != nil {
			return nil, err
		}
		qty, err := lv[1].Float64()
		if err != nil {
			return nil, err
		}
		out[px] = qty
	}
	return out, nil
}
