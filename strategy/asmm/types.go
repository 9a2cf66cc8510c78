package asmm

import (
	"fmt"
	"strings"
)

// Side is the direction of a fill.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide accepts BUY/SELL in any case, plus the bid/ask aliases.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "BID":
		return Buy, nil
	case "SELL", "ASK":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// QuoteUpdate is the two-sided quote produced on every order-book update.
type QuoteUpdate struct {
	BidPrice         float64 `json:"bidPrice"`
	AskPrice         float64 `json:"askPrice"`
	BidSize          float64 `json:"bidSize"`
	AskSize          float64 `json:"askSize"`
	Spread           float64 `json:"spread"`
	ReservationPrice float64 `json:"reservationPrice"`
	// Timestamp of the snapshot that produced the quote, unix nanoseconds.
	Timestamp int64 `json:"timestamp"`
}

// Stats is a read-only projection of the engine state.
type Stats struct {
	QuoteUpdates         uint64  `json:"quoteUpdates"`
	OrderbookUpdates     uint64  `json:"orderbookUpdates"`
	InventoryAdjustments uint64  `json:"inventoryAdjustments"`
	InventoryBreaches    uint64  `json:"inventoryBreaches"`
	CurrentInventory     float64 `json:"currentInventory"`
	CurrentVolatility    float64 `json:"currentVolatility"`
	MidPrice             float64 `json:"midPrice"`
	LastUpdate           int64   `json:"lastUpdate"`
}
