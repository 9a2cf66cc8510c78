package market

import "time"

// Kline represents OHLC data.
type Kline struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// Bar is the OHLCV input of the quoting engine. Timestamp is unix nanoseconds.
type Bar struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp int64
}

// HighLow returns the range pair fed into the Parkinson window.
func (b Bar) HighLow() HighLow {
	return HighLow{High: b.High, Low: b.Low}
}

// OHLC returns the prices fed into the Garman–Klass window.
func (b Bar) OHLC() OHLC {
	return OHLC{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
}

// Bar converts the kline into an engine bar.
func (k Kline) Bar() Bar {
	return Bar{
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
		Timestamp: k.Ts.UnixNano(),
	}
}

// Trade is a normalized trade print; the aggregator folds trades into klines.
type Trade struct {
	Price float64
	Qty   float64
	Ts    time.Time
}
