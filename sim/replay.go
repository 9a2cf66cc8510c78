package sim

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"as-market-maker/market"
)

// ReadSnapshots 解析回放 CSV：ts_ns,bid,ask[,bid_qty,ask_qty]。
// 首行若不是数字则视为表头跳过；空行和 # 开头的行忽略。
func ReadSnapshots(r io.Reader) ([]market.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var out []market.Snapshot
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read replay: %w", err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		snap, err := parseSnapshot(rec)
		if err != nil {
			return nil, fmt.Errorf("replay record %d: %w", line, err)
		}
		out = append(out, snap)
	}
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	return err != nil
}

func parseSnapshot(rec []string) (market.Snapshot, error) {
	if len(rec) != 3 && len(rec) != 5 {
		return market.Snapshot{}, fmt.Errorf("want 3 or 5 fields, got %d", len(rec))
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	if err != nil {
		return market.Snapshot{}, fmt.Errorf("ts: %w", err)
	}
	vals := make([]float64, len(rec)-1)
	for i, f := range rec[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return market.Snapshot{}, fmt.Errorf("field %d: %w", i+2, err)
		}
		vals[i] = v
	}
	snap := market.Snapshot{Timestamp: ts, BestBid: vals[0], BestAsk: vals[1]}
	if len(vals) == 4 {
		snap.BidVolume, snap.AskVolume = vals[2], vals[3]
	}
	return snap, nil
}
