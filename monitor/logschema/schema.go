package logschema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

const (
	EventQuoteUpdate  = "quote_update"
	EventFill         = "fill"
	EventRisk         = "risk_event"
	EventConfigReload = "config_reload"
	EventBookSnapshot = "book_snapshot"
)

var schemas = map[string]Schema{
	EventQuoteUpdate: {
		Event:    EventQuoteUpdate,
		Required: []string{"symbol", "bid", "ask", "bidSize", "askSize", "spread", "reservation"},
	},
	EventFill: {
		Event:    EventFill,
		Required: []string{"symbol", "side", "qty", "inventory"},
	},
	EventRisk: {
		Event:    EventRisk,
		Required: []string{"symbol", "state"},
	},
	EventConfigReload: {
		Event:    EventConfigReload,
		Required: []string{"path"},
	},
	EventBookSnapshot: {
		Event:    EventBookSnapshot,
		Required: []string{"symbol", "bid", "ask"},
	},
}

// Known 返回所有事件名，便于外部生成文档。
func Known() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup 返回事件的 schema；未登记的事件返回 false。
func Lookup(event string) (Schema, bool) {
	s, ok := schemas[event]
	return s, ok
}

// Validate 检查日志字段是否包含 schema 中要求的 key。未登记的事件不校验。
func Validate(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing fields: %s", event, strings.Join(missing, ","))
	}
	return nil
}
