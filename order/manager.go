package order

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Gateway 提供基础下单/撤单抽象。
type Gateway interface {
	Place(o Order) (string, error)
	Cancel(orderID string) error
}

// Manager 维护订单状态并通过 Gateway 下发。
type Manager struct {
	gw          Gateway
	mu          sync.RWMutex
	orders      map[string]*Order
	constraints map[string]SymbolConstraints
	seq         atomic.Uint64
}

func NewManager(gw Gateway) *Manager {
	return &Manager{
		gw:     gw,
		orders: make(map[string]*Order),
	}
}

// Gateway 返回下单通道。
func (m *Manager) Gateway() Gateway { return m.gw }

var ErrUnknownOrder = errors.New("unknown order")

// Submit 同步调用 Gateway 下单并登记状态。
func (m *Manager) Submit(o Order) (*Order, error) {
	if o.Type == "" {
		o.Type = "LIMIT"
	}
	if err := m.validateConstraint(o); err != nil {
		return nil, err
	}
	if o.ID == "" {
		o.ID = m.generateID(o.ClientID)
	}
	o.Status = StatusNew
	o.CreatedAt = time.Now().UTC()
	stored := o
	m.mu.Lock()
	m.orders[o.ID] = &stored
	m.mu.Unlock()

	if m.gw != nil {
		if _, err := m.gw.Place(o); err != nil {
			m.updateStatus(o.ID, StatusRejected, err)
			return nil, fmt.Errorf("place %s %s: %w", o.Side, o.Symbol, err)
		}
		m.updateStatus(o.ID, StatusAck, nil)
		o.Status = StatusAck
	}
	return &o, nil
}

// Update 收到回报后更新状态。
func (m *Manager) Update(id string, st Status) error {
	return m.updateStatus(id, st, nil)
}

// Cancel 调用 Gateway 撤单并标记状态。已终结的订单直接返回。
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	o, ok := m.orders[id]
	var st Status
	if ok {
		st = o.Status
	}
	m.mu.RUnlock()
	if !ok {
		return ErrUnknownOrder
	}
	if st.Terminal() {
		return nil
	}
	if m.gw != nil {
		if err := m.gw.Cancel(id); err != nil {
			return fmt.Errorf("cancel %s: %w", id, err)
		}
	}
	return m.updateStatus(id, StatusCanceled, nil)
}

// Status 返回订单当前状态，如不存在则第二个返回值为 false。
func (m *Manager) Status(id string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return "", false
	}
	return o.Status, true
}

// Open 返回未终结订单的副本。
func (m *Manager) Open() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// Prune 删除已终结的订单，返回删除数量。重报价循环里定期调用，避免 map 无限增长。
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, o := range m.orders {
		if o.Status.Terminal() {
			delete(m.orders, id)
			n++
		}
	}
	return n
}

func (m *Manager) updateStatus(id string, st Status, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrUnknownOrder
	}
	o.Status = st
	if err != nil {
		o.LastError = err.Error()
	}
	return nil
}

// generateID 生成进程内唯一 ID：前缀 + 时间 + 序号。
func (m *Manager) generateID(prefix string) string {
	if prefix == "" {
		prefix = "ord"
	}
	return fmt.Sprintf("%s-%s-%d", prefix, time.Now().UTC().Format("20060102150405"), m.seq.Add(1))
}

// SetConstraints 设置各交易对的精度/名义限制。
func (m *Manager) SetConstraints(c map[string]SymbolConstraints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = make(map[string]SymbolConstraints, len(c))
	for sym, sc := range c {
		m.constraints[sym] = sc
	}
}

// Constraints 返回交易对的限制。
func (m *Manager) Constraints(symbol string) (SymbolConstraints, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.constraints[symbol]
	return c, ok
}

func (m *Manager) validateConstraint(o Order) error {
	m.mu.RLock()
	c, ok := m.constraints[o.Symbol]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if o.Type == "MARKET" || o.Type == "market" {
		return nil
	}
	return c.Validate(o.Price, o.Quantity)
}
