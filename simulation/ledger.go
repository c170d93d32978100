// Package simulation implements the paper-trading ledger: a virtual cash
// balance and positions traded against the live price snapshot, with
// weighted-average cost accounting and SQLite-backed persistence.
package simulation

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gum798/CoinCompass/dataprovider"
	"github.com/gum798/CoinCompass/utilities"
)

// quantityEpsilon treats float residue below this as a fully closed position.
const quantityEpsilon = 1e-12

var (
	ErrInsufficientFunds = errors.New("simulation: insufficient funds")
	ErrNoPosition        = errors.New("simulation: no position for coin")
	ErrPriceUnavailable  = errors.New("simulation: no current price for coin")
	ErrInvalidAmount     = errors.New("simulation: amount must be positive")
	ErrInvalidPercentage = errors.New("simulation: percentage must be in (0,100]")
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order statuses. Orders execute immediately against the snapshot price, so
// only terminal states exist.
const (
	StatusExecuted = "EXECUTED"
	StatusFailed   = "FAILED"
)

// Order is an immutable record of one executed (or rejected) instruction.
type Order struct {
	ID        string    `json:"id"`
	CoinID    string    `json:"coin_id"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Total     float64   `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Position is the ledger's current holding of one coin.
type Position struct {
	CoinID        string  `json:"coin_id"`
	Quantity      float64 `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	TotalInvested float64 `json:"total_invested"`
	CurrentPrice  float64 `json:"current_price"`
}

// CurrentValue is the position's value at its last known price.
func (p Position) CurrentValue() float64 { return p.Quantity * p.CurrentPrice }

// ProfitLoss is the unrealized gain against the invested amount.
func (p Position) ProfitLoss() float64 { return p.CurrentValue() - p.TotalInvested }

// ProfitLossPercent is ProfitLoss relative to the invested amount.
func (p Position) ProfitLossPercent() float64 {
	if p.TotalInvested == 0 {
		return 0
	}
	return p.ProfitLoss() / p.TotalInvested * 100
}

// QuoteFunc returns the current price for a coin, or false when the snapshot
// has no price for it.
type QuoteFunc func(coinID string) (float64, bool)

// TradeNotifier receives executed orders for external delivery (Discord).
type TradeNotifier interface {
	NotifyOrderExecuted(order Order, cashBalance float64) error
}

// Store persists ledger state across restarts. All methods must be safe to
// call from a single goroutine at a time (the ledger serializes access).
type Store interface {
	SaveCashBalance(balance float64) error
	LoadCashBalance() (float64, bool, error)
	SavePosition(pos dataprovider.LedgerPosition) error
	DeletePosition(coinID string) error
	LoadPositions() ([]dataprovider.LedgerPosition, error)
	SaveOrder(o dataprovider.LedgerOrder) error
	LoadOrders() ([]dataprovider.LedgerOrder, error)
	ResetLedger(startingCash float64) error
}

// Ledger is the paper-trading ledger. A single mutex guards every mutation;
// the web handlers and the monitor goroutine share one instance.
type Ledger struct {
	mu           sync.Mutex
	cash         float64
	startingCash float64
	feeRate      float64
	positions    map[string]*Position
	orders       []Order
	quote        QuoteFunc
	store        Store // nil means memory-only (tests)
	notifier     TradeNotifier
	logger       *utilities.Logger
}

// NewLedger creates a ledger with the configured starting cash. When a store
// is supplied, previously persisted state is restored from it.
func NewLedger(cfg utilities.SimulationConfig, quote QuoteFunc, store Store, logger *utilities.Logger) (*Ledger, error) {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	startingCash := cfg.StartingCash
	if startingCash <= 0 {
		startingCash = 100000
	}

	l := &Ledger{
		cash:         startingCash,
		startingCash: startingCash,
		feeRate:      cfg.FeeRate,
		positions:    make(map[string]*Position),
		quote:        quote,
		store:        store,
		logger:       logger,
	}

	if store != nil {
		if err := l.restore(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Ledger) restore() error {
	if cash, ok, err := l.store.LoadCashBalance(); err != nil {
		return err
	} else if ok {
		l.cash = cash
	}
	positions, err := l.store.LoadPositions()
	if err != nil {
		return err
	}
	for _, p := range positions {
		l.positions[p.CoinID] = &Position{
			CoinID:        p.CoinID,
			Quantity:      p.Quantity,
			AveragePrice:  p.AveragePrice,
			TotalInvested: p.TotalInvested,
		}
	}
	orders, err := l.store.LoadOrders()
	if err != nil {
		return err
	}
	for _, o := range orders {
		l.orders = append(l.orders, Order{
			ID:        o.ID,
			CoinID:    o.CoinID,
			Side:      Side(o.Side),
			Quantity:  o.Quantity,
			Price:     o.Price,
			Total:     o.Total,
			Status:    o.Status,
			CreatedAt: o.CreatedAt,
		})
	}
	if len(positions) > 0 || len(orders) > 0 {
		l.logger.LogInfo("Ledger: restored %d positions and %d orders, cash $%.2f", len(positions), len(orders), l.cash)
	}
	return nil
}

// Buy spends usdAmount of cash on the coin at the current snapshot price.
// The order is rejected, with no state change, when the amount is invalid,
// no price is available, or cash (including the fee) is insufficient.
func (l *Ledger) Buy(coinID string, usdAmount float64) (Order, error) {
	if usdAmount <= 0 {
		return Order{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price, ok := l.quote(coinID)
	if !ok || price <= 0 {
		return Order{}, ErrPriceUnavailable
	}

	fee := usdAmount * l.feeRate
	totalCost := usdAmount + fee
	if totalCost > l.cash {
		return Order{}, ErrInsufficientFunds
	}

	quantity := usdAmount / price

	pos, exists := l.positions[coinID]
	if exists {
		// Weighted-average cost merge.
		totalInvested := pos.TotalInvested + usdAmount
		totalQuantity := pos.Quantity + quantity
		pos.Quantity = totalQuantity
		pos.TotalInvested = totalInvested
		pos.AveragePrice = totalInvested / totalQuantity
		pos.CurrentPrice = price
	} else {
		pos = &Position{
			CoinID:        coinID,
			Quantity:      quantity,
			AveragePrice:  price,
			TotalInvested: usdAmount,
			CurrentPrice:  price,
		}
		l.positions[coinID] = pos
	}

	l.cash -= totalCost

	order := l.appendOrder(coinID, SideBuy, quantity, price, totalCost)
	l.persistAfterTrade(pos, order)
	l.notify(order)
	l.logger.LogInfo("Ledger: BUY %s qty=%.8f @ $%.2f (spent $%.2f)", coinID, quantity, price, totalCost)
	return order, nil
}

// Sell disposes of a percentage in (0,100] of the coin's position at the
// current snapshot price, crediting the proceeds net of fees.
func (l *Ledger) Sell(coinID string, percentage float64) (Order, error) {
	if percentage <= 0 || percentage > 100 {
		return Order{}, ErrInvalidPercentage
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, exists := l.positions[coinID]
	if !exists {
		return Order{}, ErrNoPosition
	}

	price, ok := l.quote(coinID)
	if !ok || price <= 0 {
		return Order{}, ErrPriceUnavailable
	}

	quantity := pos.Quantity * percentage / 100
	gross := quantity * price
	proceeds := gross - gross*l.feeRate

	sellRatio := quantity / pos.Quantity
	pos.TotalInvested -= pos.TotalInvested * sellRatio
	pos.Quantity -= quantity
	pos.CurrentPrice = price

	l.cash += proceeds

	removed := pos.Quantity <= quantityEpsilon
	if removed {
		delete(l.positions, coinID)
	}

	order := l.appendOrder(coinID, SideSell, quantity, price, proceeds)
	if l.store != nil {
		if removed {
			if err := l.store.DeletePosition(coinID); err != nil {
				l.logger.LogError("Ledger: failed to delete persisted position %s: %v", coinID, err)
			}
		} else {
			l.persistPosition(pos)
		}
		l.persistCashAndOrder(order)
	}
	l.notify(order)
	l.logger.LogInfo("Ledger: SELL %s qty=%.8f @ $%.2f (credited $%.2f)", coinID, quantity, price, proceeds)
	return order, nil
}

// Reset restores the starting cash and clears positions and order history.
// Calling it repeatedly is harmless.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cash = l.startingCash
	l.positions = make(map[string]*Position)
	l.orders = nil

	if l.store != nil {
		if err := l.store.ResetLedger(l.startingCash); err != nil {
			return err
		}
	}
	l.logger.LogInfo("Ledger: reset to starting cash $%.2f", l.startingCash)
	return nil
}

// SetNotifier attaches an external trade notifier. Delivery happens off the
// ledger's lock and failures are logged, never surfaced to the trade caller.
func (l *Ledger) SetNotifier(n TradeNotifier) {
	l.mu.Lock()
	l.notifier = n
	l.mu.Unlock()
}

// notify dispatches an executed order to the notifier. Caller holds the lock.
func (l *Ledger) notify(order Order) {
	if l.notifier == nil {
		return
	}
	n, cash := l.notifier, l.cash
	go func() {
		if err := n.NotifyOrderExecuted(order, cash); err != nil {
			l.logger.LogError("Ledger: trade notification failed: %v", err)
		}
	}()
}

// appendOrder creates and records an executed order. Caller holds the lock.
func (l *Ledger) appendOrder(coinID string, side Side, quantity, price, total float64) Order {
	order := Order{
		ID:        uuid.NewString(),
		CoinID:    coinID,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Total:     total,
		Status:    StatusExecuted,
		CreatedAt: time.Now(),
	}
	l.orders = append(l.orders, order)
	return order
}

func (l *Ledger) persistAfterTrade(pos *Position, order Order) {
	if l.store == nil {
		return
	}
	l.persistPosition(pos)
	l.persistCashAndOrder(order)
}

func (l *Ledger) persistPosition(pos *Position) {
	err := l.store.SavePosition(dataprovider.LedgerPosition{
		CoinID:        pos.CoinID,
		Quantity:      pos.Quantity,
		AveragePrice:  pos.AveragePrice,
		TotalInvested: pos.TotalInvested,
	})
	if err != nil {
		l.logger.LogError("Ledger: failed to persist position %s: %v", pos.CoinID, err)
	}
}

func (l *Ledger) persistCashAndOrder(order Order) {
	if err := l.store.SaveCashBalance(l.cash); err != nil {
		l.logger.LogError("Ledger: failed to persist cash balance: %v", err)
	}
	err := l.store.SaveOrder(dataprovider.LedgerOrder{
		ID:        order.ID,
		CoinID:    order.CoinID,
		Side:      string(order.Side),
		Quantity:  order.Quantity,
		Price:     order.Price,
		Total:     order.Total,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
	})
	if err != nil {
		l.logger.LogError("Ledger: failed to persist order %s: %v", order.ID, err)
	}
}

// CashBalance returns the current cash balance.
func (l *Ledger) CashBalance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// StartingCash returns the configured initial balance.
func (l *Ledger) StartingCash() float64 { return l.startingCash }

// Positions returns a copy of all open positions with current prices applied,
// sorted by coin id for stable output.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.positions))
	for _, pos := range l.positions {
		p := *pos
		if price, ok := l.quote(p.CoinID); ok {
			p.CurrentPrice = price
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoinID < out[j].CoinID })
	return out
}

// Orders returns up to limit most recent orders, newest first. limit <= 0
// returns the full history.
func (l *Ledger) Orders(limit int) []Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.orders)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Order, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.orders[i])
	}
	return out
}

// Valuation summarizes the portfolio at current snapshot prices.
type Valuation struct {
	CashBalance       float64 `json:"cash_balance"`
	TotalInvested     float64 `json:"total_invested"`
	PositionsValue    float64 `json:"positions_value"`
	TotalValue        float64 `json:"total_value"`
	ProfitLoss        float64 `json:"profit_loss"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
}

// Valuate computes the total portfolio value and P&L against starting cash.
func (l *Ledger) Valuate() Valuation {
	l.mu.Lock()
	defer l.mu.Unlock()

	positionsValue := 0.0
	totalInvested := 0.0
	for _, pos := range l.positions {
		price := pos.CurrentPrice
		if p, ok := l.quote(pos.CoinID); ok {
			price = p
		}
		positionsValue += pos.Quantity * price
		totalInvested += pos.TotalInvested
	}

	total := l.cash + positionsValue
	pl := total - l.startingCash
	return Valuation{
		CashBalance:       l.cash,
		TotalInvested:     totalInvested,
		PositionsValue:    positionsValue,
		TotalValue:        total,
		ProfitLoss:        pl,
		ProfitLossPercent: pl / l.startingCash * 100,
	}
}
