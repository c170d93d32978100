// File: dataprovider/db.go
package dataprovider

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gum798/CoinCompass/utilities"
)

// SQLiteCache persists per-coin price history (feeding the indicator series)
// and the paper-trading ledger across process restarts.
type SQLiteCache struct {
	db *sql.DB
}

func NewSQLiteCache(cfg utilities.DatabaseConfig) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		coin_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		price REAL NOT NULL,
		UNIQUE(coin_id, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_coin_timestamp ON price_history (coin_id, timestamp);

	CREATE TABLE IF NOT EXISTS portfolio (
		coin_id TEXT PRIMARY KEY,
		quantity REAL NOT NULL,
		average_price REAL NOT NULL,
		total_invested REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS portfolio_meta (
		key TEXT PRIMARY KEY,
		value REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		coin_id TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		total REAL NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_created ON orders (created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &SQLiteCache{db: db}, nil
}

// --- Price History ---

func (s *SQLiteCache) SavePricePoint(coinID string, p PricePoint) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO price_history (coin_id, timestamp, price) VALUES (?, ?, ?)`,
		coinID, p.Timestamp, p.Price)
	return err
}

func (s *SQLiteCache) SavePricePoints(coinID string, points []PricePoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO price_history (coin_id, timestamp, price) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, p := range points {
		if _, err := stmt.Exec(coinID, p.Timestamp, p.Price); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetPriceHistory returns the most recent `limit` points for a coin, oldest first.
func (s *SQLiteCache) GetPriceHistory(coinID string, limit int) ([]PricePoint, error) {
	rows, err := s.db.Query(`SELECT timestamp, price FROM price_history WHERE coin_id=? ORDER BY timestamp DESC LIMIT ?`,
		coinID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Timestamp, &p.Price); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	// reverse into ascending order
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func (s *SQLiteCache) CleanupOldPrices(olderThan time.Time) error {
	_, err := s.db.Exec(`DELETE FROM price_history WHERE timestamp < ?`, olderThan.Unix())
	return err
}

// --- Ledger Persistence ---

// LedgerPosition mirrors simulation.Position for storage without importing it.
type LedgerPosition struct {
	CoinID        string
	Quantity      float64
	AveragePrice  float64
	TotalInvested float64
}

// LedgerOrder mirrors simulation.Order for storage without importing it.
type LedgerOrder struct {
	ID        string
	CoinID    string
	Side      string
	Quantity  float64
	Price     float64
	Total     float64
	Status    string
	CreatedAt time.Time
}

func (s *SQLiteCache) SaveCashBalance(balance float64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO portfolio_meta (key, value) VALUES ('cash_balance', ?)`, balance)
	return err
}

func (s *SQLiteCache) LoadCashBalance() (float64, bool, error) {
	var balance float64
	err := s.db.QueryRow(`SELECT value FROM portfolio_meta WHERE key='cash_balance'`).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

func (s *SQLiteCache) SavePosition(pos LedgerPosition) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO portfolio (coin_id, quantity, average_price, total_invested) VALUES (?, ?, ?, ?)`,
		pos.CoinID, pos.Quantity, pos.AveragePrice, pos.TotalInvested)
	return err
}

func (s *SQLiteCache) DeletePosition(coinID string) error {
	_, err := s.db.Exec(`DELETE FROM portfolio WHERE coin_id = ?`, coinID)
	return err
}

func (s *SQLiteCache) LoadPositions() ([]LedgerPosition, error) {
	rows, err := s.db.Query(`SELECT coin_id, quantity, average_price, total_invested FROM portfolio`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}
	defer rows.Close()
	var positions []LedgerPosition
	for rows.Next() {
		var pos LedgerPosition
		if err := rows.Scan(&pos.CoinID, &pos.Quantity, &pos.AveragePrice, &pos.TotalInvested); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (s *SQLiteCache) SaveOrder(o LedgerOrder) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO orders (id, coin_id, side, quantity, price, total, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CoinID, o.Side, o.Quantity, o.Price, o.Total, o.Status, o.CreatedAt.Unix())
	return err
}

func (s *SQLiteCache) LoadOrders() ([]LedgerOrder, error) {
	rows, err := s.db.Query(`SELECT id, coin_id, side, quantity, price, total, status, created_at FROM orders ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()
	var orders []LedgerOrder
	for rows.Next() {
		var o LedgerOrder
		var ts int64
		if err := rows.Scan(&o.ID, &o.CoinID, &o.Side, &o.Quantity, &o.Price, &o.Total, &o.Status, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		o.CreatedAt = time.Unix(ts, 0)
		orders = append(orders, o)
	}
	return orders, nil
}

// ResetLedger clears positions and orders and stores the fresh cash balance.
func (s *SQLiteCache) ResetLedger(startingCash float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM portfolio`, `DELETE FROM orders`} {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO portfolio_meta (key, value) VALUES ('cash_balance', ?)`, startingCash); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteCache) Close() error {
	return s.db.Close()
}
