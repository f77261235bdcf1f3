// Package storage provides SQLite-backed persistence for orders, products,
// rules, A/B tests, and metrics snapshots.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/platewise/storepulse/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
//
// Rule blobs are read-modify-write records with last-write-wins semantics. The
// design assumes a single writer per store (the optimization loop); concurrent
// external writers can lose updates.
type Storage struct {
	db           *sql.DB
	maxSnapshots int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/storepulse/data.db.
func New(maxSnapshots int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "storepulse", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, maxSnapshots: maxSnapshots}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id         TEXT PRIMARY KEY,
			store_id   TEXT NOT NULL,
			total      REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			category   TEXT NOT NULL,
			quantity   INTEGER NOT NULL,
			price      REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_store_created ON orders(store_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
		`CREATE TABLE IF NOT EXISTS products (
			id         TEXT PRIMARY KEY,
			store_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			category   TEXT NOT NULL,
			variations TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS weather_products (
			store_id   TEXT NOT NULL,
			product_id TEXT NOT NULL,
			PRIMARY KEY (store_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS call_logs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			store_id   TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_call_logs_store_created ON call_logs(store_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS predictive_rules (
			store_id   TEXT PRIMARY KEY,
			rules      TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS optimization_rules (
			store_id   TEXT PRIMARY KEY,
			rules      TEXT NOT NULL DEFAULT '[]',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ab_tests (
			store_id   TEXT NOT NULL,
			id         TEXT NOT NULL,
			status     TEXT NOT NULL,
			payload    TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (store_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ab_tests_status ON ab_tests(store_id, status)`,
		`CREATE TABLE IF NOT EXISTS metrics_snapshots (
			id        TEXT PRIMARY KEY,
			store_id  TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			payload   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_store_ts ON metrics_snapshots(store_id, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddOrder inserts an order and its line items.
func (s *Storage) AddOrder(order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`INSERT INTO orders (id, store_id, total, created_at) VALUES (?,?,?,?)`,
		order.ID, order.StoreID, order.Total, order.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	for _, item := range order.Items {
		_, err = tx.Exec(`INSERT INTO order_items (order_id, product_id, category, quantity, price) VALUES (?,?,?,?,?)`,
			order.ID, item.ProductID, item.Category, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return tx.Commit()
}

// FindOrders returns all orders for a store created within [from, to),
// including line items, ordered by creation time.
func (s *Storage) FindOrders(storeID string, from, to time.Time) ([]models.Order, error) {
	rows, err := s.db.Query(`
		SELECT id, store_id, total, created_at FROM orders
		WHERE store_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`,
		storeID, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		var createdAtNano int64
		if err := rows.Scan(&o.ID, &o.StoreID, &o.Total, &createdAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.CreatedAt = time.Unix(0, createdAtNano)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.orderItems(orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Storage) orderItems(orderID string) ([]models.OrderItem, error) {
	rows, err := s.db.Query(`
		SELECT product_id, category, quantity, price FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ProductID, &it.Category, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddProduct inserts or replaces a product.
func (s *Storage) AddProduct(product *models.Product) error {
	variationsJSON, err := json.Marshal(product.Variations)
	if err != nil {
		return fmt.Errorf("failed to marshal variations: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO products (id, store_id, name, category, variations)
		VALUES (?,?,?,?,?)`,
		product.ID, product.StoreID, product.Name, product.Category, string(variationsJSON))
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// FindProduct returns a product by ID, or models.ErrNotFound.
func (s *Storage) FindProduct(productID string) (*models.Product, error) {
	row := s.db.QueryRow(`SELECT id, store_id, name, category, variations FROM products WHERE id = ?`, productID)

	var p models.Product
	var variationsJSON string
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Category, &variationsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if err := json.Unmarshal([]byte(variationsJSON), &p.Variations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variations: %w", err)
	}
	return &p, nil
}

// ListProducts returns all products of a store, ordered by name.
func (s *Storage) ListProducts(storeID string) ([]models.Product, error) {
	rows, err := s.db.Query(`SELECT id, store_id, name, category, variations FROM products WHERE store_id = ? ORDER BY name`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var variationsJSON string
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Category, &variationsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if err := json.Unmarshal([]byte(variationsJSON), &p.Variations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal variations: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SetWeatherProducts replaces the store's active weather-recommendation list.
func (s *Storage) SetWeatherProducts(storeID string, productIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM weather_products WHERE store_id = ?`, storeID); err != nil {
		return fmt.Errorf("failed to clear weather products: %w", err)
	}
	for _, id := range productIDs {
		if _, err := tx.Exec(`INSERT INTO weather_products (store_id, product_id) VALUES (?,?)`, storeID, id); err != nil {
			return fmt.Errorf("failed to insert weather product: %w", err)
		}
	}
	return tx.Commit()
}

// FindActiveWeatherProducts returns the set of product IDs with an active
// weather recommendation. Missing store rows yield an empty set.
func (s *Storage) FindActiveWeatherProducts(storeID string) (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT product_id FROM weather_products WHERE store_id = ?`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query weather products: %w", err)
	}
	defer rows.Close()

	active := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan weather product: %w", err)
		}
		active[id] = true
	}
	return active, rows.Err()
}

// AddCallLog records a phone call for a store.
func (s *Storage) AddCallLog(storeID string, at time.Time) error {
	if _, err := s.db.Exec(`INSERT INTO call_logs (store_id, created_at) VALUES (?,?)`,
		storeID, at.UnixNano()); err != nil {
		return fmt.Errorf("failed to insert call log: %w", err)
	}
	return nil
}

// CountCallLogs counts the store's calls since the given time.
func (s *Storage) CountCallLogs(storeID string, since time.Time) (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM call_logs WHERE store_id = ? AND created_at >= ?`,
		storeID, since.UnixNano())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count call logs: %w", err)
	}
	return count, nil
}

// GetPredictiveRules loads the store's predictive rule set. Missing rows yield
// an empty set.
func (s *Storage) GetPredictiveRules(storeID string) ([]models.PredictiveRule, error) {
	var rules []models.PredictiveRule
	if err := s.getRuleBlob(`predictive_rules`, storeID, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SavePredictiveRules upserts the store's predictive rule set as one blob.
// Last write wins.
func (s *Storage) SavePredictiveRules(storeID string, rules []models.PredictiveRule) error {
	return s.saveRuleBlob(`predictive_rules`, storeID, rules)
}

// GetOptimizationRules loads the store's optimization rule set. Missing rows
// yield an empty set.
func (s *Storage) GetOptimizationRules(storeID string) ([]models.OptimizationRule, error) {
	var rules []models.OptimizationRule
	if err := s.getRuleBlob(`optimization_rules`, storeID, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// SaveOptimizationRules upserts the store's optimization rule set as one blob.
// Last write wins.
func (s *Storage) SaveOptimizationRules(storeID string, rules []models.OptimizationRule) error {
	return s.saveRuleBlob(`optimization_rules`, storeID, rules)
}

func (s *Storage) getRuleBlob(table, storeID string, out interface{}) error {
	row := s.db.QueryRow(`SELECT rules FROM `+table+` WHERE store_id = ?`, storeID)
	var blob string
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	if err := json.Unmarshal([]byte(blob), out); err != nil {
		return fmt.Errorf("failed to unmarshal rules: %w", err)
	}
	return nil
}

func (s *Storage) saveRuleBlob(table, storeID string, rules interface{}) error {
	blob, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO `+table+` (store_id, rules, updated_at) VALUES (?,?,?)`,
		storeID, string(blob), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save rules: %w", err)
	}
	return nil
}

// SaveTest inserts or replaces an A/B test.
func (s *Storage) SaveTest(test *models.ABTest) error {
	payload, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("failed to marshal test: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO ab_tests (store_id, id, status, payload, updated_at)
		VALUES (?,?,?,?,?)`,
		test.StoreID, test.ID, string(test.Status), string(payload), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save test: %w", err)
	}
	return nil
}

// GetTest loads one A/B test, or models.ErrNotFound.
func (s *Storage) GetTest(storeID, testID string) (*models.ABTest, error) {
	row := s.db.QueryRow(`SELECT payload FROM ab_tests WHERE store_id = ? AND id = ?`, storeID, testID)
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("test %s: %w", testID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	var test models.ABTest
	if err := json.Unmarshal([]byte(payload), &test); err != nil {
		return nil, fmt.Errorf("failed to unmarshal test: %w", err)
	}
	return &test, nil
}

// ListActiveTests returns all running tests for a store.
func (s *Storage) ListActiveTests(storeID string) ([]*models.ABTest, error) {
	rows, err := s.db.Query(`SELECT payload FROM ab_tests WHERE store_id = ? AND status = ?`,
		storeID, string(models.StatusRunning))
	if err != nil {
		return nil, fmt.Errorf("failed to query tests: %w", err)
	}
	defer rows.Close()

	var tests []*models.ABTest
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan test: %w", err)
		}
		var test models.ABTest
		if err := json.Unmarshal([]byte(payload), &test); err != nil {
			return nil, fmt.Errorf("failed to unmarshal test: %w", err)
		}
		tests = append(tests, &test)
	}
	if tests == nil {
		tests = []*models.ABTest{}
	}
	return tests, rows.Err()
}

// AddSnapshot appends a metrics snapshot and trims the store's series to the
// configured retention cap.
func (s *Storage) AddSnapshot(snapshot *models.MetricsSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`INSERT INTO metrics_snapshots (id, store_id, timestamp, payload) VALUES (?,?,?,?)`,
		snapshot.ID, snapshot.StoreID, snapshot.Timestamp.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if _, err = tx.Exec(`
		DELETE FROM metrics_snapshots WHERE store_id = ? AND id NOT IN (
			SELECT id FROM metrics_snapshots WHERE store_id = ? ORDER BY timestamp DESC LIMIT ?
		)`, snapshot.StoreID, snapshot.StoreID, s.maxSnapshots); err != nil {
		return fmt.Errorf("failed to enforce snapshot cap: %w", err)
	}

	return tx.Commit()
}

// GetRecentSnapshots returns the n newest snapshots for a store, newest first.
func (s *Storage) GetRecentSnapshots(storeID string, n int) ([]models.MetricsSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT payload FROM metrics_snapshots WHERE store_id = ?
		ORDER BY timestamp DESC LIMIT ?`, storeID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.MetricsSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snap models.MetricsSnapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}
