package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"restaurant-service/models"
)

// OrderRepository is the durable side of the order store. The in-memory
// store stays authoritative for lifecycle rules; every successful mutation
// is written through here.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// SaveOrder inserts an order and its items in one transaction.
func (r *OrderRepository) SaveOrder(ctx context.Context, o *models.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, customer_id, table_id, status, total_amount, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerID, o.TableID, o.Status, o.TotalAmount, o.CreatedAt, o.CompletedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price)
			 VALUES (?, ?, ?, ?, ?)`,
			o.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateStatus persists a status change already applied by the store.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status models.Status, completedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, completed_at = ? WHERE id = ?`,
		status, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteOrder removes an order and (via cascade) its items.
func (r *OrderRepository) DeleteOrder(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// LoadOpenOrders returns every non-terminal order with its items, used to
// seed the in-memory store at startup.
func (r *OrderRepository) LoadOpenOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.customer_id, o.table_id, o.status, o.total_amount, o.created_at, o.completed_at,
		       oi.menu_item_id, oi.name, oi.quantity, oi.unit_price
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		WHERE o.status NOT IN (?, ?)
		ORDER BY o.created_at DESC, oi.id ASC
	`, models.StatusPaid, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("load open orders: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Order)
	var ordered []string
	for rows.Next() {
		var (
			o    models.Order
			item models.OrderItem
		)
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.TableID, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.CompletedAt,
			&item.MenuItemID, &item.Name, &item.Quantity, &item.UnitPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		existing, ok := byID[o.ID]
		if !ok {
			existing = o.Clone()
			existing.Items = nil
			byID[o.ID] = existing
			ordered = append(ordered, o.ID)
		}
		existing.Items = append(existing.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(ordered))
	for _, id := range ordered {
		out = append(out, *byID[id])
	}
	return out, nil
}
