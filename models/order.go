package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrBadQuantity       = errors.New("item quantity must be a positive integer")
	ErrBadUnitPrice      = errors.New("item unit price must not be negative")
	ErrNoTable           = errors.New("order requires a bound table")
	ErrNoCustomer        = errors.New("order requires a customer")
)

// Order is one customer's placed request, bound to a table. ID, CustomerID,
// TableID, Items and CreatedAt are immutable after creation; Status moves
// only through Transition, and TotalAmount is always derived from Items.
type Order struct {
	ID          string      `json:"id"`
	CustomerID  string      `json:"customer_id"`
	TableID     string      `json:"table_id"`
	Items       []OrderItem `json:"items"`
	Status      Status      `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

type OrderItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// NewOrder validates the cart and builds an order in the initial status with
// the total computed from its items.
func NewOrder(id, customerID, tableID string, items []OrderItem, now time.Time) (*Order, error) {
	if customerID == "" {
		return nil, ErrNoCustomer
	}
	if tableID == "" {
		return nil, ErrNoTable
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %d: %w", i+1, ErrBadQuantity)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("item %d: %w", i+1, ErrBadUnitPrice)
		}
	}
	o := &Order{
		ID:         id,
		CustomerID: customerID,
		TableID:    tableID,
		Items:      append([]OrderItem(nil), items...),
		Status:     StatusInitial,
		CreatedAt:  now,
	}
	o.TotalAmount = o.Total()
	return o, nil
}

// Total recomputes the order total from its items.
func (o *Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// Transition moves the order to target if the status machine allows the
// edge. Entering a terminal state stamps CompletedAt exactly once (terminal
// states have no outgoing edges, so it can never be overwritten). The
// machine itself performs no side effects; notifications and persistence
// are the caller's job after a successful transition.
func (o *Order) Transition(target Status, now time.Time) error {
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot move order to %s from %s", ErrInvalidTransition, target, o.Status)
	}
	o.Status = target
	if target.Terminal() {
		t := now
		o.CompletedAt = &t
	}
	return nil
}

// Clone returns a deep copy. The store hands out clones so no caller holds
// a reference that could bypass Transition.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// OrderEvent is the message published to the broker after a successful
// store mutation.
type OrderEvent struct {
	OrderID  string    `json:"order_id"`
	Type     string    `json:"type"` // created, status_updated, payment_check
	Status   Status    `json:"status"`
	TableID  string    `json:"table_id"`
	Total    float64   `json:"total"`
	Occurred time.Time `json:"occurred"`
}
