// Package session owns table bindings and cash-handoff records. Both live
// in Redis so every device on the floor sees the same state; the old scheme
// of two local storages kept in sync by convention does not survive a
// second device.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"restaurant-service/models"
)

var (
	ErrNoBinding      = errors.New("no table binding for session")
	ErrHandoffExists  = errors.New("handoff already pending for order")
	ErrHandoffMissing = errors.New("no pending handoff")
)

// BindingSource records how a table binding was established. QR-derived
// bindings are the trusted path; manual entry is an escape hatch and is
// flagged as such.
type BindingSource string

const (
	SourceQR     BindingSource = "qr"
	SourceManual BindingSource = "manual"
)

type binding struct {
	TableID string        `json:"table_id"`
	Source  BindingSource `json:"source"`
}

// Manager stores per-customer table bindings and pending cash handoffs.
type Manager struct {
	rdb        *redis.Client
	log        zerolog.Logger
	bindingTTL time.Duration
	handoffTTL time.Duration
}

func NewManager(rdb *redis.Client, log zerolog.Logger) *Manager {
	return &Manager{
		rdb:        rdb,
		log:        log,
		bindingTTL: 4 * time.Hour,
		handoffTTL: 30 * time.Minute,
	}
}

func bindingKey(customerID string) string { return "binding:" + customerID }
func handoffKey(orderID string) string    { return "handoff:" + orderID }

// BindTable records the table a customer checked in at.
func (m *Manager) BindTable(ctx context.Context, customerID, tableID string, source BindingSource) error {
	b, err := json.Marshal(binding{TableID: tableID, Source: source})
	if err != nil {
		return err
	}
	if err := m.rdb.Set(ctx, bindingKey(customerID), b, m.bindingTTL).Err(); err != nil {
		return fmt.Errorf("bind table: %w", err)
	}
	m.log.Info().
		Str("customer_id", customerID).
		Str("table_id", tableID).
		Str("source", string(source)).
		Msg("table bound")
	return nil
}

// BoundTable returns the customer's current table binding, or ErrNoBinding.
func (m *Manager) BoundTable(ctx context.Context, customerID string) (string, error) {
	raw, err := m.rdb.Get(ctx, bindingKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoBinding
	}
	if err != nil {
		return "", fmt.Errorf("load binding: %w", err)
	}
	var b binding
	if err := json.Unmarshal(raw, &b); err != nil {
		return "", fmt.Errorf("decode binding: %w", err)
	}
	return b.TableID, nil
}

// Unbind drops a customer's table binding (table freed after payment).
func (m *Manager) Unbind(ctx context.Context, customerID string) error {
	return m.rdb.Del(ctx, bindingKey(customerID)).Err()
}

// ResolveTableID is the single authoritative precedence rule for the table
// a request acts on: an explicit URL parameter wins, then the live session
// binding, then any persisted fallback.
func ResolveTableID(urlParam, sessionBound, persisted string) string {
	if urlParam != "" {
		return urlParam
	}
	if sessionBound != "" {
		return sessionBound
	}
	return persisted
}

// Handoff is a pending waiter-to-cashier cash collection. It is created
// server-side and confirmed atomically, so the two devices never disagree
// about whether the cash changed hands.
type Handoff struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	WaiterID  string    `json:"waiter_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateHandoff records a pending collection. At most one handoff may be
// pending per order.
func (m *Manager) CreateHandoff(ctx context.Context, h Handoff) error {
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	ok, err := m.rdb.SetNX(ctx, handoffKey(h.OrderID), b, m.handoffTTL).Result()
	if err != nil {
		return fmt.Errorf("create handoff: %w", err)
	}
	if !ok {
		return ErrHandoffExists
	}
	m.log.Info().
		Str("handoff_id", h.ID).
		Str("order_id", h.OrderID).
		Str("waiter_id", h.WaiterID).
		Float64("amount", h.Amount).
		Msg("handoff created")
	return nil
}

// ConfirmHandoff atomically consumes the pending record (GETDEL), so two
// cashiers confirming the same handoff cannot both succeed.
func (m *Manager) ConfirmHandoff(ctx context.Context, orderID, cashierID string) (Handoff, error) {
	raw, err := m.rdb.GetDel(ctx, handoffKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Handoff{}, ErrHandoffMissing
	}
	if err != nil {
		return Handoff{}, fmt.Errorf("confirm handoff: %w", err)
	}
	var h Handoff
	if err := json.Unmarshal(raw, &h); err != nil {
		return Handoff{}, fmt.Errorf("decode handoff: %w", err)
	}
	m.log.Info().
		Str("handoff_id", h.ID).
		Str("order_id", h.OrderID).
		Str("cashier_id", cashierID).
		Msg("handoff confirmed")
	return h, nil
}

// GuardContext assembles the access-guard context for a request: the
// caller's identity plus their resolved table binding.
func (m *Manager) GuardContext(ctx context.Context, authenticated bool, role models.Role, customerID string) (string, error) {
	if !authenticated || role != models.RoleCustomer {
		return "", nil
	}
	tableID, err := m.BoundTable(ctx, customerID)
	if errors.Is(err, ErrNoBinding) {
		return "", nil
	}
	return tableID, err
}
