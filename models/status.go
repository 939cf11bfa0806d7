package models

import "strings"

// Status is the canonical order status. The kitchen/waiter and admin
// dashboards use their own display vocabularies; those are derived from this
// enumeration via KitchenLabel/AdminLabel and are never stored.
type Status string

const (
	StatusPlaced    Status = "placed"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusCompleted Status = "completed"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// StatusInitial is the only status an order may be created in.
const StatusInitial = StatusPlaced

// transitions holds the legal edges of the status machine. Terminal states
// have an empty set: once an order is paid or cancelled nothing moves it.
var transitions = map[Status]map[Status]bool{
	StatusPlaced:    {StatusConfirmed: true, StatusPreparing: true, StatusCancelled: true},
	StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
	StatusPreparing: {StatusReady: true, StatusCancelled: true},
	StatusReady:     {StatusServed: true},
	StatusServed:    {StatusCompleted: true, StatusPaid: true},
	StatusCompleted: {StatusPaid: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

// AllStatuses lists every canonical status, in lifecycle order.
var AllStatuses = []Status{
	StatusPlaced, StatusConfirmed, StatusPreparing, StatusReady,
	StatusServed, StatusCompleted, StatusPaid, StatusCancelled,
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing edges.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanTransitionTo reports whether the edge s -> target exists.
func (s Status) CanTransitionTo(target Status) bool {
	return transitions[s][target]
}

// ParseStatus validates a client-supplied status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

// KitchenLabel maps the canonical status to the five-state vocabulary the
// kitchen and waiter boards show: PLACED, PREPARING, READY, SERVED, PAID
// (plus CANCELLED). Confirmed orders have not hit the line yet and show as
// PLACED; completed orders are still on the table and show as SERVED.
func (s Status) KitchenLabel() string {
	switch s {
	case StatusPlaced, StatusConfirmed:
		return "PLACED"
	case StatusServed, StatusCompleted:
		return "SERVED"
	default:
		return strings.ToUpper(string(s))
	}
}

// AdminLabel maps the canonical status to the eight-state admin vocabulary,
// which calls a freshly placed order PENDING.
func (s Status) AdminLabel() string {
	if s == StatusPlaced {
		return "PENDING"
	}
	return strings.ToUpper(string(s))
}

// LabelFor picks the display vocabulary for a role. Customers track their
// order with the same coarse labels the floor staff see.
func (s Status) LabelFor(r Role) string {
	if r == RoleAdmin {
		return s.AdminLabel()
	}
	return s.KitchenLabel()
}
