// Package store holds the working set of orders in memory. All mutation
// goes through Add, ApplyTransition and Remove; readers always get deep
// copies, never live references.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"restaurant-service/models"
)

var (
	ErrNotFound    = errors.New("order not found")
	ErrDuplicateID = errors.New("duplicate order id")
	ErrNotInitial  = errors.New("new orders must be in the initial status")
)

// OrderStore is a thread-safe in-memory order collection. A single mutex
// serializes mutations, which gives the single-writer-per-order guarantee
// the status machine relies on.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	log    zerolog.Logger
	now    func() time.Time
}

func NewOrderStore(log zerolog.Logger) *OrderStore {
	return &OrderStore{
		orders: make(map[string]*models.Order),
		log:    log,
		now:    time.Now,
	}
}

// Add inserts a new order. The order must still be in the initial status;
// anything further along has a history the store never saw.
func (s *OrderStore) Add(order *models.Order) error {
	if order.Status != models.StatusInitial {
		return ErrNotInitial
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return ErrDuplicateID
	}
	s.orders[order.ID] = order.Clone()
	return nil
}

// Load seeds the store with existing orders (used at startup to restore the
// open working set from the database). Unlike Add it accepts any status.
func (s *OrderStore) Load(orders []models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range orders {
		s.orders[orders[i].ID] = orders[i].Clone()
	}
}

func (s *OrderStore) FindByID(id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

// FilterByStatus returns a snapshot of all orders in any of the given
// statuses, newest first.
func (s *OrderStore) FilterByStatus(statuses ...models.Status) []models.Order {
	want := make(map[models.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return s.filter(func(o *models.Order) bool { return want[o.Status] })
}

func (s *OrderStore) FilterByCustomer(customerID string) []models.Order {
	return s.filter(func(o *models.Order) bool { return o.CustomerID == customerID })
}

func (s *OrderStore) FilterByTable(tableID string) []models.Order {
	return s.filter(func(o *models.Order) bool { return o.TableID == tableID })
}

// All returns a snapshot of every order in the store.
func (s *OrderStore) All() []models.Order {
	return s.filter(func(*models.Order) bool { return true })
}

func (s *OrderStore) filter(keep func(*models.Order) bool) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, *o.Clone())
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

// ApplyTransition looks up the order and delegates to the status machine.
// The stored record is replaced atomically with respect to other callers;
// on failure the order is left unchanged. Returns a snapshot of the order
// after the transition.
func (s *OrderStore) ApplyTransition(id string, target models.Status) (*models.Order, error) {
	return s.ApplyTransitionWith(id, target, nil)
}

// ApplyTransitionWith applies the transition and, before the stored record
// is replaced, runs persist on the transitioned copy under the same lock.
// When persist fails the stored order is left unchanged, so the working set
// never gets ahead of durable state and a restart cannot resurrect a status
// the database never saw.
func (s *OrderStore) ApplyTransitionWith(id string, target models.Status, persist func(*models.Order) error) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := o.Clone()
	if err := next.Transition(target, s.now()); err != nil {
		return nil, err
	}
	if persist != nil {
		if err := persist(next.Clone()); err != nil {
			return nil, err
		}
	}
	s.orders[id] = next
	return next.Clone(), nil
}

// Remove deletes an order outright, bypassing the status machine. It exists
// only for the explicit admin delete action and is audit-logged with the
// acting identity.
func (s *OrderStore) Remove(id, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.orders, id)
	s.log.Warn().
		Str("order_id", id).
		Str("actor_id", actorID).
		Str("status", string(o.Status)).
		Float64("total", o.TotalAmount).
		Msg("order removed outside the status machine")
	return nil
}

// Len reports the number of orders currently held.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
