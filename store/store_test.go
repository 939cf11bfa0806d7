package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"restaurant-service/models"
)

func newTestStore() *OrderStore {
	return NewOrderStore(zerolog.Nop())
}

func newTestOrder(t *testing.T, id string) *models.Order {
	t.Helper()
	o, err := models.NewOrder(id, "c1", "t7", []models.OrderItem{
		{MenuItemID: "m1", Name: "Margherita", Quantity: 2, UnitPrice: 10.00},
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	return o
}

func TestAddAndFind(t *testing.T) {
	s := newTestStore()
	o := newTestOrder(t, "o1")
	if err := s.Add(o); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.FindByID("o1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != "o1" || got.TotalAmount != 20.00 {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestAdd_DuplicateID(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(newTestOrder(t, "o1")); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestAdd_RejectsNonInitialStatus(t *testing.T) {
	s := newTestStore()
	o := newTestOrder(t, "o1")
	if err := o.Transition(models.StatusPreparing, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(o); !errors.Is(err, ErrNotInitial) {
		t.Fatalf("err = %v, want ErrNotInitial", err)
	}
}

func TestFindByID_NotFound(t *testing.T) {
	s := newTestStore()
	if _, err := s.FindByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshots_DoNotLeakLiveReferences(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}

	got, _ := s.FindByID("o1")
	got.Status = models.StatusPaid
	got.Items[0].Quantity = 99

	fresh, _ := s.FindByID("o1")
	if fresh.Status != models.StatusPlaced {
		t.Error("mutating a snapshot changed stored status")
	}
	if fresh.Items[0].Quantity != 2 {
		t.Error("mutating a snapshot changed stored items")
	}
}

func TestFilters(t *testing.T) {
	s := newTestStore()
	base := time.Now().UTC()
	mk := func(id, customer, table string, created time.Time) {
		o, err := models.NewOrder(id, customer, table, []models.OrderItem{
			{MenuItemID: "m1", Name: "x", Quantity: 1, UnitPrice: 1},
		}, created)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Add(o); err != nil {
			t.Fatal(err)
		}
	}
	mk("o1", "c1", "t1", base)
	mk("o2", "c1", "t2", base.Add(time.Minute))
	mk("o3", "c2", "t1", base.Add(2*time.Minute))

	if _, err := s.ApplyTransition("o3", models.StatusPreparing); err != nil {
		t.Fatal(err)
	}

	if got := s.FilterByCustomer("c1"); len(got) != 2 {
		t.Errorf("FilterByCustomer(c1) = %d orders, want 2", len(got))
	} else if got[0].ID != "o2" {
		t.Errorf("expected newest first, got %s", got[0].ID)
	}
	if got := s.FilterByTable("t1"); len(got) != 2 {
		t.Errorf("FilterByTable(t1) = %d orders, want 2", len(got))
	}
	if got := s.FilterByStatus(models.StatusPreparing); len(got) != 1 || got[0].ID != "o3" {
		t.Errorf("FilterByStatus(preparing) = %+v", got)
	}
	if got := s.FilterByStatus(models.StatusPlaced, models.StatusPreparing); len(got) != 3 {
		t.Errorf("FilterByStatus(placed, preparing) = %d orders, want 3", len(got))
	}
	if got := s.All(); len(got) != 3 {
		t.Errorf("All() = %d orders, want 3", len(got))
	}
}

func TestApplyTransition(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}

	got, err := s.ApplyTransition("o1", models.StatusPreparing)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != models.StatusPreparing {
		t.Errorf("status = %s, want preparing", got.Status)
	}

	// Illegal edge: order must be left untouched.
	if _, err := s.ApplyTransition("o1", models.StatusPlaced); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	fresh, _ := s.FindByID("o1")
	if fresh.Status != models.StatusPreparing {
		t.Errorf("status changed after rejected transition: %s", fresh.Status)
	}

	if _, err := s.ApplyTransition("missing", models.StatusPreparing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyTransition_TerminalStampsCompletedAt(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}
	got, err := s.ApplyTransition("o1", models.StatusCancelled)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil {
		t.Fatal("completedAt not stamped")
	}
	if _, err := s.ApplyTransition("o1", models.StatusPreparing); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("terminal order accepted a transition: %v", err)
	}
}

func TestApplyTransitionWith_PersistFailureLeavesStoreUnchanged(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("mysql is down")
	var seen models.Status
	_, err := s.ApplyTransitionWith("o1", models.StatusConfirmed, func(o *models.Order) error {
		seen = o.Status
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want persist error", err)
	}
	if seen != models.StatusConfirmed {
		t.Errorf("persist saw status %s, want the transitioned confirmed", seen)
	}

	// The durable write failed, so the in-memory order must not move.
	fresh, _ := s.FindByID("o1")
	if fresh.Status != models.StatusPlaced {
		t.Errorf("status = %s after failed persist, want placed", fresh.Status)
	}

	// And the edge is still available once persistence recovers.
	if _, err := s.ApplyTransitionWith("o1", models.StatusConfirmed, func(*models.Order) error { return nil }); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	fresh, _ = s.FindByID("o1")
	if fresh.Status != models.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", fresh.Status)
	}
}

func TestApplyTransitionWith_IllegalEdgeSkipsPersist(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}

	called := false
	_, err := s.ApplyTransitionWith("o1", models.StatusReady, func(*models.Order) error {
		called = true
		return nil
	})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if called {
		t.Error("persist ran for a rejected transition")
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove("o1", "admin-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.FindByID("o1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("order still present after remove")
	}
	if err := s.Remove("o1", "admin-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: err = %v, want ErrNotFound", err)
	}
}

func TestApplyTransition_ConcurrentSameOrder(t *testing.T) {
	s := newTestStore()
	if err := s.Add(newTestOrder(t, "o1")); err != nil {
		t.Fatal(err)
	}

	// Many writers race the same edge; exactly one can win since the edge
	// placed -> confirmed does not exist from confirmed.
	const writers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ApplyTransition("o1", models.StatusConfirmed); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("%d writers succeeded, want exactly 1", succeeded)
	}
	got, _ := s.FindByID("o1")
	if got.Status != models.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
}

func TestConcurrentMutationsDifferentOrders(t *testing.T) {
	s := newTestStore()
	ids := []string{"o1", "o2", "o3", "o4"}
	for _, id := range ids {
		if err := s.Add(newTestOrder(t, id)); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, st := range []models.Status{models.StatusConfirmed, models.StatusPreparing, models.StatusReady, models.StatusServed, models.StatusPaid} {
				if _, err := s.ApplyTransition(id, st); err != nil {
					t.Errorf("%s -> %s: %v", id, st, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		got, err := s.FindByID(id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != models.StatusPaid || got.CompletedAt == nil {
			t.Errorf("%s: status = %s, completedAt = %v", id, got.Status, got.CompletedAt)
		}
	}
}
