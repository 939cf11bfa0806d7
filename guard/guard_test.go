package guard

import (
	"testing"

	"restaurant-service/models"
)

var adminOnly = Rule{RequiredRoles: []models.Role{models.RoleAdmin}}

var orderingRoute = Rule{
	RequiredRoles:        []models.Role{models.RoleCustomer},
	RequiresTableBinding: true,
}

func TestEvaluate_UnauthenticatedRedirectsToLogin(t *testing.T) {
	for _, role := range []models.Role{"", models.RoleCustomer, models.RoleAdmin, models.RoleKitchen, models.RoleWaiter} {
		d := Evaluate(Context{Authenticated: false, Role: role}, adminOnly, "")
		if d.Allowed {
			t.Fatalf("role %q: unauthenticated caller allowed", role)
		}
		if d.Redirect != LoginPath {
			t.Errorf("role %q: redirect = %q, want %q", role, d.Redirect, LoginPath)
		}
	}
}

func TestEvaluate_RoleMismatchRedirectsToOwnLanding(t *testing.T) {
	tests := []struct {
		role models.Role
		want string
	}{
		{models.RoleKitchen, "/kitchen/orders"},
		{models.RoleWaiter, "/waiter/orders"},
		{models.RoleCustomer, "/menu"},
	}
	for _, tt := range tests {
		d := Evaluate(Context{Authenticated: true, Role: tt.role}, adminOnly, "")
		if d.Allowed {
			t.Fatalf("%s allowed on admin-only route", tt.role)
		}
		if d.Redirect != tt.want {
			t.Errorf("%s: redirect = %q, want %q (role's own landing page)", tt.role, d.Redirect, tt.want)
		}
	}
}

func TestEvaluate_MatchingRoleAllowed(t *testing.T) {
	d := Evaluate(Context{Authenticated: true, Role: models.RoleAdmin}, adminOnly, "")
	if !d.Allowed {
		t.Fatalf("admin denied on admin route: redirect %q", d.Redirect)
	}

	multi := Rule{RequiredRoles: []models.Role{models.RoleKitchen, models.RoleWaiter}}
	for _, role := range []models.Role{models.RoleKitchen, models.RoleWaiter} {
		if d := Evaluate(Context{Authenticated: true, Role: role}, multi, ""); !d.Allowed {
			t.Errorf("%s denied on kitchen/waiter route", role)
		}
	}
}

func TestEvaluate_TableBindingCheckedBeforeAuthentication(t *testing.T) {
	// An unbound caller on the ordering route goes to login even when
	// authenticated with the right role.
	d := Evaluate(Context{Authenticated: true, Role: models.RoleCustomer}, orderingRoute, "")
	if d.Allowed {
		t.Fatal("unbound customer allowed on ordering route")
	}
	if d.Redirect != LoginPath {
		t.Errorf("redirect = %q, want %q", d.Redirect, LoginPath)
	}
}

func TestEvaluate_BindingRedirectPreservesRequestTableID(t *testing.T) {
	// QR deep link carries ?tableId=7; the login redirect must keep it so
	// the binding can be completed after sign-in.
	d := Evaluate(Context{}, orderingRoute, "7")
	if d.Allowed {
		t.Fatal("should be denied")
	}
	if d.Redirect != "/login?tableId=7" {
		t.Errorf("redirect = %q, want /login?tableId=7", d.Redirect)
	}

	// Same preservation on the plain authentication redirect.
	d = Evaluate(Context{Authenticated: false}, Rule{RequiredRoles: []models.Role{models.RoleCustomer}}, "12")
	if d.Redirect != "/login?tableId=12" {
		t.Errorf("redirect = %q, want /login?tableId=12", d.Redirect)
	}
}

func TestEvaluate_BoundCustomerAllowed(t *testing.T) {
	d := Evaluate(Context{Authenticated: true, Role: models.RoleCustomer, TableID: "t7"}, orderingRoute, "")
	if !d.Allowed {
		t.Fatalf("bound customer denied: redirect %q", d.Redirect)
	}
}

func TestEvaluate_CheckOrder(t *testing.T) {
	// Binding outranks authentication, authentication outranks role: an
	// unauthenticated, unbound caller with no role gets the binding
	// redirect (login with nothing to preserve), never a landing page.
	d := Evaluate(Context{}, orderingRoute, "")
	if d.Redirect != LoginPath {
		t.Errorf("redirect = %q, want %q", d.Redirect, LoginPath)
	}

	// Authenticated wrong role, but bound: role check is reached and wins.
	d = Evaluate(Context{Authenticated: true, Role: models.RoleWaiter, TableID: "t7"}, orderingRoute, "")
	if d.Redirect != models.RoleWaiter.LandingPath() {
		t.Errorf("redirect = %q, want waiter landing", d.Redirect)
	}
}

func TestEvaluate_UnknownRoleFallsBackToLogin(t *testing.T) {
	d := Evaluate(Context{Authenticated: true, Role: "ghost"}, adminOnly, "")
	if d.Allowed || d.Redirect != LoginPath {
		t.Errorf("decision = %+v, want login redirect", d)
	}
}
