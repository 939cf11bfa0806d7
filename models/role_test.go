package models

import "testing"

func TestRoleRegistry(t *testing.T) {
	tests := []struct {
		role    Role
		display string
		landing string
	}{
		{RoleCustomer, "Customer", "/menu"},
		{RoleAdmin, "Administrator", "/admin/dashboard"},
		{RoleKitchen, "Kitchen Staff", "/kitchen/orders"},
		{RoleWaiter, "Waiter", "/waiter/orders"},
	}
	for _, tt := range tests {
		if !tt.role.Valid() {
			t.Errorf("%s should be a valid role", tt.role)
		}
		if got := tt.role.DisplayName(); got != tt.display {
			t.Errorf("DisplayName(%s) = %q, want %q", tt.role, got, tt.display)
		}
		if got := tt.role.LandingPath(); got != tt.landing {
			t.Errorf("LandingPath(%s) = %q, want %q", tt.role, got, tt.landing)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("Waiter"); !ok || r != RoleWaiter {
		t.Errorf("ParseRole(Waiter) = %v, %v", r, ok)
	}
	if _, ok := ParseRole("chef"); ok {
		t.Error("ParseRole(chef) should fail")
	}
	if _, ok := ParseRole(""); ok {
		t.Error("ParseRole empty should fail")
	}
}
