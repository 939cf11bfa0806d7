package models

import "strings"

// Role is one of the four fixed identities the service knows about.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleKitchen  Role = "kitchen"
	RoleWaiter   Role = "waiter"
)

// RoleInfo is the static registry entry for a role. The registry never
// changes at runtime; adding a role is a code change.
type RoleInfo struct {
	DisplayName string
	LandingPath string
}

var roleRegistry = map[Role]RoleInfo{
	RoleCustomer: {DisplayName: "Customer", LandingPath: "/menu"},
	RoleAdmin:    {DisplayName: "Administrator", LandingPath: "/admin/dashboard"},
	RoleKitchen:  {DisplayName: "Kitchen Staff", LandingPath: "/kitchen/orders"},
	RoleWaiter:   {DisplayName: "Waiter", LandingPath: "/waiter/orders"},
}

func (r Role) Valid() bool {
	_, ok := roleRegistry[r]
	return ok
}

func (r Role) DisplayName() string {
	return roleRegistry[r].DisplayName
}

// LandingPath is the role's default landing page, used by the access guard
// when a signed-in user hits a route their role cannot access.
func (r Role) LandingPath() string {
	return roleRegistry[r].LandingPath
}

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}
