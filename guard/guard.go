// Package guard decides, for an incoming request, whether the caller may
// reach the target route. Denial is never an error: the outcome is always
// either allow or a redirect target for the navigation layer.
package guard

import (
	"net/url"

	"restaurant-service/models"
)

// LoginPath is where unauthenticated (or table-unbound) callers are sent.
const LoginPath = "/login"

// Context is the ephemeral per-request access context.
type Context struct {
	Authenticated bool
	Role          models.Role
	TableID       string // bound table, empty when no binding exists
}

// Rule describes what a route demands.
type Rule struct {
	RequiredRoles        []models.Role
	RequiresTableBinding bool // true only for the customer ordering flow
}

func (r Rule) allows(role models.Role) bool {
	for _, want := range r.RequiredRoles {
		if want == role {
			return true
		}
	}
	return false
}

// Decision is the guard's verdict. When Allowed is false, Redirect carries
// the path the caller must be sent to instead.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Evaluate runs the checks in strict order: table binding, authentication,
// role. Later checks assume the earlier ones passed. requestTableID is any
// table id carried on the incoming request (a QR deep link); it is preserved
// on login redirects so the binding can be completed after sign-in.
func Evaluate(ctx Context, rule Rule, requestTableID string) Decision {
	if rule.RequiresTableBinding && ctx.TableID == "" {
		return redirectToLogin(requestTableID)
	}
	if !ctx.Authenticated {
		return redirectToLogin(requestTableID)
	}
	if !rule.allows(ctx.Role) {
		// A signed-in user with the wrong role goes to their own home,
		// not a generic unauthorized page.
		target := ctx.Role.LandingPath()
		if target == "" {
			target = LoginPath
		}
		return Decision{Redirect: target}
	}
	return Decision{Allowed: true}
}

func redirectToLogin(tableID string) Decision {
	if tableID == "" {
		return Decision{Redirect: LoginPath}
	}
	q := url.Values{}
	q.Set("tableId", tableID)
	return Decision{Redirect: LoginPath + "?" + q.Encode()}
}
