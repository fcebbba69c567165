// Package guard decides whether a route may render for the current sessions.
// Guards are pure functions of the session state and the requested path.
package guard

import (
	"net/url"
	"sort"
	"strings"

	"github.com/baghaven/storefront/internal/model"
	"github.com/baghaven/storefront/internal/session"
)

// Kind is the outcome of a guard.
type Kind int

const (
	Render Kind = iota
	Loading
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision tells the caller what to show for a path. ReturnTo is the path
// captured for a redirect back after login.
type Decision struct {
	Kind     Kind
	To       string
	ReturnTo string
}

// Target returns the redirect destination with the captured path attached as
// the "from" query parameter.
func (d Decision) Target() string {
	if d.Kind != Redirect || d.ReturnTo == "" {
		return d.To
	}
	return d.To + "?" + url.Values{"from": {d.ReturnTo}}.Encode()
}

// Guard maps a session state and the requested path to a Decision.
type Guard func(state session.State, path string) Decision

// HomePath is where authenticated users land when they open a guest page.
const HomePath = "/"

// Public always renders.
func Public(session.State, string) Decision {
	return Decision{Kind: Render}
}

// RequireAuth renders for authenticated users and sends everybody else to
// the user login page.
func RequireAuth(state session.State, path string) Decision {
	if !state.Resolved {
		return Decision{Kind: Loading}
	}
	if !state.Session.IsAuthenticated {
		return Decision{Kind: Redirect, To: model.UserScope.LoginPath, ReturnTo: path}
	}
	return Decision{Kind: Render}
}

// RequireGuest renders login and registration pages for anonymous users.
// Authenticated users go home, or back where they came from when path carries
// a "from" parameter.
func RequireGuest(state session.State, path string) Decision {
	if !state.Resolved {
		return Decision{Kind: Loading}
	}
	if state.Session.IsAuthenticated {
		return Decision{Kind: Redirect, To: returnPath(path)}
	}
	return Decision{Kind: Render}
}

// RequireAdmin renders only for an authenticated admin session.
func RequireAdmin(state session.State, path string) Decision {
	if !state.Resolved {
		return Decision{Kind: Loading}
	}
	if !state.Session.IsAuthenticated || state.Session.Claims.Role != model.RoleAdmin {
		return Decision{Kind: Redirect, To: model.AdminScope.LoginPath, ReturnTo: path}
	}
	return Decision{Kind: Render}
}

func returnPath(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return HomePath
	}
	from := u.Query().Get("from")
	// only same-site paths are followed
	if from == "" || !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return HomePath
	}
	return from
}

// Rule binds a path prefix to a guard and the scope whose session it checks.
type Rule struct {
	Prefix string
	Scope  string
	Guard  Guard
}

// Table routes paths to guards by longest matching prefix.
type Table struct {
	rules []Rule
}

// NewTable creates a Table from rules.
func NewTable(rules ...Rule) *Table {
	t := &Table{rules: append([]Rule(nil), rules...)}
	sort.SliceStable(t.rules, func(i, j int) bool {
		return len(t.rules[i].Prefix) > len(t.rules[j].Prefix)
	})
	return t
}

// DefaultTable returns the storefront's route table.
func DefaultTable() *Table {
	user, admin := model.UserScope.Name, model.AdminScope.Name
	return NewTable(
		Rule{Prefix: "/cart", Scope: user, Guard: RequireAuth},
		Rule{Prefix: "/checkout", Scope: user, Guard: RequireAuth},
		Rule{Prefix: "/orders", Scope: user, Guard: RequireAuth},
		Rule{Prefix: "/wishlist", Scope: user, Guard: RequireAuth},
		Rule{Prefix: "/profile", Scope: user, Guard: RequireAuth},
		Rule{Prefix: "/login", Scope: user, Guard: RequireGuest},
		Rule{Prefix: "/register", Scope: user, Guard: RequireGuest},
		Rule{Prefix: "/admin/login", Scope: admin, Guard: RequireGuest},
		Rule{Prefix: "/admin", Scope: admin, Guard: RequireAdmin},
	)
}

// Match returns the rule for path. Paths without a rule are public.
func (t *Table) Match(path string) Rule {
	p := path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	for _, r := range t.rules {
		if p == r.Prefix || strings.HasPrefix(p, strings.TrimSuffix(r.Prefix, "/")+"/") {
			return r
		}
	}
	return Rule{Prefix: "/", Guard: Public}
}

// Decide runs the guard for path against the state of the rule's scope,
// keyed by scope name. A missing state counts as unresolved.
func (t *Table) Decide(states map[string]session.State, path string) Decision {
	r := t.Match(path)
	return r.Guard(states[r.Scope], path)
}
