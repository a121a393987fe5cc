// Package router is the console's login-gated navigator. A guard runs
// before every navigation: protected routes need both stored credentials,
// and the login page is skipped once they are present.
package router

import (
	"sync"

	"github.com/goban/core/internal/client/credentials"
)

const (
	LoginPath     = "/login"
	DashboardPath = "/"
)

// maxRedirects bounds guard chains
const maxRedirects = 4

// Route is a named destination
type Route struct {
	Path         string
	Name         string
	RequiresAuth bool
}

// Routes are the console's known destinations
var Routes = []Route{
	{Path: LoginPath, Name: "Login"},
	{Path: DashboardPath, Name: "Dashboard", RequiresAuth: true},
}

// Router tracks the current location
type Router struct {
	mu      sync.Mutex
	store   credentials.Store
	routes  map[string]Route
	current string
}

func New(store credentials.Store) *Router {
	r := &Router{
		store:  store,
		routes: make(map[string]Route, len(Routes)),
	}
	for _, route := range Routes {
		r.routes[route.Path] = route
	}
	return r
}

// Lookup returns the route registered at path
func (r *Router) Lookup(path string) (Route, bool) {
	route, ok := r.routes[path]
	return route, ok
}

// Resolve runs the guard for path and returns where navigation lands.
// Unknown paths pass through unchanged.
func (r *Router) Resolve(path string) string {
	for i := 0; i < maxRedirects; i++ {
		next, redirected := r.guard(path)
		if !redirected {
			return path
		}
		path = next
	}
	return path
}

func (r *Router) guard(path string) (string, bool) {
	authed := credentials.Present(r.store)

	if route, ok := r.routes[path]; ok && route.RequiresAuth && !authed {
		return LoginPath, true
	}
	if path == LoginPath && authed {
		return DashboardPath, true
	}
	return path, false
}

// Push navigates to path and returns the resolved location
func (r *Router) Push(path string) string {
	dest := r.Resolve(path)

	r.mu.Lock()
	r.current = dest
	r.mu.Unlock()

	return dest
}

// Current returns the last resolved location, "" before any navigation
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
