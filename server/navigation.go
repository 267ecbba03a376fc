package server

import (
	"sync"

	"github.com/jrsteele09/go-console-session/session"
)

// Navigation is the server side stand-in for the browser location. It remembers the
// last console page served and holds a navigation requested by the session layer
// until the next page request can act on it.
type Navigation struct {
	mu       sync.Mutex
	current  string
	pending  string
	fallback string
}

var (
	_ session.Navigator = (*Navigation)(nil)
	_ session.Locator   = (*Navigation)(nil)
)

// NewNavigation starts at fallback until a page has been served
func NewNavigation(fallback string) *Navigation {
	return &Navigation{current: fallback, fallback: fallback}
}

func (n *Navigation) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = target
}

func (n *Navigation) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigation) visit(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = path
}

// takePending returns and clears the queued navigation
func (n *Navigation) takePending() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	target := n.pending
	n.pending = ""
	return target, target != ""
}
