package workspace

import "sync"

// View is the read-only face of the active workspace record handed to consumers
// such as the credential store or page rendering.
type View interface {
	Current() (Context, bool)
	ID() string
}

// ChangeFunc is called after the active workspace changes. ok is false when it was cleared.
type ChangeFunc func(ctx Context, ok bool)

// Store holds the one authoritative active workspace. Every writer goes through it,
// so every View reports the same workspace at all times.
//
// Attempts to change the workspace asynchronously (switch, restore) take a generation
// from Begin and only land through Commit or Abandon while that generation is still
// the latest one. A newer Begin, Set or Clear supersedes older attempts.
type Store struct {
	mu         sync.RWMutex
	current    *Context
	generation uint64
	listeners  []ChangeFunc
}

var _ View = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Current() (Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Context{}, false
	}
	return s.current.clone(), true
}

func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// Set replaces the active workspace unconditionally and supersedes any pending attempt.
func (s *Store) Set(ctx Context) {
	s.mu.Lock()
	s.generation++
	c := ctx.clone()
	s.current = &c
	listeners := s.listeners
	s.mu.Unlock()
	notify(listeners, c, true)
}

// Clear removes the active workspace and supersedes any pending attempt.
func (s *Store) Clear() {
	s.mu.Lock()
	s.generation++
	had := s.current != nil
	s.current = nil
	listeners := s.listeners
	s.mu.Unlock()
	if had {
		notify(listeners, Context{}, false)
	}
}

// Begin starts an asynchronous attempt and returns its generation.
func (s *Store) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// IsLatest reports whether gen is still the newest attempt.
func (s *Store) IsLatest(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return gen == s.generation
}

// Commit applies ctx only if gen is still the latest attempt.
func (s *Store) Commit(gen uint64, ctx Context) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	c := ctx.clone()
	s.current = &c
	listeners := s.listeners
	s.mu.Unlock()
	notify(listeners, c, true)
	return true
}

// Abandon clears the workspace only if gen is still the latest attempt.
func (s *Store) Abandon(gen uint64) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	had := s.current != nil
	s.current = nil
	listeners := s.listeners
	s.mu.Unlock()
	if had {
		notify(listeners, Context{}, false)
	}
	return true
}

// OnChange registers a listener. Listeners run synchronously on the writer's goroutine.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// notify gives each listener its own copy so none can reach the stored record or another listener's view.
func notify(listeners []ChangeFunc, ctx Context, ok bool) {
	for _, fn := range listeners {
		fn(ctx.clone(), ok)
	}
}
