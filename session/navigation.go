package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Navigator moves the operator to another route
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

// Locator reports the route the operator is currently on
type Locator interface {
	CurrentPath() string
}

// LocatorFunc adapts a function to Locator
type LocatorFunc func() string

func (f LocatorFunc) CurrentPath() string { return f() }

// HydrationGate blocks until the runtime is ready to render interactively
type HydrationGate interface {
	Wait(ctx context.Context) error
}

type immediateGate struct{}

func (immediateGate) Wait(context.Context) error { return nil }

// HydrationSignal is a gate opened once by whoever owns the runtime, e.g. when the
// HTTP listener is bound.
type HydrationSignal struct {
	once sync.Once
	ch   chan struct{}
}

func NewHydrationSignal() *HydrationSignal {
	return &HydrationSignal{ch: make(chan struct{})}
}

// Open releases every waiter. Calling it more than once is harmless.
func (h *HydrationSignal) Open() {
	h.once.Do(func() { close(h.ch) })
}

func (h *HydrationSignal) Wait(ctx context.Context) error {
	select {
	case <-h.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type logNavigator struct{}

func (logNavigator) Navigate(target string) {
	log.Info().Str("target", target).Msg("navigation requested")
}
