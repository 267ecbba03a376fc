package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/rs/zerolog/log"
)

// Phase is how far start-up has progressed
type Phase int32

const (
	PhaseHydrating Phase = iota
	PhaseRestoringSession
	PhaseRestoringWorkspace
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseHydrating:
		return "hydrating"
	case PhaseRestoringSession:
		return "restoring_session"
	case PhaseRestoringWorkspace:
		return "restoring_workspace"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Initializer runs the one-time start-up sequence: wait for hydration, restore the
// session from the refresh cookie, restore the persisted workspace, then report ready.
// Nothing behind it should render before Ready is closed.
type Initializer struct {
	m    *Manager
	gate HydrationGate

	mu                   sync.Mutex
	finished             bool
	ready                chan struct{}
	phase                atomic.Int32
	restorationAttempted atomic.Bool
}

func newInitializer(m *Manager, gate HydrationGate) *Initializer {
	return &Initializer{
		m:     m,
		gate:  gate,
		ready: make(chan struct{}),
	}
}

func (i *Initializer) Phase() Phase {
	return Phase(i.phase.Load())
}

// Ready is closed once start-up has finished
func (i *Initializer) Ready() <-chan struct{} {
	return i.ready
}

func (i *Initializer) IsReady() bool {
	select {
	case <-i.ready:
		return true
	default:
		return false
	}
}

// Wait blocks until start-up has finished or ctx is done
func (i *Initializer) Wait(ctx context.Context) error {
	select {
	case <-i.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the start-up sequence. Concurrent callers wait for the one doing the
// work and once it finishes later calls return nil straight away. A failed restore
// is not an error: the operator is simply not logged in. The only error is ctx ending
// before hydration; nothing has been restored at that point, so Run may be called again.
func (i *Initializer) Run(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.finished {
		return nil
	}
	if err := i.run(ctx); err != nil {
		return err
	}
	i.finished = true
	return nil
}

func (i *Initializer) run(ctx context.Context) error {
	i.phase.Store(int32(PhaseHydrating))
	if err := i.gate.Wait(ctx); err != nil {
		return fmt.Errorf("[Initializer Run] waiting for hydration: %w", err)
	}

	i.phase.Store(int32(PhaseRestoringSession))
	i.restoreSession(ctx)

	i.phase.Store(int32(PhaseRestoringWorkspace))
	i.restoreWorkspace(ctx)

	i.phase.Store(int32(PhaseReady))
	close(i.ready)
	log.Info().
		Bool("authenticated", i.m.creds.IsAuthenticated()).
		Str("workspace_id", i.m.workspaces.ID()).
		Msg("console session ready")
	return nil
}

func (i *Initializer) restoreSession(ctx context.Context) {
	creds := i.m.creds
	if creds.Snapshot().IsInitialized {
		return
	}

	creds.SetLoading(true)
	defer creds.SetLoading(false)
	defer creds.MarkInitialized()

	resp, err := i.m.api.RestoreSession(ctx)
	if err != nil {
		log.Info().Err(err).Msg("no session to restore")
		return
	}
	creds.SetToken(resp.Tokens.AccessToken, resp.Tokens.Lifetime())
	i.m.setUser(resp.User)
	i.m.scheduler.Start(i.m.lifetime)
}

// restoreWorkspace runs at most once per process, whatever the outcome.
func (i *Initializer) restoreWorkspace(ctx context.Context) {
	if !i.m.creds.IsAuthenticated() {
		return
	}
	if !i.restorationAttempted.CompareAndSwap(false, true) {
		return
	}
	if _, ok := i.m.workspaces.Current(); ok {
		return
	}

	workspaceID := i.m.persistedWorkspaceID(ctx)
	if workspaceID == "" {
		return
	}

	gen := i.m.workspaces.Begin()
	if _, err := i.m.confirmWorkspace(ctx, gen, workspaceID); err != nil {
		if apperrors.Is(err, apperrors.ErrStaleResponse) {
			log.Info().Str("workspace_id", workspaceID).Msg("workspace restore superseded")
			return
		}
		log.Warn().Err(err).Str("workspace_id", workspaceID).Msg("could not restore workspace, clearing it")
		i.m.workspaces.Abandon(gen)
		i.m.forgetPersistedWorkspace(ctx, workspaceID)
	}
}
