package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-console-session/authapi"
	"github.com/jrsteele09/go-console-session/credentials"
	"github.com/jrsteele09/go-console-session/intent"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/persist"
	"github.com/jrsteele09/go-console-session/refresh"
	"github.com/jrsteele09/go-console-session/workspace"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLoginRoute   = "/login"
	DefaultLandingRoute = "/dashboard"
)

// Deps holds the collaborators a Manager needs
type Deps struct {
	API       authapi.API  // Backend calls: login, restore, refresh, workspace switch
	Persist   persist.Repo // Client-local state that survives restarts
	Navigator Navigator    // Optional, defaults to logging the target
	Locator   Locator      // Optional, defaults to the landing route
}

// Manager is the composed session service. It owns the credential store, the
// authoritative workspace record, the intent repo and the refresh scheduler, and is
// the only writer of all of them.
type Manager struct {
	api        authapi.API
	persisted  persist.Repo
	navigator  Navigator
	locator    Locator
	creds      *credentials.Store
	workspaces *workspace.Store
	intents    *intent.Repo
	scheduler  *refresh.Scheduler
	init       *Initializer

	loginRoute   string
	landingRoute string
	intentTTL    time.Duration
	gate         HydrationGate
	refreshOpts  []refresh.Option
	lifetime     context.Context
	nowFunc      func() time.Time

	userMu sync.RWMutex
	user   authapi.User
}

type ManagerOption func(*Manager)

func WithRoutes(loginRoute, landingRoute string) ManagerOption {
	return func(m *Manager) {
		m.loginRoute = loginRoute
		m.landingRoute = landingRoute
	}
}

func WithIntentTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.intentTTL = ttl
	}
}

func WithHydrationGate(gate HydrationGate) ManagerOption {
	return func(m *Manager) {
		m.gate = gate
	}
}

func WithRefreshOptions(options ...refresh.Option) ManagerOption {
	return func(m *Manager) {
		m.refreshOpts = append(m.refreshOpts, options...)
	}
}

// WithContext bounds the lifetime of background work such as the refresh loop
func WithContext(ctx context.Context) ManagerOption {
	return func(m *Manager) {
		m.lifetime = ctx
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func NewManager(deps Deps, options ...ManagerOption) (*Manager, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("[NewManager] %w: API is required", apperrors.ErrInvalidRequest)
	}
	if deps.Persist == nil {
		return nil, fmt.Errorf("[NewManager] %w: Persist is required", apperrors.ErrInvalidRequest)
	}

	m := &Manager{
		api:       deps.API,
		persisted: deps.Persist,
		navigator: deps.Navigator,
		locator:   deps.Locator,
	}
	for _, opt := range options {
		opt(m)
	}

	if m.loginRoute == "" {
		m.loginRoute = DefaultLoginRoute
	}
	if m.landingRoute == "" {
		m.landingRoute = DefaultLandingRoute
	}
	if m.navigator == nil {
		m.navigator = logNavigator{}
	}
	if m.locator == nil {
		landing := m.landingRoute
		m.locator = LocatorFunc(func() string { return landing })
	}
	if m.gate == nil {
		m.gate = immediateGate{}
	}
	if m.lifetime == nil {
		m.lifetime = context.Background()
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}

	m.workspaces = workspace.NewStore()
	m.creds = credentials.NewStore(m.workspaces, credentials.WithNowFunc(m.nowFunc))
	m.intents = intent.NewRepo(m.persisted,
		intent.WithTTL(m.intentTTL),
		intent.WithFallbackPath(m.landingRoute),
		intent.WithNowFunc(m.nowFunc),
	)
	refreshOpts := append([]refresh.Option{refresh.WithNowFunc(m.nowFunc)}, m.refreshOpts...)
	m.scheduler = refresh.New(m.creds, refresh.RefresherFunc(m.refreshToken), m.ExpireSession, refreshOpts...)
	m.init = newInitializer(m, m.gate)

	m.workspaces.OnChange(func(ctx workspace.Context, ok bool) {
		if ok {
			log.Info().Str("workspace_id", ctx.ID).Str("role", string(ctx.Role)).Msg("active workspace changed")
		} else {
			log.Info().Msg("active workspace cleared")
		}
	})
	return m, nil
}

func (m *Manager) Credentials() *credentials.Store { return m.creds }
func (m *Manager) Workspace() workspace.View       { return m.workspaces }
func (m *Manager) Intents() *intent.Repo           { return m.intents }
func (m *Manager) Scheduler() *refresh.Scheduler   { return m.scheduler }
func (m *Manager) Initializer() *Initializer       { return m.init }
func (m *Manager) LoginRoute() string              { return m.loginRoute }
func (m *Manager) LandingRoute() string            { return m.landingRoute }

func (m *Manager) User() authapi.User {
	m.userMu.RLock()
	defer m.userMu.RUnlock()
	return m.user
}

func (m *Manager) setUser(u authapi.User) {
	if u.Email == "" && u.ID == "" {
		if c, ok := m.creds.Claims(); ok {
			u = authapi.User{ID: c.Subject, Email: c.Email}
		}
	}
	m.userMu.Lock()
	defer m.userMu.Unlock()
	m.user = u
}

// Login authenticates with credentials and starts watching the token.
func (m *Manager) Login(ctx context.Context, email, password string, rememberMe bool) error {
	m.creds.SetLoading(true)
	defer m.creds.SetLoading(false)

	resp, err := m.api.Login(ctx, authapi.LoginRequest{Email: email, Password: password, RememberMe: rememberMe})
	if err != nil {
		return fmt.Errorf("[Manager Login] %w", err)
	}

	m.creds.SetToken(resp.Tokens.AccessToken, resp.Tokens.Lifetime())
	m.creds.MarkInitialized()
	m.setUser(resp.User)
	m.scheduler.Start(m.lifetime)

	log.Info().Str("email", email).Msg("operator logged in")
	return nil
}

// CompleteLogin decides where to go after a successful login. It consumes the
// captured intent and, when the intent (or the persisted state) names a workspace,
// restores that workspace before returning, so the destination never renders with
// the wrong tenant. The returned target falls back to the landing route.
func (m *Manager) CompleteLogin(ctx context.Context) (string, error) {
	if !m.creds.IsAuthenticated() {
		return "", fmt.Errorf("[Manager CompleteLogin] %w", apperrors.ErrNotAuthenticated)
	}

	in, err := m.intents.Consume(ctx)
	switch {
	case apperrors.Is(err, apperrors.ErrIntentExpired):
		log.Info().Err(err).Msg("discarding expired auth intent")
	case err != nil:
		log.Warn().Err(err).Msg("could not read auth intent")
	}

	target := m.landingRoute
	workspaceID := ""
	fromIntent := false
	if in != nil {
		target = in.Path
		workspaceID = in.WorkspaceID
		fromIntent = workspaceID != ""
	}
	if workspaceID == "" && m.workspaces.ID() == "" {
		workspaceID = m.persistedWorkspaceID(ctx)
	}

	if workspaceID != "" && workspaceID != m.workspaces.ID() {
		if _, err := m.SwitchWorkspace(ctx, workspaceID); err != nil {
			log.Warn().Err(err).Str("workspace_id", workspaceID).Bool("from_intent", fromIntent).Msg("could not restore workspace after login")
			if !apperrors.Is(err, apperrors.ErrStaleResponse) {
				m.forgetPersistedWorkspace(ctx, workspaceID)
			}
		}
	}
	return target, nil
}

// SwitchWorkspace makes workspaceID the active workspace once the backend confirms
// membership. On failure the current workspace is left untouched.
func (m *Manager) SwitchWorkspace(ctx context.Context, workspaceID string) (workspace.Context, error) {
	if !m.creds.IsAuthenticated() {
		return workspace.Context{}, fmt.Errorf("[Manager SwitchWorkspace] %w", apperrors.ErrNotAuthenticated)
	}
	gen := m.workspaces.Begin()
	wsCtx, err := m.confirmWorkspace(ctx, gen, workspaceID)
	if err != nil {
		return workspace.Context{}, fmt.Errorf("[Manager SwitchWorkspace] %w", err)
	}
	return wsCtx, nil
}

// confirmWorkspace asks the backend about workspaceID and commits the answer if gen is
// still the latest attempt. It then persists the id and rescopes the token.
func (m *Manager) confirmWorkspace(ctx context.Context, gen uint64, workspaceID string) (workspace.Context, error) {
	resp, err := m.api.SwitchWorkspace(ctx, workspaceID)
	if !m.workspaces.IsLatest(gen) {
		return workspace.Context{}, apperrors.ErrStaleResponse
	}
	if err != nil {
		return workspace.Context{}, err
	}

	wsCtx := workspace.NewContext(
		resp.Workspace.ID,
		resp.Workspace.Name,
		resp.Workspace.Type,
		resp.Workspace.Status,
		workspace.RoleType(resp.Membership.Role),
		resp.Membership.Permissions,
		resp.Membership.IsDefault,
	)
	if wsCtx.ID == "" {
		wsCtx.ID = workspaceID
	}
	if !m.workspaces.Commit(gen, wsCtx) {
		return workspace.Context{}, apperrors.ErrStaleResponse
	}

	if err := m.persisted.Set(ctx, persist.KeyCurrentWorkspaceID, wsCtx.ID); err != nil {
		log.Warn().Err(err).Msg("could not persist current workspace id")
	}

	// The scheduler's refresher scopes to whichever workspace is current when it runs,
	// so waiting behind an in-flight refresh still ends with a token for this one.
	if err := m.scheduler.RefreshNow(ctx); err != nil {
		log.Warn().Err(err).Str("workspace_id", wsCtx.ID).Msg("could not rescope token to workspace")
	}
	return wsCtx, nil
}

// Logout ends the session on the backend and locally.
func (m *Manager) Logout(ctx context.Context) error {
	m.scheduler.Stop()
	if err := m.api.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
	}

	m.creds.Clear()
	m.workspaces.Clear()
	m.setUser(authapi.User{})
	if err := m.persisted.Delete(ctx, persist.KeyCurrentWorkspaceID); err != nil {
		log.Warn().Err(err).Msg("could not clear persisted workspace id")
	}
	if err := m.intents.Clear(ctx); err != nil {
		log.Warn().Err(err).Msg("could not clear auth intent")
	}
	log.Info().Msg("operator logged out")
	return nil
}

// ExpireSession is the forced logout after an irrecoverable refresh failure. The order
// matters: the intent is captured while the workspace is still known, then the
// credentials are cleared, then the operator is sent to log in again.
func (m *Manager) ExpireSession(ctx context.Context, cause error) {
	path := m.locator.CurrentPath()
	workspaceID := m.workspaces.ID()

	if _, err := m.intents.Capture(ctx, path, workspaceID); err != nil {
		log.Error().Err(err).Msg("could not capture auth intent before logout")
	}

	m.scheduler.Stop()
	m.creds.Clear()
	m.workspaces.Clear()

	log.Warn().Err(cause).Str("path", path).Str("workspace_id", workspaceID).Msg("session expired")
	m.navigator.Navigate(m.loginRoute + "?expired=true")
}

func (m *Manager) refreshToken(ctx context.Context) (*authapi.TokenSet, error) {
	return m.api.Refresh(ctx, m.workspaces.ID())
}

func (m *Manager) persistedWorkspaceID(ctx context.Context) string {
	id, err := m.persisted.Get(ctx, persist.KeyCurrentWorkspaceID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Msg("could not read persisted workspace id")
		}
		return ""
	}
	return id
}

func (m *Manager) forgetPersistedWorkspace(ctx context.Context, workspaceID string) {
	if m.persistedWorkspaceID(ctx) != workspaceID {
		return
	}
	if err := m.persisted.Delete(ctx, persist.KeyCurrentWorkspaceID); err != nil {
		log.Warn().Err(err).Msg("could not clear persisted workspace id")
	}
}
