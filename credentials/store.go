package credentials

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/workspace"
	"golang.org/x/oauth2"
)

const (
	// HeaderWorkspaceID carries the active workspace on authorized API requests
	HeaderWorkspaceID = "X-Workspace-ID"
	tokenTypeBearer   = "Bearer"
)

// Credential is a point in time copy of the store's state
type Credential struct {
	AccessToken     string
	ExpiresAt       time.Time
	IsAuthenticated bool
	IsInitialized   bool
	IsLoading       bool
}

// Store is the single source of truth for whether the console holds a usable access token.
// It never navigates or calls the network; callers decide what to do with its answers.
type Store struct {
	mu         sync.RWMutex
	cred       Credential
	workspaces *workspace.Store
	nowFunc    func() time.Time
}

var _ oauth2.TokenSource = (*Store)(nil)

type StoreOption func(*Store)

func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// NewStore creates a credential store whose workspace view is backed by the given record.
// A nil record gets a private one.
func NewStore(workspaces *workspace.Store, options ...StoreOption) *Store {
	if workspaces == nil {
		workspaces = workspace.NewStore()
	}
	s := &Store{workspaces: workspaces}
	for _, opt := range options {
		opt(s)
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	return s
}

// SetToken stores the token and derives its absolute expiry from the server declared lifetime.
func (s *Store) SetToken(token string, expiresIn time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.AccessToken = token
	s.cred.ExpiresAt = s.nowFunc().Add(expiresIn)
	s.cred.IsAuthenticated = true
}

// Clear drops the token. Initialisation state is kept: a cleared store is a confirmed logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.AccessToken = ""
	s.cred.ExpiresAt = time.Time{}
	s.cred.IsAuthenticated = false
}

func (s *Store) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.IsInitialized = true
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred.IsLoading = loading
}

// IsTokenExpired is evaluated lazily against the clock. The expiry instant itself counts as expired.
func (s *Store) IsTokenExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred.AccessToken == "" {
		return true
	}
	return !s.nowFunc().Before(s.cred.ExpiresAt)
}

// TimeUntilExpiry returns ok=false when no token is held. The duration may be negative.
func (s *Store) TimeUntilExpiry() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred.AccessToken == "" {
		return 0, false
	}
	return s.cred.ExpiresAt.Sub(s.nowFunc()), true
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.IsAuthenticated
}

func (s *Store) Snapshot() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// SetWorkspace writes through to the shared workspace record.
func (s *Store) SetWorkspace(ctx workspace.Context) {
	s.workspaces.Set(ctx)
}

func (s *Store) Workspace() (workspace.Context, bool) {
	return s.workspaces.Current()
}

// Token implements oauth2.TokenSource so authorized clients always send the current token.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred.AccessToken == "" || !s.nowFunc().Before(s.cred.ExpiresAt) {
		return nil, fmt.Errorf("[Store Token] %w", apperrors.ErrNotAuthenticated)
	}
	return &oauth2.Token{
		AccessToken: s.cred.AccessToken,
		TokenType:   tokenTypeBearer,
		Expiry:      s.cred.ExpiresAt,
	}, nil
}

// AuthHeaders returns the headers an authorized request should carry.
func (s *Store) AuthHeaders() http.Header {
	h := http.Header{}
	if tok, err := s.Token(); err == nil {
		tok.SetAuthHeader(&http.Request{Header: h})
	}
	if id := s.workspaces.ID(); id != "" {
		h.Set(HeaderWorkspaceID, id)
	}
	return h
}
