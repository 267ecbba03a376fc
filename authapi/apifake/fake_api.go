package apifake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-console-session/authapi"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
)

var _ authapi.API = (*FakeAPI)(nil)

// Member describes the fake backend's answer for one workspace.
type Member struct {
	Workspace  authapi.WorkspaceInfo
	Membership authapi.Membership
}

// FakeAPI is an in-memory backend. Hooks run before a call returns and may block
// to hold a call "in flight".
type FakeAPI struct {
	lock sync.Mutex

	Users        map[string]string // email -> password
	HasSession   bool              // whether the refresh cookie is valid
	Members      map[string]Member // workspace id -> membership
	TokenLife    int               // seconds
	RefreshError error

	tokenSeq int
	calls    map[string]int
	log      []string

	BeforeRefresh func(ctx context.Context)
	BeforeSwitch  func(ctx context.Context, workspaceID string)
	BeforeRestore func(ctx context.Context)
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		Users:     make(map[string]string),
		Members:   make(map[string]Member),
		TokenLife: 900,
		calls:     make(map[string]int),
	}
}

// AddMember registers a workspace the fake user belongs to
func (f *FakeAPI) AddMember(id, name, role string, permissions ...string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Members[id] = Member{
		Workspace:  authapi.WorkspaceInfo{ID: id, Name: name, Type: "store", Status: "active"},
		Membership: authapi.Membership{Role: role, Permissions: permissions},
	}
}

// RevokeMember removes membership so later switches fail
func (f *FakeAPI) RevokeMember(id string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.Members, id)
}

func (f *FakeAPI) SetRefreshError(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.RefreshError = err
}

func (f *FakeAPI) SetHasSession(ok bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.HasSession = ok
}

// Calls returns how many times the named method was invoked
func (f *FakeAPI) Calls(method string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls[method]
}

// CallLog returns "Method:arg" entries in call order
func (f *FakeAPI) CallLog() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	out := make([]string, len(f.log))
	copy(out, f.log)
	return out
}

func (f *FakeAPI) record(method, arg string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls[method]++
	f.log = append(f.log, method+":"+arg)
}

func (f *FakeAPI) nextTokens() authapi.TokenSet {
	f.tokenSeq++
	return authapi.TokenSet{
		AccessToken: fmt.Sprintf("access-token-%d", f.tokenSeq),
		ExpiresIn:   f.TokenLife,
	}
}

func (f *FakeAPI) Login(_ context.Context, req authapi.LoginRequest) (*authapi.SessionResponse, error) {
	f.record("Login", req.Email)

	f.lock.Lock()
	defer f.lock.Unlock()
	password, ok := f.Users[req.Email]
	if !ok || password != req.Password {
		return nil, fmt.Errorf("[FakeAPI Login] %w", apperrors.ErrInvalidCredentials)
	}
	f.HasSession = true
	return &authapi.SessionResponse{
		Success: true,
		User:    authapi.User{ID: "user-" + req.Email, Email: req.Email},
		Tokens:  f.nextTokens(),
	}, nil
}

func (f *FakeAPI) RestoreSession(ctx context.Context) (*authapi.SessionResponse, error) {
	f.record("RestoreSession", "")
	if f.BeforeRestore != nil {
		f.BeforeRestore(ctx)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	if !f.HasSession {
		return nil, fmt.Errorf("[FakeAPI RestoreSession] %w", apperrors.ErrSessionRestoreFailed)
	}
	return &authapi.SessionResponse{Success: true, Tokens: f.nextTokens()}, nil
}

func (f *FakeAPI) Refresh(ctx context.Context, workspaceID string) (*authapi.TokenSet, error) {
	f.record("Refresh", workspaceID)
	if f.BeforeRefresh != nil {
		f.BeforeRefresh(ctx)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	if f.RefreshError != nil {
		return nil, fmt.Errorf("[FakeAPI Refresh] %w: %v", apperrors.ErrRefreshFailed, f.RefreshError)
	}
	if !f.HasSession {
		return nil, fmt.Errorf("[FakeAPI Refresh] %w", apperrors.ErrRefreshFailed)
	}
	tokens := f.nextTokens()
	return &tokens, nil
}

func (f *FakeAPI) SwitchWorkspace(ctx context.Context, workspaceID string) (*authapi.SwitchResponse, error) {
	f.record("SwitchWorkspace", workspaceID)
	if f.BeforeSwitch != nil {
		f.BeforeSwitch(ctx, workspaceID)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	m, ok := f.Members[workspaceID]
	if !ok {
		return nil, fmt.Errorf("[FakeAPI SwitchWorkspace] %w: %v", apperrors.ErrWorkspaceSwitchFailed, errors.New("not a member"))
	}
	return &authapi.SwitchResponse{Success: true, Workspace: m.Workspace, Membership: m.Membership}, nil
}

func (f *FakeAPI) Logout(_ context.Context) error {
	f.record("Logout", "")
	f.lock.Lock()
	defer f.lock.Unlock()
	f.HasSession = false
	return nil
}
