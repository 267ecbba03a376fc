package authapi

import (
	"context"
	"time"
)

// API is the set of backend calls the session layer depends on.
type API interface {
	// Login exchanges credentials for tokens. The backend also sets the httpOnly refresh cookie.
	Login(ctx context.Context, req LoginRequest) (*SessionResponse, error)
	// RestoreSession exchanges the refresh cookie for a fresh access token.
	RestoreSession(ctx context.Context) (*SessionResponse, error)
	// Refresh obtains a new access token, optionally scoped to a workspace.
	Refresh(ctx context.Context, workspaceID string) (*TokenSet, error)
	// SwitchWorkspace re-validates membership and returns the current role and permissions.
	SwitchWorkspace(ctx context.Context, workspaceID string) (*SwitchResponse, error)
	// Logout revokes the refresh cookie server side.
	Logout(ctx context.Context) error
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
}

type switchRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// TokenSet is the token shape shared by login, restore and refresh responses.
type TokenSet struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // Lifetime in seconds
	IDToken     string `json:"id_token,omitempty"`
}

func (t TokenSet) Lifetime() time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type SessionResponse struct {
	Success bool     `json:"success"`
	User    User     `json:"user"`
	Tokens  TokenSet `json:"tokens"`
	Error   string   `json:"error,omitempty"`
}

type WorkspaceInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type Membership struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsDefault   bool     `json:"is_default,omitempty"`
}

type SwitchResponse struct {
	Success    bool          `json:"success"`
	Workspace  WorkspaceInfo `json:"workspace"`
	Membership Membership    `json:"membership"`
	Error      string        `json:"error,omitempty"`
}
