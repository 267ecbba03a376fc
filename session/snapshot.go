package session

import (
	"time"

	"github.com/jrsteele09/go-console-session/authapi"
	"github.com/jrsteele09/go-console-session/internal/utils"
)

type WorkspaceSnapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsDefault   bool     `json:"is_default"`
}

// Snapshot is a point-in-time view of the whole session, safe to serialise.
type Snapshot struct {
	Phase         string             `json:"phase"`
	Initialized   bool               `json:"initialized"`
	Loading       bool               `json:"loading"`
	Authenticated bool               `json:"authenticated"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	User          *authapi.User      `json:"user,omitempty"`
	Workspace     *WorkspaceSnapshot `json:"workspace,omitempty"`
	Refresh       string             `json:"refresh"`
}

func (m *Manager) Snapshot() Snapshot {
	creds := m.creds.Snapshot()
	snap := Snapshot{
		Phase:         m.init.Phase().String(),
		Initialized:   creds.IsInitialized,
		Loading:       creds.IsLoading,
		Authenticated: creds.IsAuthenticated,
		Refresh:       m.scheduler.State().String(),
	}
	if creds.IsAuthenticated {
		snap.ExpiresAt = utils.Ptr(creds.ExpiresAt)
		if u := m.User(); u.ID != "" || u.Email != "" {
			snap.User = utils.Ptr(u)
		}
	}
	if ws, ok := m.workspaces.Current(); ok {
		snap.Workspace = &WorkspaceSnapshot{
			ID:          ws.ID,
			Name:        ws.Name,
			Role:        string(ws.Role),
			Permissions: ws.PermissionList(),
			IsDefault:   ws.IsDefault,
		}
	}
	return snap
}
