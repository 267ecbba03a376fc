package session

import (
	"context"
	"net/url"

	"github.com/rs/zerolog/log"
)

type Outcome int

const (
	Allow Outcome = iota
	Pending
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the Guard's answer for one protected render
type Decision struct {
	Outcome  Outcome
	Location string // Set when Outcome is Redirect
}

// Guard decides whether a route may render. While start-up or a login is still in
// progress the answer is Pending. A denied protected route records where the operator
// was going, with the active workspace, before redirecting to the login route.
func (m *Manager) Guard(ctx context.Context, requireAuth bool, currentPath string) Decision {
	if !requireAuth {
		return Decision{Outcome: Allow}
	}

	snap := m.creds.Snapshot()
	if !m.init.IsReady() || !snap.IsInitialized || snap.IsLoading {
		return Decision{Outcome: Pending}
	}
	if snap.IsAuthenticated {
		return Decision{Outcome: Allow}
	}

	in, err := m.intents.Capture(ctx, currentPath, m.workspaces.ID())
	if err != nil {
		log.Warn().Err(err).Str("path", currentPath).Msg("could not capture auth intent")
		return Decision{Outcome: Redirect, Location: m.loginRoute}
	}
	return Decision{Outcome: Redirect, Location: m.loginRoute + "?next=" + url.QueryEscape(in.Path)}
}
