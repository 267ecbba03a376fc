package authapi

import (
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

// WorkspaceIDFunc returns the active workspace id, or "" when none is active
type WorkspaceIDFunc func() string

type workspaceTransport struct {
	base        http.RoundTripper
	workspaceID WorkspaceIDFunc
	header      string
}

func (t *workspaceTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	id := t.workspaceID()
	if id == "" {
		return t.base.RoundTrip(r)
	}
	clone := r.Clone(r.Context())
	clone.Header.Set(t.header, id)
	return t.base.RoundTrip(clone)
}

// NewAuthorizedClient returns an http.Client that sends the current access token and the
// active workspace id on every request. The token source is consulted per request, so a
// refreshed token is picked up immediately. Requests fail when no valid token is held.
func NewAuthorizedClient(ts oauth2.TokenSource, workspaceID WorkspaceIDFunc, workspaceHeader string) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base: &workspaceTransport{
				base:        cleanhttp.DefaultPooledTransport(),
				workspaceID: workspaceID,
				header:      workspaceHeader,
			},
		},
	}
}
