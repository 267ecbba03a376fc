package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-console-session/authapi/apifake"
	"github.com/jrsteele09/go-console-session/internal/config"
	"github.com/jrsteele09/go-console-session/persist"
	"github.com/jrsteele09/go-console-session/server"
	"github.com/jrsteele09/go-console-session/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ops@example.com"
	testPassword = "hunter2"
)

type testFixture struct {
	ctx        context.Context
	api        *apifake.FakeAPI
	navigation *server.Navigation
	manager    *session.Manager
	server     *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")

	f := &testFixture{
		ctx:        context.Background(),
		api:        apifake.NewFakeAPI(),
		navigation: server.NewNavigation(session.DefaultLandingRoute),
	}
	f.api.Users[testEmail] = testPassword

	m, err := session.NewManager(session.Deps{
		API:       f.api,
		Persist:   persist.NewInMemoryRepo(),
		Navigator: f.navigation,
		Locator:   f.navigation,
	})
	require.NoError(t, err)
	t.Cleanup(m.Scheduler().Stop)
	f.manager = m

	f.server, err = server.New(config.New(), m, f.navigation)
	require.NoError(t, err)
	return f
}

func (f *testFixture) initialise(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.Initializer().Run(f.ctx))
}

func (f *testFixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	return rec
}

func (f *testFixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (f *testFixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.do(r)
}

func (f *testFixture) login(t *testing.T) *httptest.ResponseRecorder {
	t.Helper()
	rec := f.postForm("/login", url.Values{"email": {testEmail}, "password": {testPassword}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.True(t, f.manager.Credentials().IsAuthenticated())
	return rec
}

func TestServer_LoadingUntilInitialised(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get("/dashboard")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), "Loading your session")
}

func TestServer_ProtectedPageRedirectsToLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)

	rec := f.get("/orders/123?tab=notes")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?next=%2Forders%2F123%3Ftab%3Dnotes", rec.Header().Get("Location"))

	in, err := f.manager.Intents().Peek(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, in)
	require.Equal(t, "/orders/123?tab=notes", in.Path)
}

func TestServer_LoginReturnsToIntentInWorkspace(t *testing.T) {
	f := setupTestFixture(t)
	f.api.AddMember("ws_7", "Dockside", "admin")
	f.initialise(t)
	_, err := f.manager.Intents().Capture(f.ctx, "/orders/123?tab=notes", "ws_7")
	require.NoError(t, err)

	rec := f.login(t)
	require.Equal(t, "/orders/123?tab=notes", rec.Header().Get("Location"))
	require.Equal(t, "ws_7", f.manager.Workspace().ID())

	page := f.get("/orders/123?tab=notes")
	require.Equal(t, http.StatusOK, page.Code)
	require.Contains(t, page.Body.String(), `data-workspace-id="ws_7"`)
}

func TestServer_LoginWithoutIntentGoesToLanding(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)

	rec := f.login(t)
	require.Equal(t, session.DefaultLandingRoute, rec.Header().Get("Location"))
}

func TestServer_InvalidLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)

	rec := f.postForm("/login", url.Values{"email": {testEmail}, "password": {"nope"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?error=Invalid+email+or+password&email=ops%40example.com", rec.Header().Get("Location"))
	require.False(t, f.manager.Credentials().IsAuthenticated())

	rec = f.postForm("/login", url.Values{"email": {testEmail}})
	require.Equal(t, "/login?error=Email+and+password+are+required&email=ops%40example.com", rec.Header().Get("Location"))
	require.Equal(t, 1, f.api.Calls("Login"))
}

func TestServer_InvalidLoginHTMX(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)

	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.c&password=x"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("HX-Request", "true")
	rec := f.do(r)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Contains(t, rec.Header().Get("HX-Redirect"), "/login?error=")
}

func TestServer_LoginPage(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)

	rec := f.get("/login")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "Your session has expired")

	rec = f.get("/login?expired=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Your session has expired")
	require.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	f.login(t)
	rec = f.get("/login")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, session.DefaultLandingRoute, rec.Header().Get("Location"))
}

func TestServer_ForcedLogoutRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	f.api.AddMember("ws_7", "Dockside", "admin")
	f.initialise(t)
	f.login(t)
	_, err := f.manager.SwitchWorkspace(f.ctx, "ws_7")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, f.get("/orders/123?tab=notes").Code)

	f.manager.ExpireSession(f.ctx, errors.New("refresh token revoked"))

	rec := f.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login?expired=true", rec.Header().Get("Location"))

	in, err := f.manager.Intents().Peek(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, in)
	require.Equal(t, "/orders/123?tab=notes", in.Path)
	require.Equal(t, "ws_7", in.WorkspaceID)

	rec = f.login(t)
	require.Equal(t, "/orders/123?tab=notes", rec.Header().Get("Location"))
	require.Equal(t, "ws_7", f.manager.Workspace().ID())
	require.Equal(t, http.StatusOK, f.get("/dashboard").Code)
}

func TestServer_PermissionDenied(t *testing.T) {
	f := setupTestFixture(t)
	f.api.AddMember("ws_9", "Limited", "custom", "orders:read")
	f.initialise(t)
	f.login(t)
	_, err := f.manager.SwitchWorkspace(f.ctx, "ws_9")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, f.get("/orders/").Code)

	rec := f.get("/products/")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "does not allow access to Products")
}

func TestServer_NoWorkspacePrompt(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)
	f.login(t)

	rec := f.get("/customers/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Choose a workspace")
}

func TestServer_RootRedirect(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)
	f.login(t)

	rec := f.get("/")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, session.DefaultLandingRoute, rec.Header().Get("Location"))
}

func TestServer_SwitchWorkspace(t *testing.T) {
	f := setupTestFixture(t)
	f.api.AddMember("ws_1", "Main Street", "staff")
	f.initialise(t)

	rec := f.postForm("/workspaces/switch", url.Values{"workspace_id": {"ws_1"}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	f.login(t)
	rec = f.postForm("/workspaces/switch", url.Values{"workspace_id": {"ws_1"}, "return_to": {"/orders/?page=2"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/orders/?page=2", rec.Header().Get("Location"))
	require.Equal(t, "ws_1", f.manager.Workspace().ID())

	rec = f.postForm("/workspaces/switch", url.Values{"workspace_id": {"ws_gone"}, "return_to": {"https://evil.example.com"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard?error=Could+not+switch+workspace", rec.Header().Get("Location"))
	require.Equal(t, "ws_1", f.manager.Workspace().ID())
}

func TestServer_Logout(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)
	f.login(t)

	rec := f.postForm("/logout", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
	require.False(t, f.manager.Credentials().IsAuthenticated())
	require.Equal(t, 1, f.api.Calls("Logout"))
}

func TestServer_Signal(t *testing.T) {
	f := setupTestFixture(t)
	f.initialise(t)

	r := httptest.NewRequest(http.MethodPost, "/api/session/signal", strings.NewReader(`{"signal":"visible"}`))
	r.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusNoContent, f.do(r).Code)

	rec := f.postForm("/api/session/signal", url.Values{"signal": {"activity"}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.postForm("/api/session/signal", url.Values{"signal": {"scroll"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SessionSnapshotAndHealth(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"phase":"hydrating"`)

	f.initialise(t)
	f.login(t)

	r := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	r.Header.Set("Origin", "http://localhost:8080")
	rec = f.do(r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.True(t, snap.Authenticated)
	require.Equal(t, "ready", snap.Phase)
	require.Equal(t, testEmail, snap.User.Email)
}

func TestServer_BackendProxy(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/123", r.URL.Path)
		assert.Equal(t, "tab=notes", r.URL.RawQuery)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer access-token-"))
		assert.Equal(t, "ws_7", r.Header.Get("X-Workspace-ID"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"123"}`))
	}))
	defer backend.Close()
	t.Setenv("API_BASE_URL", backend.URL)

	f := setupTestFixture(t)
	f.api.AddMember("ws_7", "Dockside", "admin")
	f.initialise(t)

	rec := f.get("/api/backend/orders/123?tab=notes")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	f.login(t)
	_, err := f.manager.SwitchWorkspace(f.ctx, "ws_7")
	require.NoError(t, err)

	rec = f.get("/api/backend/orders/123?tab=notes")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"id":"123"}`, rec.Body.String())
}

func TestNavigation(t *testing.T) {
	n := server.NewNavigation("/dashboard")
	require.Equal(t, "/dashboard", n.CurrentPath())

	n.Navigate("/login?expired=true")
	require.Equal(t, "/dashboard", n.CurrentPath())
}
