package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/authapi/apifake"
	"github.com/jrsteele09/go-console-session/persist"
	"github.com/jrsteele09/go-console-session/refresh"
	"github.com/jrsteele09/go-console-session/session"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
	onNav   func(target string)
}

func (n *recordingNavigator) Navigate(target string) {
	if n.onNav != nil {
		n.onNav(target)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *recordingNavigator) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.targets))
	copy(out, n.targets)
	return out
}

type testFixture struct {
	ctx       context.Context
	clock     *testClock
	api       *apifake.FakeAPI
	persisted *persist.InMemoryRepo
	navigator *recordingNavigator
	path      string
	manager   *session.Manager
}

const (
	testEmail    = "ops@example.com"
	testPassword = "hunter2"
)

func setupTestFixture(t *testing.T, options ...session.ManagerOption) *testFixture {
	t.Helper()
	f := &testFixture{
		ctx:       context.Background(),
		clock:     &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		api:       apifake.NewFakeAPI(),
		persisted: persist.NewInMemoryRepo(),
		navigator: &recordingNavigator{},
		path:      "/dashboard",
	}
	f.api.Users[testEmail] = testPassword

	options = append([]session.ManagerOption{
		session.WithNowFunc(f.clock.Now),
		session.WithRefreshOptions(refresh.WithInterval(time.Hour)),
	}, options...)

	m, err := session.NewManager(session.Deps{
		API:       f.api,
		Persist:   f.persisted,
		Navigator: f.navigator,
		Locator:   session.LocatorFunc(func() string { return f.path }),
	}, options...)
	require.NoError(t, err)
	f.manager = m
	t.Cleanup(m.Scheduler().Stop)
	return f
}

func (f *testFixture) initialise(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.Initializer().Run(f.ctx))
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.Login(f.ctx, testEmail, testPassword, false))
}

// settle gives the refresh loop time to run its mount check before the clock moves
func (f *testFixture) settle() {
	time.Sleep(20 * time.Millisecond)
}

func (f *testFixture) persistedWorkspace(t *testing.T) (string, bool) {
	t.Helper()
	id, err := f.persisted.Get(f.ctx, persist.KeyCurrentWorkspaceID)
	if err != nil {
		return "", false
	}
	return id, true
}

func (f *testFixture) requireSameWorkspace(t *testing.T, want string) {
	t.Helper()
	require.Equal(t, want, f.manager.Workspace().ID())
	ws, ok := f.manager.Credentials().Workspace()
	if want == "" {
		require.False(t, ok)
		return
	}
	require.True(t, ok)
	require.Equal(t, want, ws.ID)
}
