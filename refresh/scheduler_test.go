package refresh_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-console-session/authapi"
	"github.com/jrsteele09/go-console-session/credentials"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/refresh"
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

type countingRefresher struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
	entered chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context) (*authapi.TokenSet, error) {
	r.calls.Add(1)
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	return &authapi.TokenSet{AccessToken: "refreshed", ExpiresIn: 900}, nil
}

type testFixture struct {
	clock     *testClock
	store     *credentials.Store
	refresher *countingRefresher
	failures  chan error
	scheduler *refresh.Scheduler
}

func setupTestFixture(t *testing.T, options ...refresh.Option) *testFixture {
	t.Helper()
	f := &testFixture{
		clock:     &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		refresher: &countingRefresher{},
		failures:  make(chan error, 4),
	}
	f.store = credentials.NewStore(nil, credentials.WithNowFunc(f.clock.Now))
	options = append([]refresh.Option{refresh.WithNowFunc(f.clock.Now)}, options...)
	f.scheduler = refresh.New(f.store, f.refresher, func(_ context.Context, err error) {
		f.failures <- err
	}, options...)
	t.Cleanup(f.scheduler.Stop)
	return f
}

func TestScheduler_Threshold(t *testing.T) {
	t.Run("token expiring in 4 minutes is refreshed", func(t *testing.T) {
		f := setupTestFixture(t, refresh.WithThreshold(5*time.Minute))
		f.store.SetToken("original", 4*time.Minute)

		require.True(t, f.scheduler.CheckNow(context.Background()))
		require.EqualValues(t, 1, f.refresher.calls.Load())
		require.Equal(t, "refreshed", f.store.Snapshot().AccessToken)

		remaining, ok := f.store.TimeUntilExpiry()
		require.True(t, ok)
		require.Equal(t, 15*time.Minute, remaining)
	})

	t.Run("token expiring in 10 minutes is left alone", func(t *testing.T) {
		f := setupTestFixture(t, refresh.WithThreshold(5*time.Minute))
		f.store.SetToken("original", 10*time.Minute)

		require.False(t, f.scheduler.CheckNow(context.Background()))
		require.EqualValues(t, 0, f.refresher.calls.Load())
		require.Equal(t, "original", f.store.Snapshot().AccessToken)
	})

	t.Run("exactly at threshold is refreshed", func(t *testing.T) {
		f := setupTestFixture(t, refresh.WithThreshold(5*time.Minute))
		f.store.SetToken("original", 5*time.Minute)
		require.True(t, f.scheduler.CheckNow(context.Background()))
	})

	t.Run("unauthenticated is idle", func(t *testing.T) {
		f := setupTestFixture(t)
		require.False(t, f.scheduler.CheckNow(context.Background()))
		require.EqualValues(t, 0, f.refresher.calls.Load())
	})
}

func TestScheduler_SingleRefreshInFlight(t *testing.T) {
	f := setupTestFixture(t)
	f.refresher.release = make(chan struct{})
	f.refresher.entered = make(chan struct{}, 1)
	f.store.SetToken("original", time.Minute)

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.scheduler.CheckNow(ctx)
	}()

	<-f.refresher.entered
	require.Equal(t, refresh.StateRefreshing, f.scheduler.State())

	// Triggers arriving while a refresh is in flight are dropped, not queued.
	require.False(t, f.scheduler.CheckNow(ctx))
	require.False(t, f.scheduler.CheckNow(ctx))

	close(f.refresher.release)
	wg.Wait()

	require.EqualValues(t, 1, f.refresher.calls.Load())
	require.Equal(t, "refreshed", f.store.Snapshot().AccessToken)
}

func TestScheduler_RefreshNowIgnoresThreshold(t *testing.T) {
	f := setupTestFixture(t)
	f.store.SetToken("original", time.Hour)

	require.NoError(t, f.scheduler.RefreshNow(context.Background()))
	require.EqualValues(t, 1, f.refresher.calls.Load())
	require.Equal(t, "refreshed", f.store.Snapshot().AccessToken)
	require.Equal(t, refresh.StateIdle, f.scheduler.State())
}

func TestScheduler_RefreshNowRequiresSession(t *testing.T) {
	f := setupTestFixture(t)
	require.ErrorIs(t, f.scheduler.RefreshNow(context.Background()), apperrors.ErrNotAuthenticated)
	require.Zero(t, f.refresher.calls.Load())
}

func TestScheduler_RefreshNowWaitsForInFlightCheck(t *testing.T) {
	f := setupTestFixture(t)
	f.refresher.release = make(chan struct{})
	f.refresher.entered = make(chan struct{}, 1)
	f.store.SetToken("original", time.Minute)

	ctx := context.Background()
	checked := make(chan bool, 1)
	go func() {
		checked <- f.scheduler.CheckNow(ctx)
	}()
	<-f.refresher.entered

	forced := make(chan error, 1)
	go func() {
		forced <- f.scheduler.RefreshNow(ctx)
	}()
	require.Never(t, func() bool { return f.refresher.calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	close(f.refresher.release)
	require.True(t, <-checked)
	require.NoError(t, <-forced)
	require.EqualValues(t, 2, f.refresher.calls.Load())
}

func TestScheduler_CheckDroppedWhileRefreshNowInFlight(t *testing.T) {
	f := setupTestFixture(t)
	f.refresher.release = make(chan struct{})
	f.refresher.entered = make(chan struct{}, 1)
	f.store.SetToken("original", time.Minute)

	ctx := context.Background()
	forced := make(chan error, 1)
	go func() {
		forced <- f.scheduler.RefreshNow(ctx)
	}()
	<-f.refresher.entered

	require.False(t, f.scheduler.CheckNow(ctx))
	close(f.refresher.release)
	require.NoError(t, <-forced)
	require.EqualValues(t, 1, f.refresher.calls.Load())
}

func TestScheduler_RefreshNowFailureKeepsSession(t *testing.T) {
	f := setupTestFixture(t, refresh.WithInterval(time.Hour))
	f.refresher.err = errors.New("backend unavailable")
	f.store.SetToken("original", time.Hour)
	f.scheduler.Start(context.Background())

	require.Error(t, f.scheduler.RefreshNow(context.Background()))
	require.Equal(t, "original", f.store.Snapshot().AccessToken)
	require.Equal(t, refresh.StateWatching, f.scheduler.State())
	require.Empty(t, f.failures)
}

func TestScheduler_FailureInvokesHandler(t *testing.T) {
	f := setupTestFixture(t)
	f.refresher.err = errors.New("backend unavailable")
	f.store.SetToken("original", time.Minute)

	require.False(t, f.scheduler.CheckNow(context.Background()))
	require.Equal(t, refresh.StateLoggedOut, f.scheduler.State())

	select {
	case err := <-f.failures:
		require.ErrorContains(t, err, "backend unavailable")
	default:
		t.Fatal("failure handler was not called")
	}
}

func TestScheduler_EmptyTokenIsFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.store.SetToken("original", time.Minute)
	s := refresh.New(f.store, refresh.RefresherFunc(func(context.Context) (*authapi.TokenSet, error) {
		return &authapi.TokenSet{}, nil
	}), func(_ context.Context, err error) { f.failures <- err })

	require.False(t, s.CheckNow(context.Background()))
	require.ErrorIs(t, <-f.failures, apperrors.ErrRefreshFailed)
}

func TestScheduler_StartRunsMountCheck(t *testing.T) {
	f := setupTestFixture(t, refresh.WithInterval(time.Hour))
	f.store.SetToken("original", time.Minute)

	f.scheduler.Start(context.Background())
	require.Eventually(t, func() bool {
		return f.refresher.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.scheduler.State() == refresh.StateWatching
	}, time.Second, 5*time.Millisecond)

	f.scheduler.Stop()
	<-f.scheduler.Done()
	require.Equal(t, refresh.StateIdle, f.scheduler.State())
}

func TestScheduler_IntervalTicks(t *testing.T) {
	f := setupTestFixture(t, refresh.WithInterval(10*time.Millisecond), refresh.WithThreshold(time.Minute))
	f.store.SetToken("original", time.Hour)

	f.scheduler.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 0, f.refresher.calls.Load())

	// Simulate a laptop waking up close to expiry; the next tick catches it.
	f.clock.Advance(59*time.Minute + 30*time.Second)
	require.Eventually(t, func() bool {
		return f.refresher.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_VisibilitySignal(t *testing.T) {
	f := setupTestFixture(t, refresh.WithInterval(time.Hour))
	f.store.SetToken("original", time.Hour)
	f.scheduler.Start(context.Background())

	f.clock.Advance(58 * time.Minute)
	f.scheduler.Notify(refresh.SignalVisible)
	require.Eventually(t, func() bool {
		return f.refresher.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_ActivityThrottle(t *testing.T) {
	f := setupTestFixture(t, refresh.WithInterval(time.Hour), refresh.WithActivityThrottle(30*time.Second))
	var checks atomic.Int32
	s := refresh.New(f.store, refresh.RefresherFunc(func(context.Context) (*authapi.TokenSet, error) {
		checks.Add(1)
		// Keep the token close to expiry so every accepted signal refreshes.
		return &authapi.TokenSet{AccessToken: "refreshed", ExpiresIn: 60}, nil
	}), nil, refresh.WithNowFunc(f.clock.Now), refresh.WithInterval(time.Hour), refresh.WithActivityThrottle(30*time.Second))
	t.Cleanup(s.Stop)

	f.store.SetToken("original", 2*time.Hour)
	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond) // mount check: token far from expiry
	f.store.SetToken("original", time.Minute)

	s.Notify(refresh.SignalActivity)
	require.Eventually(t, func() bool { return checks.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Within the throttle window further activity is coalesced away.
	for i := 0; i < 5; i++ {
		s.Notify(refresh.SignalActivity)
	}
	time.Sleep(30 * time.Millisecond)
	require.EqualValues(t, 1, checks.Load())

	f.clock.Advance(31 * time.Second)
	s.Notify(refresh.SignalActivity)
	require.Eventually(t, func() bool { return checks.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopDiscardsInFlightResult(t *testing.T) {
	f := setupTestFixture(t, refresh.WithInterval(time.Hour))
	f.refresher.release = make(chan struct{})
	f.refresher.entered = make(chan struct{}, 1)
	f.store.SetToken("original", time.Minute)

	f.scheduler.Start(context.Background())
	<-f.refresher.entered

	f.scheduler.Stop()
	close(f.refresher.release)
	<-f.scheduler.Done()

	require.Equal(t, "original", f.store.Snapshot().AccessToken)
	require.Equal(t, refresh.StateIdle, f.scheduler.State())
}

func TestScheduler_NotifyWhenStoppedIsIgnored(t *testing.T) {
	f := setupTestFixture(t)
	f.store.SetToken("original", time.Minute)
	f.scheduler.Notify(refresh.SignalVisible)
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 0, f.refresher.calls.Load())
	require.Equal(t, refresh.StateIdle, f.scheduler.State())
}

func TestStateAndSignalStrings(t *testing.T) {
	require.Equal(t, "refreshing", refresh.StateRefreshing.String())
	require.Equal(t, "activity", refresh.SignalActivity.String())
}
