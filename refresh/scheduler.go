package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-console-session/authapi"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultInterval         = time.Minute
	DefaultThreshold        = 5 * time.Minute
	DefaultActivityThrottle = 30 * time.Second
)

// State of a scheduler
type State int32

const (
	StateIdle State = iota
	StateWatching
	StateRefreshing
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateRefreshing:
		return "refreshing"
	case StateLoggedOut:
		return "logged_out"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Signal is a reason to check the token now instead of waiting for the next tick
type Signal int

const (
	SignalTick Signal = iota
	SignalMount
	SignalVisible
	SignalActivity
)

func (s Signal) String() string {
	switch s {
	case SignalTick:
		return "tick"
	case SignalMount:
		return "mount"
	case SignalVisible:
		return "visible"
	case SignalActivity:
		return "activity"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// TokenStore is the part of the credential store the scheduler reads and writes
type TokenStore interface {
	IsAuthenticated() bool
	TimeUntilExpiry() (time.Duration, bool)
	SetToken(token string, expiresIn time.Duration)
}

// Refresher obtains a new access token
type Refresher interface {
	Refresh(ctx context.Context) (*authapi.TokenSet, error)
}

// RefresherFunc adapts a function to Refresher
type RefresherFunc func(ctx context.Context) (*authapi.TokenSet, error)

func (f RefresherFunc) Refresh(ctx context.Context) (*authapi.TokenSet, error) {
	return f(ctx)
}

// FailureFunc handles an irrecoverable refresh failure, typically by logging the user out
type FailureFunc func(ctx context.Context, err error)

// Scheduler keeps the access token from expiring while the console is in use.
// Checks run on a fixed interval and whenever Notify reports visibility, activity or mount.
// At most one refresh is in flight. Triggers arriving meanwhile are dropped while
// RefreshNow waits its turn.
type Scheduler struct {
	store     TokenStore
	refresher Refresher
	onFailure FailureFunc

	interval  time.Duration
	threshold time.Duration
	throttle  time.Duration
	nowFunc   func() time.Time

	state     atomic.Int32
	refreshMu sync.Mutex
	epoch     atomic.Uint64

	activityMu sync.Mutex
	activity   *rate.Limiter

	mu      sync.Mutex
	signals chan Signal
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Scheduler)

func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = interval
	}
}

// WithThreshold sets how close to expiry a token may get before it is refreshed
func WithThreshold(threshold time.Duration) Option {
	return func(s *Scheduler) {
		s.threshold = threshold
	}
}

// WithActivityThrottle coalesces activity signals to at most one per period
func WithActivityThrottle(throttle time.Duration) Option {
	return func(s *Scheduler) {
		s.throttle = throttle
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

func New(store TokenStore, refresher Refresher, onFailure FailureFunc, options ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		refresher: refresher,
		onFailure: onFailure,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	if s.throttle <= 0 {
		s.throttle = DefaultActivityThrottle
	}
	if s.nowFunc == nil {
		s.nowFunc = time.Now
	}
	if s.onFailure == nil {
		s.onFailure = func(context.Context, error) {}
	}
	s.activity = rate.NewLimiter(rate.Every(s.throttle), 1)
	return s
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Start begins watching. It performs the mount check straight away and then
// checks on every interval until Stop is called or ctx is done. Starting a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	s.epoch.Add(1)
	s.state.Store(int32(StateWatching))

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.signals = make(chan Signal, 1)

	go s.loop(loopCtx, s.signals, s.done)
	s.signals <- SignalMount
}

// Stop ends watching. It does not wait for the loop to exit, so it is safe to call
// from a failure handler. A refresh still in flight completes but its result is discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel, s.signals = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	s.epoch.Add(1)
	cancel()
	s.state.CompareAndSwap(int32(StateWatching), int32(StateIdle))
	s.state.CompareAndSwap(int32(StateRefreshing), int32(StateIdle))
}

// Done is closed when the most recently started loop exits. Nil before the first Start.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Notify reports a signal without blocking. Activity signals are throttled.
// Signals sent while the scheduler is not running are ignored.
func (s *Scheduler) Notify(sig Signal) {
	if sig == SignalActivity && !s.allowActivity() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signals == nil {
		return
	}
	select {
	case s.signals <- sig:
	default:
		// a check is already queued
	}
}

func (s *Scheduler) allowActivity() bool {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.activity.AllowN(s.nowFunc(), 1)
}

func (s *Scheduler) loop(ctx context.Context, signals <-chan Signal, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx, SignalTick)
		case sig := <-signals:
			s.check(ctx, sig)
		}
	}
}

// CheckNow runs one check synchronously and reports whether a refresh was performed.
func (s *Scheduler) CheckNow(ctx context.Context) bool {
	return s.check(ctx, SignalMount)
}

func (s *Scheduler) check(ctx context.Context, sig Signal) bool {
	if !s.store.IsAuthenticated() {
		return false
	}
	remaining, ok := s.store.TimeUntilExpiry()
	if !ok || remaining > s.threshold {
		return false
	}

	if !s.refreshMu.TryLock() {
		log.Debug().Stringer("signal", sig).Msg("refresh already in flight, dropping trigger")
		return false
	}
	defer s.refreshMu.Unlock()

	log.Debug().Stringer("signal", sig).Dur("remaining", remaining).Msg("refreshing access token")
	_, err := s.refreshLocked(ctx)
	if apperrors.Is(err, apperrors.ErrStaleResponse) {
		return false
	}
	if err != nil {
		s.state.Store(int32(StateLoggedOut))
		log.Warn().Err(err).Msg("silent refresh failed")
		s.onFailure(ctx, err)
		return false
	}
	s.state.Store(int32(StateWatching))
	return true
}

// RefreshNow refreshes regardless of the threshold, for example to re-scope the
// token after a workspace switch. It waits for any refresh already in flight
// instead of running beside it. A failure is returned to the caller and does not
// log the user out; the next scheduled check deals with a token that stays bad.
func (s *Scheduler) RefreshNow(ctx context.Context) error {
	if !s.store.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("[Scheduler RefreshNow] %w", err)
	}
	// the session may have ended while waiting for the lock
	if !s.store.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}

	previous, err := s.refreshLocked(ctx)
	s.state.CompareAndSwap(int32(StateRefreshing), int32(previous))
	if err != nil {
		return fmt.Errorf("[Scheduler RefreshNow] %w", err)
	}
	return nil
}

// refreshLocked performs one refresh and stores the new token. The caller holds
// refreshMu. ErrStaleResponse means the scheduler was started or stopped meanwhile
// and the result was discarded.
func (s *Scheduler) refreshLocked(ctx context.Context) (State, error) {
	epoch := s.epoch.Load()
	previous := State(s.state.Swap(int32(StateRefreshing)))

	tokens, err := s.refresher.Refresh(ctx)

	if epoch != s.epoch.Load() {
		log.Debug().Msg("discarding refresh result from a stopped scheduler")
		s.state.CompareAndSwap(int32(StateRefreshing), int32(previous))
		return previous, apperrors.ErrStaleResponse
	}

	if err == nil && (tokens == nil || tokens.AccessToken == "") {
		err = fmt.Errorf("%w: empty token in response", apperrors.ErrRefreshFailed)
	}
	if err != nil {
		return previous, err
	}

	s.store.SetToken(tokens.AccessToken, tokens.Lifetime())
	return previous, nil
}
