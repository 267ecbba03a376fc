package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/persist"
	"github.com/rs/zerolog/log"
)

// DefaultTTL bounds how long an unconsumed intent remains usable
const DefaultTTL = 30 * time.Minute

// AuthIntent records where the operator was heading when they were sent to log in.
type AuthIntent struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	WorkspaceID string    `json:"workspace_id,omitempty"` // Empty when no workspace was active
	CapturedAt  time.Time `json:"captured_at"`
}

// Repo keeps at most one AuthIntent in the persisted key-value area.
type Repo struct {
	store        persist.Repo
	ttl          time.Duration
	fallbackPath string
	nowFunc      func() time.Time
}

type RepoOption func(*Repo)

func WithTTL(ttl time.Duration) RepoOption {
	return func(r *Repo) {
		r.ttl = ttl
	}
}

// WithFallbackPath is stored instead of paths that do not stay on the console
func WithFallbackPath(path string) RepoOption {
	return func(r *Repo) {
		r.fallbackPath = path
	}
}

func WithNowFunc(now func() time.Time) RepoOption {
	return func(r *Repo) {
		r.nowFunc = now
	}
}

func NewRepo(store persist.Repo, options ...RepoOption) *Repo {
	r := &Repo{store: store}
	for _, opt := range options {
		opt(r)
	}
	if r.ttl <= 0 {
		r.ttl = DefaultTTL
	}
	if r.fallbackPath == "" {
		r.fallbackPath = "/"
	}
	if r.nowFunc == nil {
		r.nowFunc = time.Now
	}
	return r
}

// Capture stores a new intent, replacing any previous one.
func (r *Repo) Capture(ctx context.Context, path, workspaceID string) (*AuthIntent, error) {
	in := &AuthIntent{
		ID:          uuid.New().String(),
		Path:        SanitizePath(path, r.fallbackPath),
		WorkspaceID: workspaceID,
		CapturedAt:  r.nowFunc(),
	}

	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("[intent.Repo Capture] encode: %w", err)
	}
	if err := r.store.Set(ctx, persist.KeyAuthIntent, string(data)); err != nil {
		return nil, fmt.Errorf("[intent.Repo Capture] %w", err)
	}

	log.Debug().Str("intent_id", in.ID).Str("path", in.Path).Str("workspace_id", in.WorkspaceID).Msg("auth intent captured")
	return in, nil
}

// Peek returns the stored intent without consuming it. (nil, nil) when none exists.
func (r *Repo) Peek(ctx context.Context) (*AuthIntent, error) {
	raw, err := r.store.Get(ctx, persist.KeyAuthIntent)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[intent.Repo Peek] %w", err)
	}

	var in AuthIntent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("[intent.Repo Peek] decode: %w", err)
	}
	return &in, nil
}

// Consume takes the stored intent out of the store in one step, so concurrent
// callers never both receive it. (nil, nil) when none exists. An intent older than
// the TTL is removed and reported as ErrIntentExpired.
func (r *Repo) Consume(ctx context.Context) (*AuthIntent, error) {
	raw, err := r.store.Take(ctx, persist.KeyAuthIntent)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[intent.Repo Consume] %w", err)
	}

	var in AuthIntent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("[intent.Repo Consume] decode: %w", err)
	}

	if age := r.nowFunc().Sub(in.CapturedAt); age > r.ttl {
		return nil, fmt.Errorf("[intent.Repo Consume] %s captured %s ago: %w", in.ID, age, apperrors.ErrIntentExpired)
	}
	return &in, nil
}

// Clear removes any stored intent
func (r *Repo) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, persist.KeyAuthIntent)
}

// SanitizePath keeps only same-origin relative paths (with query and fragment).
// Anything else, including protocol-relative "//host" forms, becomes fallback.
func SanitizePath(path, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return fallback
	}
	u, err := url.Parse(path)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return path
}
