package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-console-session/internal/errors"
	"github.com/jrsteele09/go-console-session/internal/utils"
)

// Claims are read from the access token without verifying it. They are for display and
// logging only; expiry decisions use the server declared lifetime.
type Claims struct {
	Subject     string
	Email       string
	WorkspaceID string
	Permissions []string // Present when the token is scoped to a workspace
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// ParseClaims extracts claims from a JWT access token. Opaque tokens return ErrMalformedToken.
func ParseClaims(rawToken string) (Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("[ParseClaims] %w: %v", apperrors.ErrMalformedToken, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("[ParseClaims] %w: unexpected claims type", apperrors.ErrMalformedToken)
	}

	c := Claims{}
	c.Subject, _ = mapClaims.GetSubject()
	c.Email, _ = mapClaims["email"].(string)
	c.WorkspaceID, _ = mapClaims["workspace_id"].(string)
	if perms, ok := mapClaims["permissions"].([]any); ok {
		c.Permissions = utils.ToStringSlice(perms)
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

// Claims returns the claims of the current token, if it is a JWT.
func (s *Store) Claims() (Claims, bool) {
	s.mu.RLock()
	raw := s.cred.AccessToken
	s.mu.RUnlock()
	if raw == "" {
		return Claims{}, false
	}
	c, err := ParseClaims(raw)
	if err != nil {
		return Claims{}, false
	}
	return c, true
}
