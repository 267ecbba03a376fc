package config

import "time"

type SessionConfig interface {
	GetRefreshCheckInterval() time.Duration
	GetRefreshThreshold() time.Duration
	GetActivityThrottle() time.Duration
	GetIntentTTL() time.Duration
	GetRequestTimeout() time.Duration
	GetRequestRetries() int
	GetLoginRoute() string
	GetLandingRoute() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRefreshCheckInterval() time.Duration {
	return GetEnvDuration("REFRESH_CHECK_INTERVAL", time.Minute)
}

func (Session) GetRefreshThreshold() time.Duration {
	return GetEnvDuration("REFRESH_THRESHOLD", 5*time.Minute)
}

func (Session) GetActivityThrottle() time.Duration {
	return GetEnvDuration("ACTIVITY_THROTTLE", 30*time.Second)
}

// GetIntentTTL bounds how long a captured auth intent stays usable after a login detour
func (Session) GetIntentTTL() time.Duration {
	return GetEnvDuration("AUTH_INTENT_TTL", 30*time.Minute)
}

func (Session) GetRequestTimeout() time.Duration {
	return GetEnvDuration("API_REQUEST_TIMEOUT", 15*time.Second)
}

func (Session) GetRequestRetries() int {
	return GetEnvInt("API_REQUEST_RETRIES", 2)
}

func (Session) GetLoginRoute() string {
	return GetEnv("LOGIN_ROUTE", "/login")
}

func (Session) GetLandingRoute() string {
	return GetEnv("LANDING_ROUTE", "/dashboard")
}
