package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetAPIBaseURL() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Store
}

// New loads a .env file when running in DEV and returns the environment backed config.
func New() Config {
	if (EnvVars{}).GetEnv() == "DEV" {
		_ = godotenv.Load(".env")
	}
	return mainConfig{}
}
