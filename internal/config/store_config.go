package config

type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreFile   StoreBackend = "file"
	StoreRedis  StoreBackend = "redis"
)

type StoreConfig interface {
	GetStoreBackend() StoreBackend
	GetRedisURL() string
	GetStoreKeyPrefix() string
	GetStoreEncryptionKey() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreBackend() StoreBackend {
	switch b := StoreBackend(GetEnv("STORE_BACKEND", string(StoreFile))); b {
	case StoreMemory, StoreFile, StoreRedis:
		return b
	default:
		return StoreFile
	}
}

func (Store) GetRedisURL() string {
	return GetEnv("REDIS_URL", "redis://localhost:6379/0")
}

func (Store) GetStoreKeyPrefix() string {
	return GetEnv("STORE_KEY_PREFIX", "console:")
}

// GetStoreEncryptionKey returns a hex encoded 32 byte key. Empty disables sealing of the file store.
func (Store) GetStoreEncryptionKey() string {
	return GetEnv("STORE_ENCRYPTION_KEY", "")
}
