package config

import "time"

// Storage backends for the console's durable session.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

type ConsoleConfig interface {
	GetConsolePort() string
	GetIdentityURL() string
	GetStorageBackend() string
	GetStoragePath() string
	GetStorageNamespace() string
	GetCookieKey() string
	GetRequestTimeout() time.Duration
}

type Console struct {
	Port             string        `yaml:"port" env:"CONSOLE_PORT" env-default:"3000"`
	IdentityURL      string        `yaml:"identity_url" env:"CONSOLE_IDENTITY_URL" env-default:"http://localhost:8080"`
	StorageBackend   string        `yaml:"storage" env:"CONSOLE_STORAGE" env-default:"file"`
	StoragePath      string        `yaml:"storage_path" env:"CONSOLE_STORAGE_PATH" env-default:"./data/session.json"`
	StorageNamespace string        `yaml:"storage_namespace" env:"CONSOLE_STORAGE_NAMESPACE" env-default:"shop.session"`
	CookieKey        string        `yaml:"cookie_key" env:"CONSOLE_COOKIE_KEY"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"CONSOLE_REQUEST_TIMEOUT" env-default:"10s"`
}

var _ ConsoleConfig = Console{}

func (c Console) GetConsolePort() string {
	return listenAddr(c.Port)
}

func (c Console) GetIdentityURL() string {
	return c.IdentityURL
}

// GetStorageBackend is one of StorageMemory, StorageFile or StorageRedis.
func (c Console) GetStorageBackend() string {
	return c.StorageBackend
}

func (c Console) GetStoragePath() string {
	return c.StoragePath
}

func (c Console) GetStorageNamespace() string {
	return c.StorageNamespace
}

// GetCookieKey signs the console's flash cookie. Empty means a random key per process.
func (c Console) GetCookieKey() string {
	return c.CookieKey
}

func (c Console) GetRequestTimeout() time.Duration {
	return c.RequestTimeout
}
