package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// configPathEnvVar optionally points at a YAML file; environment variables
// still override anything it sets.
const configPathEnvVar = "CONFIG_PATH"

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	SecurityConfig
	ConsoleConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
	GetDatabaseURL() string
	GetRedisURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars  `yaml:"env"`
	Cors     `yaml:"cors"`
	Identity `yaml:"identity"`
	Security `yaml:"security"`
	Console  `yaml:"console"`
}

// New loads the configuration from the environment, layered over the YAML
// file named by CONFIG_PATH when set.
func New() (Config, error) {
	var c mainConfig
	if path := os.Getenv(configPathEnvVar); path != "" {
		if err := cleanenv.ReadConfig(path, &c); err != nil {
			return nil, fmt.Errorf("[config New] read %s: %w", path, err)
		}
		return c, nil
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("[config New] read env: %w", err)
	}
	return c, nil
}
