package config

import "strings"

type EnvVars struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	AppName     string `yaml:"app_name" env:"APP_NAME" env-default:"Shop Identity"`
	Env         string `yaml:"env" env:"ENV" env-default:"DEV"`
	BaseURL     string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	return listenAddr(e.Port)
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Env)
}

// GetBaseURL returns the public base URL of the identity endpoint (e.g., "https://id.example.com")
func (e EnvVars) GetBaseURL() string {
	return strings.TrimRight(e.BaseURL, "/")
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetDatabaseURL is empty when users are kept in memory.
func (e EnvVars) GetDatabaseURL() string {
	return e.DatabaseURL
}

// GetRedisURL is empty when redis is not in use.
func (e EnvVars) GetRedisURL() string {
	return e.RedisURL
}

func listenAddr(port string) string {
	if port == "" || strings.HasPrefix(port, ":") || strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
