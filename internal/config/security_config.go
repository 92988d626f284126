package config

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetRateLimitPerSecond() float64
	GetRateLimitBurst() int
}

type Security struct {
	RateLimiting bool    `yaml:"rate_limiting" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	PerSecond    float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" env-default:"5"`
	Burst        int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

var _ SecurityConfig = Security{}

func (s Security) GetEnableRateLimiting() bool {
	return s.RateLimiting
}

func (s Security) GetRateLimitPerSecond() float64 {
	return s.PerSecond
}

func (s Security) GetRateLimitBurst() int {
	return s.Burst
}
