package config

import "time"

type IdentityConfig interface {
	GetTokenSecret() string
	GetTokenIssuer() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshWindow() time.Duration
	GetIssueTokenOnRegister() bool
	GetSeedAccounts() bool
}

type Identity struct {
	TokenSecret          string        `yaml:"token_secret" env:"IDENTITY_TOKEN_SECRET" env-default:"dev-only-token-secret"`
	Issuer               string        `yaml:"issuer" env:"IDENTITY_ISSUER" env-default:"shop-identity"`
	AccessTokenExpiry    time.Duration `yaml:"access_token_expiry" env:"IDENTITY_ACCESS_TOKEN_EXPIRY" env-default:"1h"`
	RefreshWindow        time.Duration `yaml:"refresh_window" env:"IDENTITY_REFRESH_WINDOW" env-default:"168h"`
	IssueTokenOnRegister bool          `yaml:"issue_token_on_register" env:"IDENTITY_ISSUE_TOKEN_ON_REGISTER" env-default:"true"`
	SeedAccounts         bool          `yaml:"seed_accounts" env:"IDENTITY_SEED_ACCOUNTS" env-default:"true"`
}

var _ IdentityConfig = Identity{}

func (i Identity) GetTokenSecret() string {
	return i.TokenSecret
}

func (i Identity) GetTokenIssuer() string {
	return i.Issuer
}

func (i Identity) GetAccessTokenExpiry() time.Duration {
	return i.AccessTokenExpiry
}

// GetRefreshWindow is how long after issue a token may still be exchanged at /refresh.
func (i Identity) GetRefreshWindow() time.Duration {
	return i.RefreshWindow
}

// GetIssueTokenOnRegister decides whether registration signs the account in
// immediately or requires a follow-up login.
func (i Identity) GetIssueTokenOnRegister() bool {
	return i.IssueTokenOnRegister
}

func (i Identity) GetSeedAccounts() bool {
	return i.SeedAccounts
}
