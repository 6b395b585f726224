package authflow

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Config holds everything the server needs, loaded from AUTHFLOW_* variables.
type Config struct {
	Addr       string `env:"ADDR" envDefault:":8080"`
	GRPCAddr   string `env:"GRPC_ADDR"` // empty disables the gRPC listener
	LogLevel   int    `env:"LOG_LEVEL" envDefault:"0"`
	BaseURL    string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"10"`

	DB      DBConfig       `envPrefix:"DB_"`
	Session SessionConfig  `envPrefix:"SESSION_"`
	JWT     JWTConfig      `envPrefix:"JWT_"`
	Twitter ProviderConfig `envPrefix:"TWITTER_"`
	GitHub  ProviderConfig `envPrefix:"GITHUB_"`
}

// DBConfig selects the user store backend. DSN means a connection string for
// sqlite and postgres, a project id for datastore and a directory for fs.
type DBConfig struct {
	Driver    string `env:"DRIVER" envDefault:"sqlite"`
	DSN       string `env:"DSN" envDefault:"file:authflow.db"`
	Namespace string `env:"NAMESPACE"` // datastore only
}

type SessionConfig struct {
	Lifetime   time.Duration `env:"LIFETIME" envDefault:"24h"`
	CookieName string        `env:"COOKIE" envDefault:"authflow_session"`
	RedisAddr  string        `env:"REDIS_ADDR"` // empty keeps sessions in memory
}

type JWTConfig struct {
	Secret string        `env:"SECRET"`
	Issuer string        `env:"ISSUER" envDefault:"authflow"`
	TTL    time.Duration `env:"TTL" envDefault:"1h"`
}

// ProviderConfig is the client registration with a third-party provider
type ProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Enabled reports whether the provider has been registered
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != ""
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "AUTHFLOW_"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express
func (c *Config) Validate() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	switch c.DB.Driver {
	case "sqlite", "postgres", "datastore", "fs", "memory":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	for name, p := range map[string]ProviderConfig{"twitter": c.Twitter, "github": c.GitHub} {
		if p.Enabled() && (p.ClientSecret == "" || p.CallbackURL == "") {
			return fmt.Errorf("%s: client secret and callback url are required", name)
		}
	}
	return nil
}
