// Package config loads service configuration from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

const minSecretLen = 20

// Reset delivery modes.
const (
	DeliveryEcho = "echo"
	DeliveryLog  = "log"
)

type Config struct {
	Env      string           `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP     HTTP             `yaml:"http"`
	Database database.Config  `yaml:"database"`
	Log      utilities.Config `yaml:"log"`
	Auth     Auth             `yaml:"auth"`
}

type HTTP struct {
	Host            string        `yaml:"host" env:"HOST" env-default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"PORT" env-default:"4000"`
	ClientURL       string        `yaml:"client_url" env:"CLIENT_URL" env-default:"http://localhost:5173"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Auth struct {
	JWTSecret               string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL                time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"168h"`
	ResetTokenExpiryMinutes int           `yaml:"reset_token_expiry_minutes" env:"RESET_TOKEN_EXPIRY_MINUTES" env-default:"30"`
	ResetDelivery           string        `yaml:"reset_delivery" env:"RESET_DELIVERY" env-default:"echo"`
	ResetURL                string        `yaml:"reset_url" env:"RESET_URL"`
	BcryptCost              int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
}

// Addr is the listen address for the HTTP server.
func (h HTTP) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// ResetTTL is the lifetime of a freshly issued reset token.
func (a Auth) ResetTTL() time.Duration {
	return time.Duration(a.ResetTokenExpiryMinutes) * time.Minute
}

// ResetLink is the base URL handed to the out-of-band reset notifier.
func (c *Config) ResetLink() string {
	if c.Auth.ResetURL != "" {
		return c.Auth.ResetURL
	}
	return c.HTTP.ClientURL + "/reset-password"
}

// Load reads configuration. When path is empty only the environment is read.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}
	if c.Auth.ResetTokenExpiryMinutes <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_EXPIRY_MINUTES must be positive"))
	}
	switch c.Auth.ResetDelivery {
	case DeliveryEcho, DeliveryLog:
	default:
		errs = append(errs, fmt.Errorf("RESET_DELIVERY must be %q or %q, got %q", DeliveryEcho, DeliveryLog, c.Auth.ResetDelivery))
	}
	if !absoluteURL(c.HTTP.ClientURL) {
		errs = append(errs, fmt.Errorf("CLIENT_URL must be an absolute URL, got %q", c.HTTP.ClientURL))
	}
	if c.Auth.ResetDelivery == DeliveryLog && !absoluteURL(c.ResetLink()) {
		errs = append(errs, fmt.Errorf("RESET_URL must be an absolute URL, got %q", c.ResetLink()))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.HTTP.Port))
	}
	return errors.Join(errs...)
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
