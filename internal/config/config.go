package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath    = "CONFIG_PATH"
	EnvDBConnection  = "DB_CONNECTION"
	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTExpiry     = "JWT_EXPIRY"
	EnvCredentialKey = "CREDENTIAL_KEY"
	EnvStripeKey     = "STRIPE_SECRET_KEY"

	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables, reading .env first.
func LoadFromEnv() (AppConfig, error) {
	if os.Getenv("USE_DOTENV") != "off" {
		_ = godotenv.Load(".env")
	}
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// OAuthClient holds one identity provider's client credentials.
type OAuthClient struct {
	ClientID     string `yaml:"client-id"`
	ClientSecret string `yaml:"client-secret"`
}

// OAuthConfig holds client credentials for silent OAuth attempts.
type OAuthConfig struct {
	Google    OAuthClient `yaml:"google"`
	Microsoft OAuthClient `yaml:"microsoft"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// LoadCredentialKey reads the SMTP credential sealing key.
func LoadCredentialKey(configPath string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvCredentialKey)); key != "" {
		return key, nil
	}

	// fileConfig maps the YAML field holding the credential key.
	type fileConfig struct {
		CredentialKey string `yaml:"credential-key"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return "", fmt.Errorf("read config file: %w", errRead)
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return strings.TrimSpace(cfg.CredentialKey), nil
}

// LoadOAuthConfig loads identity provider client credentials.
func LoadOAuthConfig(configPath string) (OAuthConfig, error) {
	// fileConfig maps the YAML fields holding OAuth clients.
	type fileConfig struct {
		OAuth OAuthConfig `yaml:"oauth"`
	}

	var result OAuthConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.OAuth
		}
	}

	if id := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")); id != "" {
		result.Google.ClientID = id
	}
	if secret := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")); secret != "" {
		result.Google.ClientSecret = secret
	}
	if id := strings.TrimSpace(os.Getenv("MICROSOFT_CLIENT_ID")); id != "" {
		result.Microsoft.ClientID = id
	}
	if secret := strings.TrimSpace(os.Getenv("MICROSOFT_CLIENT_SECRET")); secret != "" {
		result.Microsoft.ClientSecret = secret
	}
	return result, nil
}

// StripeConfig holds Stripe API and checkout settings.
type StripeConfig struct {
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret"`
	FrontendURL   string `yaml:"frontend-url"`
}

// LoadStripeConfig reads Stripe settings from the config file with env
// overrides for the secrets.
func LoadStripeConfig(configPath string) StripeConfig {
	// fileConfig maps the YAML section holding Stripe settings.
	type fileConfig struct {
		Stripe StripeConfig `yaml:"stripe"`
	}

	var result StripeConfig
	if data, errRead := os.ReadFile(configPath); errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Stripe
		}
	}
	if key := strings.TrimSpace(os.Getenv(EnvStripeKey)); key != "" {
		result.SecretKey = key
	}
	if secret := strings.TrimSpace(os.Getenv(EnvStripeWebhookSecret)); secret != "" {
		result.WebhookSecret = secret
	}
	result.SecretKey = strings.TrimSpace(result.SecretKey)
	result.WebhookSecret = strings.TrimSpace(result.WebhookSecret)
	result.FrontendURL = strings.TrimRight(strings.TrimSpace(result.FrontendURL), "/")
	return result
}
