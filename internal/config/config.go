package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	MongoDB   MongoDBConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Google    ProviderConfig
	Instagram ProviderConfig
	OIDC      OIDCConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	Environment    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

func (s ServerConfig) IsProduction() bool { return s.Environment == "production" }

// StorageConfig selects the backends. Driver is memory, mongo or postgres;
// Sessions is off, memory, redis or mongo; Revocations is memory or redis.
type StorageConfig struct {
	Driver      string
	Sessions    string
	Revocations string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type PostgresConfig struct {
	URL           string
	MigrateOnBoot bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

type PasswordConfig struct {
	MinLength  int
	BcryptCost int
}

// ProviderConfig is the OAuth client registration for one provider. A
// provider without a client id is not registered.
type ProviderConfig struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	PasswordPlaceholder string
}

func (p ProviderConfig) Enabled() bool { return p.ClientID != "" }

// OIDCConfig controls Google id_token handling. Mode is off (use the
// userinfo endpoint), verify (discovery at Issuer) or trust (parse without
// checking the signature).
type OIDCConfig struct {
	Mode   string
	Issuer string
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	storageDrivers    = []string{"memory", "mongo", "postgres"}
	sessionDrivers    = []string{"off", "memory", "redis", "mongo"}
	revocationDrivers = []string{"memory", "redis"}
	oidcModes         = []string{"off", "verify", "trust"}
)

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("SESSION_DRIVER", "memory")
	v.SetDefault("REVOCATION_DRIVER", "memory")
	v.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "targup")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("POSTGRES_MIGRATE", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ISSUER", "targup-backend")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 10080)
	v.SetDefault("PASSWORD_MIN_LENGTH", 8)
	v.SetDefault("PASSWORD_BCRYPT_COST", 10)
	v.SetDefault("GOOGLE_OAUTH_PASSWORD_PLACEHOLDER", "oauth-google")
	v.SetDefault("INSTAGRAM_OAUTH_PASSWORD_PLACEHOLDER", "oauth-instagram")
	v.SetDefault("GOOGLE_OIDC_MODE", "off")
	v.SetDefault("GOOGLE_OIDC_ISSUER", "https://accounts.google.com")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Host:           v.GetString("SERVER_HOST"),
			Environment:    v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:    time.Duration(v.GetInt("SERVER_READ_TIMEOUT")) * time.Second,
			WriteTimeout:   time.Duration(v.GetInt("SERVER_WRITE_TIMEOUT")) * time.Second,
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Sessions:    strings.ToLower(v.GetString("SESSION_DRIVER")),
			Revocations: strings.ToLower(v.GetString("REVOCATION_DRIVER")),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Postgres: PostgresConfig{
			URL:           v.GetString("POSTGRES_URL"),
			MigrateOnBoot: v.GetBool("POSTGRES_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("JWT_SECRET"),
			Issuer:         v.GetString("JWT_ISSUER"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		Password: PasswordConfig{
			MinLength:  v.GetInt("PASSWORD_MIN_LENGTH"),
			BcryptCost: v.GetInt("PASSWORD_BCRYPT_COST"),
		},
		Google:    providerConfig(v, "GOOGLE"),
		Instagram: providerConfig(v, "INSTAGRAM"),
		OIDC: OIDCConfig{
			Mode:   strings.ToLower(v.GetString("GOOGLE_OIDC_MODE")),
			Issuer: v.GetString("GOOGLE_OIDC_ISSUER"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func providerConfig(v *viper.Viper, prefix string) ProviderConfig {
	return ProviderConfig{
		ClientID:            v.GetString(prefix + "_CLIENT_ID"),
		ClientSecret:        v.GetString(prefix + "_CLIENT_SECRET"),
		RedirectURI:         v.GetString(prefix + "_REDIRECT_URI"),
		PasswordPlaceholder: v.GetString(prefix + "_OAUTH_PASSWORD_PLACEHOLDER"),
	}
}

// Validate reports every problem at once. An empty JWT secret is only
// tolerated in development.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" && c.Server.Environment != "development" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TOKEN_TTL must be positive"))
	}
	if !oneOf(c.Storage.Driver, storageDrivers) {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q: want one of %v", c.Storage.Driver, storageDrivers))
	}
	if !oneOf(c.Storage.Sessions, sessionDrivers) {
		errs = append(errs, fmt.Errorf("SESSION_DRIVER %q: want one of %v", c.Storage.Sessions, sessionDrivers))
	}
	if !oneOf(c.Storage.Revocations, revocationDrivers) {
		errs = append(errs, fmt.Errorf("REVOCATION_DRIVER %q: want one of %v", c.Storage.Revocations, revocationDrivers))
	}
	if c.Storage.Driver == "postgres" && c.Postgres.URL == "" {
		errs = append(errs, errors.New("POSTGRES_URL is required for the postgres driver"))
	}
	if c.Storage.Sessions == "mongo" && c.Storage.Driver != "mongo" {
		errs = append(errs, errors.New("SESSION_DRIVER=mongo requires STORAGE_DRIVER=mongo"))
	}
	if !oneOf(c.OIDC.Mode, oidcModes) {
		errs = append(errs, fmt.Errorf("GOOGLE_OIDC_MODE %q: want one of %v", c.OIDC.Mode, oidcModes))
	}
	for name, p := range map[string]ProviderConfig{"GOOGLE": c.Google, "INSTAGRAM": c.Instagram} {
		if p.Enabled() && (p.ClientSecret == "" || p.RedirectURI == "") {
			errs = append(errs, fmt.Errorf("%s_CLIENT_SECRET and %s_REDIRECT_URI are required with %s_CLIENT_ID", name, name, name))
		}
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be at least 1"))
	}
	return errors.Join(errs...)
}

// UsesRedis reports whether any configured backend needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Storage.Sessions == "redis" || c.Storage.Revocations == "redis"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
