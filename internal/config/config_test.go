package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", t.TempDir()+"/missing.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:3000", cfg.Server.Addr())
	assert.False(t, cfg.Server.IsProduction())
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Storage.Sessions)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "targup-backend", cfg.JWT.Issuer)
	assert.Equal(t, 8, cfg.Password.MinLength)
	assert.Equal(t, 10, cfg.Password.BcryptCost)
	assert.Equal(t, "oauth-google", cfg.Google.PasswordPlaceholder)
	assert.Equal(t, "oauth-instagram", cfg.Instagram.PasswordPlaceholder)
	assert.False(t, cfg.Google.Enabled())
	assert.Equal(t, "off", cfg.OIDC.Mode)
	assert.False(t, cfg.UsesRedis())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "testsecret123456789012345678901234")
	t.Setenv("JWT_ACCESS_TOKEN_TTL", "60")
	t.Setenv("STORAGE_DRIVER", "Mongo")
	t.Setenv("SESSION_DRIVER", "redis")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, ,https://b.test")
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	t.Setenv("GOOGLE_CLIENT_SECRET", "gsecret")
	t.Setenv("GOOGLE_REDIRECT_URI", "http://localhost/auth/google/callback")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Server.IsProduction())
	assert.Equal(t, time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "mongo", cfg.Storage.Driver)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.UsesRedis())
	assert.True(t, cfg.Google.Enabled())
	assert.Equal(t, "gsecret", cfg.Google.ClientSecret)
}

func TestLoadConfig_SecretRequiredOutsideDevelopment(t *testing.T) {
	isolate(t)
	t.Setenv("SERVER_ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Environment: "staging"},
		Storage:  StorageConfig{Driver: "sqlite", Sessions: "mongo", Revocations: "memory"},
		JWT:      JWTConfig{AccessTokenTTL: time.Minute},
		OIDC:     OIDCConfig{Mode: "maybe"},
		Google:   ProviderConfig{ClientID: "only-id"},
		Password: PasswordConfig{MinLength: 8},
	}
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"JWT_SECRET", "STORAGE_DRIVER", "SESSION_DRIVER=mongo", "GOOGLE_OIDC_MODE", "GOOGLE_CLIENT_SECRET"} {
		assert.Contains(t, msg, want)
	}
	assert.NotContains(t, msg, "INSTAGRAM")
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Environment: "development"},
		Storage:  StorageConfig{Driver: "postgres", Sessions: "off", Revocations: "redis"},
		JWT:      JWTConfig{AccessTokenTTL: time.Minute},
		OIDC:     OIDCConfig{Mode: "off"},
		Password: PasswordConfig{MinLength: 8},
	}
	require.ErrorContains(t, cfg.Validate(), "POSTGRES_URL")

	cfg.Postgres.URL = "postgres://localhost/targup?sslmode=disable"
	require.NoError(t, cfg.Validate())
}
