package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/contact-relay/pkg/config"
)

// clearEnv unsets every variable Load reads so the host environment cannot leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.PathEnvVar, "LISTEN_ADDRESS", "PORT", "TRUSTED_PROXIES", "TRUSTED_PLATFORM",
		"MAX_BODY_BYTES", "SHUTDOWN_TIMEOUT", "SMTP_HOST", "SMTP_PORT", "EMAIL", "EMAIL_PASS",
		"MAIL_FROM", "MAIL_SENDER_NAME", "MAIL_TO", "SMTP_INSECURE_SKIP_VERIFY", "MAIL_SEND_TIMEOUT",
		"SMTP_SKIP_VERIFY_ON_START", "FRONTEND_URL", "RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX",
		"RATE_LIMIT_CLEANUP_INTERVAL", "RATE_LIMIT_REDIS_URL", "DEBUG", "LOG_FILE",
		"LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS", "METRICS_ENABLED",
		"OTEL_ENABLED", "OTEL_EXPORTER", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_SAMPLING_RATE",
	} {
		if v, ok := os.LookupEnv(k); ok {
			require.NoError(t, os.Unsetenv(k))
			t.Cleanup(func() { _ = os.Setenv(k, v) })
		}
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMAIL", "me@example.com")
	t.Setenv("EMAIL_PASS", "secret")

	cfg, err := config.Load("", noEnvFile(t))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, ":5000", cfg.Server.ListenAddr())
	assert.Equal(t, int64(10240), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "smtp.gmail.com", cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, "Portfolio", cfg.Mail.SenderName)
	assert.Equal(t, "me@example.com", cfg.Mail.SenderAddress, "sender defaults to EMAIL")
	assert.Equal(t, "me@example.com", cfg.Mail.Recipient, "recipient defaults to EMAIL")
	assert.Equal(t, 10*time.Second, cfg.Mail.SendTimeout)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "otlp", cfg.Tracing.Exporter)
	assert.Empty(t, cfg.Frontend.AllowedOrigins())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
server:
  listenAddress: "127.0.0.1"
  port: 8080
  trustedProxies:
    - "10.0.0.0/8"
mail:
  host: "smtp.example.com"
  port: 465
  user: "yaml@example.com"
  password: "from-yaml"
  recipient: "inbox@example.com"
rateLimit:
  window: 5m
  maxRequests: 3
metrics:
  enabled: true
`)
	t.Setenv("PORT", "9090")
	t.Setenv("EMAIL_PASS", "from-env")

	cfg, err := config.Load(path, noEnvFile(t))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.ListenAddr(), "env overrides yaml")
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.Server.TrustedProxies)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, 465, cfg.Mail.Port)
	assert.Equal(t, "from-env", cfg.Mail.Password)
	assert.Equal(t, "yaml@example.com", cfg.Mail.SenderAddress)
	assert.Equal(t, "inbox@example.com", cfg.Mail.Recipient)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3, cfg.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.CleanupInterval, "defaults survive partial yaml")
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", "server:\n  port: 7000\n")
	t.Setenv(config.PathEnvVar, path)

	cfg, err := config.Load("", noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	t.Run("file not found", func(t *testing.T) {
		_, err := config.Load("/nonexistent/path/config.yaml", noEnvFile(t))
		assert.Error(t, err)
	})

	t.Run("invalid YAML", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `invalid: yaml: content [`)
		_, err := config.Load(path, noEnvFile(t))
		assert.Error(t, err)
	})

	t.Run("invalid duration in env", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_WINDOW", "ten minutes")
		_, err := config.Load("", noEnvFile(t))
		assert.Error(t, err)
	})
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "EMAIL=dotenv@example.com\nEMAIL_PASS=dotenv-pass\nFRONTEND_URL=https://portfolio.example.com/\n")
	t.Cleanup(func() {
		_ = os.Unsetenv("EMAIL")
		_ = os.Unsetenv("EMAIL_PASS")
		_ = os.Unsetenv("FRONTEND_URL")
	})

	cfg, err := config.Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "dotenv@example.com", cfg.Mail.User)
	assert.Equal(t, "dotenv-pass", cfg.Mail.Password)
	assert.Equal(t, []string{"https://portfolio.example.com"}, cfg.Frontend.AllowedOrigins())
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMAIL", "real@example.com")
	envFile := writeFile(t, ".env", "EMAIL=dotenv@example.com\n")

	cfg, err := config.Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "real@example.com", cfg.Mail.User)
}

func TestAllowedOrigins(t *testing.T) {
	f := config.Frontend{URL: " https://a.example.com/ , http://localhost:3000,,"}
	assert.Equal(t, []string{"https://a.example.com", "http://localhost:3000"}, f.AllowedOrigins())
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Defaults()
		cfg.Mail.User = "me@example.com"
		cfg.Mail.Password = "secret"
		cfg.Mail.SenderAddress = "me@example.com"
		cfg.Mail.Recipient = "me@example.com"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing email", func(c *config.Config) { c.Mail.User = "" }, "EMAIL is required"},
		{"missing password", func(c *config.Config) { c.Mail.Password = "" }, "EMAIL_PASS is required"},
		{"bad port", func(c *config.Config) { c.Server.Port = 70000 }, "PORT 70000 is out of range"},
		{"bad smtp port", func(c *config.Config) { c.Mail.Port = 0 }, "SMTP_PORT 0 is out of range"},
		{"bad recipient", func(c *config.Config) { c.Mail.Recipient = "nobody" }, "MAIL_TO"},
		{"zero body cap", func(c *config.Config) { c.Server.MaxBodyBytes = 0 }, "MAX_BODY_BYTES"},
		{"bad proxy", func(c *config.Config) { c.Server.TrustedProxies = []string{"proxy.local"} }, "trusted proxy"},
		{"origin without scheme", func(c *config.Config) { c.Frontend.URL = "portfolio.example.com" }, "must start with http"},
		{"wildcard origin", func(c *config.Config) { c.Frontend.URL = "https://*" }, "wildcards"},
		{"zero window", func(c *config.Config) { c.RateLimit.Window = 0 }, "RATE_LIMIT_WINDOW"},
		{"zero max", func(c *config.Config) { c.RateLimit.MaxRequests = 0 }, "RATE_LIMIT_MAX"},
		{"bad redis url", func(c *config.Config) { c.RateLimit.RedisURL = "localhost:6379" }, "RATE_LIMIT_REDIS_URL"},
		{"unknown exporter", func(c *config.Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, "OTEL_EXPORTER"},
		{"sampling out of range", func(c *config.Config) { c.Tracing.Enabled = true; c.Tracing.SamplingRate = 2 }, "OTEL_SAMPLING_RATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("reports all problems", func(t *testing.T) {
		cfg := valid()
		cfg.Mail.User = ""
		cfg.Mail.Password = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EMAIL is required")
		assert.Contains(t, err.Error(), "EMAIL_PASS is required")
	})
}

func TestDefaultConfigSecureDefaults(t *testing.T) {
	cfg := config.Defaults()
	assert.False(t, cfg.Mail.InsecureSkipVerify, "mail.InsecureSkipVerify should be false by default")
	assert.Empty(t, cfg.Frontend.URL, "no origin is allowed unless configured")
	assert.Empty(t, cfg.Server.TrustedProxies, "no proxy is trusted unless configured")
}

func TestValidateIgnoresTracingWhenDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mail.User = "me@example.com"
	cfg.Mail.Password = "secret"
	cfg.Tracing.Exporter = "zipkin"
	assert.NoError(t, cfg.Validate())
}
