/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/telekom/contact-relay/pkg/contact"
)

// PathEnvVar overrides the config file location when Load is called without a path.
const PathEnvVar = "CONTACT_RELAY_CONFIG"

type Server struct {
	// ListenAddress is the host part of the listen address; empty listens on all interfaces
	ListenAddress string `yaml:"listenAddress" env:"LISTEN_ADDRESS"`
	Port          int    `yaml:"port" env:"PORT"`
	// TrustedProxies are IPs/CIDRs whose X-Forwarded-For header is believed (e.g. ["10.0.0.0/8", "127.0.0.1"])
	TrustedProxies []string `yaml:"trustedProxies" env:"TRUSTED_PROXIES"`
	// TrustedPlatform names a header set by a CDN that carries the client IP (e.g. "CF-Connecting-IP")
	TrustedPlatform string        `yaml:"trustedPlatform" env:"TRUSTED_PLATFORM"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes" env:"MAX_BODY_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`
}

// ListenAddr returns host:port for net.Listen.
func (s Server) ListenAddr() string {
	return net.JoinHostPort(s.ListenAddress, strconv.Itoa(s.Port))
}

type Mail struct {
	Host string `yaml:"host" env:"SMTP_HOST"`
	Port int    `yaml:"port" env:"SMTP_PORT"`
	// User is the mailbox the relay logs in with; it is also the default sender and recipient
	User     string `yaml:"user" env:"EMAIL"`
	Password string `yaml:"password" env:"EMAIL_PASS"`
	// SenderAddress defaults to User
	SenderAddress string `yaml:"senderAddress" env:"MAIL_FROM"`
	SenderName    string `yaml:"senderName" env:"MAIL_SENDER_NAME"`
	// Recipient defaults to User
	Recipient          string        `yaml:"recipient" env:"MAIL_TO"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify" env:"SMTP_INSECURE_SKIP_VERIFY"`
	SendTimeout        time.Duration `yaml:"sendTimeout" env:"MAIL_SEND_TIMEOUT"`
	SkipVerifyOnStart  bool          `yaml:"skipVerifyOnStart" env:"SMTP_SKIP_VERIFY_ON_START"`
}

type Frontend struct {
	// URL is the origin of the contact form; a comma-separated list is accepted
	URL string `yaml:"url" env:"FRONTEND_URL"`
}

// AllowedOrigins splits URL into CORS origins. Trailing slashes are dropped because
// browsers send the Origin header without one.
func (f Frontend) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(f.URL, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

type RateLimit struct {
	Window          time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	MaxRequests     int           `yaml:"maxRequests" env:"RATE_LIMIT_MAX"`
	CleanupInterval time.Duration `yaml:"cleanupInterval" env:"RATE_LIMIT_CLEANUP_INTERVAL"`
	// RedisURL selects the shared Redis store (redis:// or rediss://); empty keeps counters in memory
	RedisURL string `yaml:"redisURL" env:"RATE_LIMIT_REDIS_URL"`
}

type Logging struct {
	Debug      bool   `yaml:"debug" env:"DEBUG"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"maxSizeMB" env:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"maxBackups" env:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"maxAgeDays" env:"LOG_MAX_AGE_DAYS"`
}

type Metrics struct {
	Enabled bool `yaml:"enabled" env:"METRICS_ENABLED"`
}

// Tracing configures OpenTelemetry. Disabled by default.
type Tracing struct {
	Enabled bool `yaml:"enabled" env:"OTEL_ENABLED"`
	// Exporter is one of otlp, stdout or none
	Exporter     string  `yaml:"exporter" env:"OTEL_EXPORTER"`
	Endpoint     string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool    `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
	SamplingRate float64 `yaml:"samplingRate" env:"OTEL_SAMPLING_RATE"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Mail      Mail      `yaml:"mail"`
	Frontend  Frontend  `yaml:"frontend"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Logging   Logging   `yaml:"logging"`
	Metrics   Metrics   `yaml:"metrics"`
	Tracing   Tracing   `yaml:"tracing"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            5000,
			MaxBodyBytes:    10 * 1024,
			ShutdownTimeout: 10 * time.Second,
		},
		Mail: Mail{
			Host:        "smtp.gmail.com",
			Port:        587,
			SenderName:  "Portfolio",
			SendTimeout: 10 * time.Second,
		},
		RateLimit: RateLimit{
			Window:          10 * time.Minute,
			MaxRequests:     5,
			CleanupInterval: time.Minute,
		},
		Logging: Logging{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Tracing: Tracing{
			Exporter:     "otlp",
			SamplingRate: 1.0,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, the given .env
// files (".env" when none are given) and finally the process environment.
//
// An empty path falls back to $CONTACT_RELAY_CONFIG; when that is unset too, no file is read.
// Missing .env files are ignored. Variables already present in the environment are never
// overwritten by .env files.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("trying to open config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading env file %s: %w", f, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.applyDerived()
	return cfg, nil
}

func (c *Config) applyDerived() {
	if c.Mail.SenderAddress == "" {
		c.Mail.SenderAddress = c.Mail.User
	}
	if c.Mail.Recipient == "" {
		c.Mail.Recipient = c.Mail.User
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if c.Mail.User == "" {
		errs = append(errs, errors.New("EMAIL is required"))
	}
	if c.Mail.Password == "" {
		errs = append(errs, errors.New("EMAIL_PASS is required"))
	}
	if c.Mail.Host == "" {
		errs = append(errs, errors.New("SMTP_HOST must not be empty"))
	}
	if !validPort(c.Mail.Port) {
		errs = append(errs, fmt.Errorf("SMTP_PORT %d is out of range", c.Mail.Port))
	}
	if c.Mail.SenderAddress != "" && !contact.ValidEmail(c.Mail.SenderAddress) {
		errs = append(errs, fmt.Errorf("sender address %q is not an email address", c.Mail.SenderAddress))
	}
	if c.Mail.Recipient != "" && !contact.ValidEmail(c.Mail.Recipient) {
		errs = append(errs, fmt.Errorf("MAIL_TO %q is not an email address", c.Mail.Recipient))
	}
	if c.Mail.SendTimeout <= 0 {
		errs = append(errs, errors.New("MAIL_SEND_TIMEOUT must be positive"))
	}

	if !validPort(c.Server.Port) {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Server.Port))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Errorf("trusted proxy %q is neither an IP nor a CIDR", p))
		}
	}

	for _, o := range c.Frontend.AllowedOrigins() {
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Errorf("FRONTEND_URL origin %q must start with http:// or https://", o))
		}
		if strings.Contains(o, "*") {
			errs = append(errs, fmt.Errorf("FRONTEND_URL origin %q must not contain wildcards", o))
		}
	}

	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX must be positive"))
	}
	if u := c.RateLimit.RedisURL; u != "" && !strings.HasPrefix(u, "redis://") && !strings.HasPrefix(u, "rediss://") {
		errs = append(errs, errors.New("RATE_LIMIT_REDIS_URL must use redis:// or rediss://"))
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp", "stdout", "none":
		default:
			errs = append(errs, fmt.Errorf("OTEL_EXPORTER %q must be otlp, stdout or none", c.Tracing.Exporter))
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			errs = append(errs, fmt.Errorf("OTEL_SAMPLING_RATE %v must be between 0 and 1", c.Tracing.SamplingRate))
		}
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func validProxy(p string) bool {
	if net.ParseIP(p) != nil {
		return true
	}
	_, _, err := net.ParseCIDR(p)
	return err == nil
}
