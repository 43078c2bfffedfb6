package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/contact-relay/pkg/config"
)

// Options configures NewRootCommand.
type Options struct {
	ConfigPath string
	// EnvFiles are dotenv files read before the process environment; nil selects ".env"
	EnvFiles     []string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath string
	envFiles   []string
	debug      bool
	cfg        config.Config
	writer     io.Writer
}

type runtimeKey struct{}

func DefaultOptions() Options {
	return Options{
		ConfigPath:   os.Getenv(config.PathEnvVar),
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(opts Options) *cobra.Command {
	rt := &runtimeState{configPath: opts.ConfigPath, envFiles: opts.EnvFiles, writer: opts.OutputWriter}

	root := &cobra.Command{
		Use:           "contact-relay",
		Short:         "Relay contact form submissions to a mailbox over SMTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = cmd.OutOrStdout()
			}
			if !rt.debug {
				rt.debug = getEnvBool("DEBUG", false)
			}
			if !needsConfig(cmd) {
				return nil
			}

			cfg, err := config.Load(rt.configPath, rt.envFiles...)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rt)
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to the YAML config file (env: "+config.PathEnvVar+")")
	root.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug level logging and gin debug mode")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewServeCommand(),
		NewVerifyCommand(),
		NewVersionCommand(),
	)

	return root
}

// needsConfig is false for version and for cobra's completion commands, which
// sit one level below "completion" (completion bash, completion zsh, ...).
func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// Writer returns the output writer for command results.
func (rt *runtimeState) Writer() io.Writer {
	if rt.writer == nil {
		return os.Stdout
	}
	return rt.writer
}

// Debug reports whether debug logging was requested by flag, DEBUG or the config file.
func (rt *runtimeState) Debug() bool {
	return rt.debug || rt.cfg.Logging.Debug
}

// Print logs the effective configuration. Credentials are reported as set or unset only.
func Print(cfg config.Config, log *zap.SugaredLogger) {
	log.Infow("Configuration",
		"listen_address", cfg.Server.ListenAddr(),
		"trusted_proxies", cfg.Server.TrustedProxies,
		"trusted_platform", cfg.Server.TrustedPlatform,
		"max_body_bytes", cfg.Server.MaxBodyBytes,
		"smtp_host", cfg.Mail.Host,
		"smtp_port", cfg.Mail.Port,
		"smtp_user", cfg.Mail.User,
		"smtp_password_set", cfg.Mail.Password != "",
		"mail_from", cfg.Mail.SenderAddress,
		"mail_to", cfg.Mail.Recipient,
		"mail_send_timeout", cfg.Mail.SendTimeout,
		"allowed_origins", cfg.Frontend.AllowedOrigins(),
		"rate_limit_window", cfg.RateLimit.Window,
		"rate_limit_max", cfg.RateLimit.MaxRequests,
		"rate_limit_store", storeKind(cfg.RateLimit),
		"metrics_enabled", cfg.Metrics.Enabled,
		"tracing_enabled", cfg.Tracing.Enabled,
		"tracing_exporter", cfg.Tracing.Exporter,
		"log_file", cfg.Logging.File,
	)
}

func storeKind(rl config.RateLimit) string {
	if rl.RedisURL != "" {
		return "redis"
	}
	return "memory"
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
