package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/contact-relay/pkg/api"
	"github.com/telekom/contact-relay/pkg/config"
	"github.com/telekom/contact-relay/pkg/mail"
	"github.com/telekom/contact-relay/pkg/ratelimit"
	"github.com/telekom/contact-relay/pkg/system"
	"github.com/telekom/contact-relay/pkg/telemetry"
	"github.com/telekom/contact-relay/pkg/version"
)

const startupVerifyTimeout = 15 * time.Second

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), rt)
		},
	}
}

// App is the wired relay: HTTP server, limiter and mail dispatcher.
type App struct {
	Server     *api.Server
	Limiter    *ratelimit.Limiter
	Dispatcher *mail.Dispatcher
	log        *zap.SugaredLogger
}

// NewApp wires all components from cfg. With a Redis URL the store is opened and pinged
// here, so an unreachable Redis fails startup instead of the first request.
func NewApp(ctx context.Context, cfg config.Config, zl *zap.Logger, debug bool) (*App, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	log := zl.Sugar()

	server, err := api.NewServer(zl, cfg, debug)
	if err != nil {
		return nil, err
	}

	var store ratelimit.Store
	if cfg.RateLimit.RedisURL != "" {
		client, err := ratelimit.OpenRedis(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open rate limit store: %w", err)
		}
		redisStore := ratelimit.NewRedisStore(client, ratelimit.DefaultKeyPrefix)
		server.AddHealthCheck("redis", redisStore.Healthcheck)
		store = redisStore
	} else {
		store = ratelimit.NewMemoryStore(cfg.RateLimit.CleanupInterval)
	}

	limiter := ratelimit.New(ratelimit.Config{
		Window:          cfg.RateLimit.Window,
		MaxRequests:     cfg.RateLimit.MaxRequests,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	}, store, log.Named("ratelimit"))

	dispatcher := mail.NewDispatcher(mail.NewSender(cfg.Mail, log), cfg.Mail, log)

	if err := server.RegisterAll([]api.APIController{
		api.NewContactController(limiter, dispatcher, cfg.Server.MaxBodyBytes, log),
	}); err != nil {
		_ = limiter.Stop()
		return nil, fmt.Errorf("register routes: %w", err)
	}

	return &App{Server: server, Limiter: limiter, Dispatcher: dispatcher, log: log}, nil
}

// VerifyMail checks the SMTP connection and logs the outcome. The relay keeps serving
// either way; sends are attempted per request.
func (a *App) VerifyMail(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, startupVerifyTimeout)
	defer cancel()

	sender := a.Dispatcher.Sender()
	if err := a.Dispatcher.Verify(ctx); err != nil {
		a.log.Errorw("SMTP verification failed, mail sends will likely fail",
			"host", sender.GetHost(), "port", sender.GetPort(), "error", err)
		return err
	}
	a.log.Infow("SMTP connection verified", "host", sender.GetHost(), "port", sender.GetPort())
	return nil
}

// Close stops the limiter and releases its store.
func (a *App) Close() error {
	return a.Limiter.Stop()
}

func runServe(ctx context.Context, rt *runtimeState) (err error) {
	cfg := rt.cfg
	zl, closeLog, err := system.NewLogger(system.LoggerOptions{
		Debug:      rt.Debug(),
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	defer zap.ReplaceGlobals(zl)()

	log := zl.Sugar()
	log.Infow("Starting contact relay", "version", version.GetBuildInfo().Version, "commit", version.GetBuildInfo().GitCommit)
	Print(cfg, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownTracing, err := telemetry.Init(ctx, telemetry.OptionsFromConfig(cfg.Tracing, log.Named("telemetry")))
	if err != nil {
		log.Errorw("Failed to initialize tracing", "error", err)
		return err
	}
	defer func() {
		if serr := shutdownTracing(context.WithoutCancel(ctx)); serr != nil {
			log.Warnw("Failed to flush traces", "error", serr)
		}
	}()

	app, err := NewApp(ctx, cfg, zl, rt.Debug())
	if err != nil {
		log.Errorw("Failed to start", "error", err)
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if !cfg.Mail.SkipVerifyOnStart {
		go func() {
			defer system.Recover("smtp-verify")
			_ = app.VerifyMail(ctx)
		}()
	}

	if err := app.Server.Run(ctx); err != nil {
		log.Errorw("Server stopped with error", "error", err)
		return err
	}
	log.Info("Server stopped")
	return nil
}
