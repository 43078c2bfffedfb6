package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/contact-relay/pkg/apiresponses"
	"github.com/telekom/contact-relay/pkg/config"
	"github.com/telekom/contact-relay/pkg/metrics"
	"github.com/telekom/contact-relay/pkg/system"
	"github.com/telekom/contact-relay/pkg/version"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	gin    *gin.Engine
	config config.Config
	log    *zap.Logger
	checks map[string]HealthCheck
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool) (*Server, error) {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.TrustedPlatform = cfg.Server.TrustedPlatform
	// nil trusts no proxy, so X-Forwarded-For is only honoured from configured peers
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	if cfg.Tracing.Enabled {
		engine.Use(otelgin.Middleware(version.Name, otelgin.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		})))
	}

	engine.Use(
		RequestID(log.Sugar()),
		ginzap.GinzapWithConfig(log, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/healthz", "/metrics"},
			Context: func(c *gin.Context) []zapcore.Field {
				return []zapcore.Field{zap.String("requestID", system.GetRequestID(c))}
			},
		}),
		ginzap.CustomRecoveryWithZap(log, true, func(c *gin.Context, _ any) {
			apiresponses.RespondInternalErrorSimple(c)
			c.Abort()
		}),
		SecurityHeaders(),
	)

	if origins := cfg.Frontend.AllowedOrigins(); len(origins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			MaxAge:        12 * time.Hour,
		}))
	} else {
		log.Warn("FRONTEND_URL is empty, cross-origin requests will not be allowed")
	}

	engine.NoRoute(apiresponses.RespondNotFound)
	engine.NoMethod(apiresponses.RespondMethodNotAllowed)

	s := &Server{
		gin:    engine,
		config: cfg,
		log:    log,
		checks: map[string]HealthCheck{},
	}

	engine.GET("/", s.getRoot)
	engine.GET("/healthz", s.getHealth)
	if cfg.Metrics.Enabled {
		engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))
	}

	return s, nil
}

// AddHealthCheck adds a named dependency check to /healthz.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

func (s *Server) RegisterAll(controllers []APIController) error {
	for _, c := range controllers {
		if err := c.Register(s.gin.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the http.Handler for the server (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Run listens on the configured address until ctx is done, then drains in-flight
// requests for at most Server.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Server.ListenAddr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.gin,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// leaves room for the SMTP send timeout
		WriteTimeout: s.config.Mail.SendTimeout + 20*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening", zap.String("address", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s.log.Info("Shutting down", zap.Duration("timeout", timeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
