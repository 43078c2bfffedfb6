package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/telekom/contact-relay/pkg/apiresponses"
	"github.com/telekom/contact-relay/pkg/metrics"
	"github.com/telekom/contact-relay/pkg/system"
)

// Response headers set on every checked request.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "Retry-After"
)

// Config holds rate limiter configuration
type Config struct {
	// Window is the length of one fixed window
	Window time.Duration
	// MaxRequests is the number of requests allowed per client and window
	MaxRequests int
	// CleanupInterval is how often the in-memory store drops expired windows
	CleanupInterval time.Duration
}

// DefaultConfig returns the limits for the mail route: 5 requests per 10 minutes.
func DefaultConfig() Config {
	return Config{
		Window:          10 * time.Minute,
		MaxRequests:     5,
		CleanupInterval: time.Minute,
	}
}

// Store records hits for a client within a fixed window.
type Store interface {
	// Hit counts one request for key at now and returns the count within the current
	// window and the time that window started. A window that ended is reset first.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (count int64, windowStart time.Time, err error)
	// Name identifies the store in logs and metrics.
	Name() string
	// Close releases the store.
	Close() error
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long a denied client should wait, rounded up to whole seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(wait.Seconds())) * time.Second
}

// Limiter implements fixed-window rate limiting on top of a Store.
type Limiter struct {
	store   Store
	config  Config
	log     *zap.SugaredLogger
	now     func() time.Time
	denyLog rate.Sometimes
}

// New creates a limiter. A nil store selects a MemoryStore using cfg.CleanupInterval.
func New(cfg Config, store Store, log *zap.SugaredLogger) *Limiter {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if store == nil {
		store = NewMemoryStore(cfg.CleanupInterval)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Limiter{
		store:   store,
		config:  cfg,
		log:     log,
		now:     time.Now,
		denyLog: rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Store returns the backing store.
func (l *Limiter) Store() Store {
	return l.store
}

// Allow checks whether a request from clientID is admitted now.
func (l *Limiter) Allow(ctx context.Context, clientID string) (Decision, error) {
	return l.AllowAt(ctx, clientID, l.now())
}

// AllowAt checks whether a request from clientID is admitted at now.
// Denied requests still count against the window.
func (l *Limiter) AllowAt(ctx context.Context, clientID string, now time.Time) (Decision, error) {
	count, start, err := l.store.Hit(ctx, clientID, now, l.config.Window)
	if err != nil {
		return Decision{}, err
	}

	remaining := l.config.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(l.config.MaxRequests),
		Count:     count,
		Remaining: remaining,
		ResetAt:   start.Add(l.config.Window),
	}, nil
}

// Middleware returns a Gin middleware that applies per-client rate limiting.
// The client is identified by c.ClientIP, which honours the engine's trusted proxies.
// Store errors let the request through.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := system.GetReqLogger(c, l.log)
		ip := c.ClientIP()
		now := l.now()

		decision, err := l.AllowAt(c.Request.Context(), ip, now)
		if err != nil {
			metrics.RateLimitStoreErrors.WithLabelValues(l.store.Name()).Inc()
			log.Errorw("Rate limit store failed, allowing request", "store", l.store.Name(), "client", ip, "error", err)
			c.Next()
			return
		}

		c.Header(HeaderLimit, strconv.Itoa(l.config.MaxRequests))
		c.Header(HeaderRemaining, strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
			l.denyLog.Do(func() {
				log.Warnw("Rate limit exceeded", "client", ip, "count", decision.Count, "resetAt", decision.ResetAt)
			})
			c.Header(HeaderRetryAfter, strconv.Itoa(int(decision.RetryAfter(now).Seconds())))
			apiresponses.RespondTooManyRequests(c)
			c.Abort()
			return
		}

		metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
		c.Next()
	}
}

// Stop releases the backing store.
func (l *Limiter) Stop() error {
	return l.store.Close()
}
