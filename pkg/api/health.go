package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telekom/contact-relay/pkg/system"
	"github.com/telekom/contact-relay/pkg/version"
)

// RootMessage is the liveness text served on GET /.
const RootMessage = "Mail API running"

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Build  version.BuildInfo `json:"build"`
}

func (s *Server) getRoot(c *gin.Context) {
	c.String(http.StatusOK, RootMessage)
}

func (s *Server) getHealth(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Build: version.GetBuildInfo()}

	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(ctx); err != nil {
				system.GetReqLogger(c, s.log.Sugar()).Warnw("Health check failed", "check", name, "error", err)
				resp.Checks[name] = "failing"
				// the rate limiter fails open, so a failing check degrades but does not take the relay out
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	c.JSON(http.StatusOK, resp)
}
