package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/contact-relay/pkg/apiresponses"
	"github.com/telekom/contact-relay/pkg/contact"
	"github.com/telekom/contact-relay/pkg/mail"
	"github.com/telekom/contact-relay/pkg/metrics"
	"github.com/telekom/contact-relay/pkg/ratelimit"
	"github.com/telekom/contact-relay/pkg/system"
)

// DefaultMaxBodyBytes caps the JSON body of POST /send-mail.
const DefaultMaxBodyBytes int64 = 10 * 1024

// ContactController serves POST /send-mail: rate limit, validate, relay by mail.
type ContactController struct {
	limiter      *ratelimit.Limiter
	dispatcher   *mail.Dispatcher
	maxBodyBytes int64
	log          *zap.SugaredLogger
}

func NewContactController(limiter *ratelimit.Limiter, dispatcher *mail.Dispatcher, maxBodyBytes int64, log *zap.SugaredLogger) *ContactController {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ContactController{
		limiter:      limiter,
		dispatcher:   dispatcher,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

func (cc *ContactController) BasePath() string {
	return "/"
}

func (cc *ContactController) Handlers() []gin.HandlerFunc {
	return nil
}

// Register mounts the mail route. The rate limiter runs before any body work.
func (cc *ContactController) Register(rg *gin.RouterGroup) error {
	rg.POST("/send-mail", cc.limiter.Middleware(), cc.handleSendMail)
	return nil
}

func (cc *ContactController) handleSendMail(c *gin.Context) {
	log := system.GetReqLogger(c, cc.log)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cc.maxBodyBytes)

	var submission contact.Submission
	if err := c.ShouldBindJSON(&submission); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.Submissions.WithLabelValues("too_large").Inc()
			log.Infow("Rejected oversized body", "limit", tooLarge.Limit)
			apiresponses.RespondPayloadTooLarge(c)
			return
		}
		metrics.Submissions.WithLabelValues("bad_request").Inc()
		log.Debugw("Rejected malformed body", "error", err)
		apiresponses.RespondBadRequest(c, apiresponses.MsgInvalidBody)
		return
	}

	normalized, err := contact.Validate(submission)
	if err != nil {
		var ve *contact.ValidationError
		if errors.As(err, &ve) {
			metrics.Submissions.WithLabelValues("invalid").Inc()
			log.Debugw("Rejected submission", "field", ve.Field, "reason", ve.Reason)
			apiresponses.RespondBadRequest(c, ve.Reason)
			return
		}
		metrics.Submissions.WithLabelValues("error").Inc()
		apiresponses.RespondInternalError(c, "validate submission", err, log)
		return
	}

	payload, err := cc.dispatcher.BuildPayload(normalized)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		apiresponses.RespondInternalError(c, "build mail", err, log)
		return
	}

	// a client that hangs up mid-send must not abort a delivery already under way
	if err := cc.dispatcher.Send(context.WithoutCancel(c.Request.Context()), payload); err != nil {
		metrics.Submissions.WithLabelValues("send_failed").Inc()
		apiresponses.RespondInternalError(c, "send mail", err, log)
		return
	}

	metrics.Submissions.WithLabelValues("sent").Inc()
	log.Infow("Contact message relayed")
	apiresponses.RespondSuccess(c, apiresponses.MsgMailSent)
}
