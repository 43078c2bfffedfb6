package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Submission outcomes: sent, invalid, bad_request, too_large, send_failed
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_relay_submissions_total",
		Help: "Total number of contact form submissions by outcome",
	}, []string{"result"})

	// Rate limit metrics
	RateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_relay_ratelimit_decisions_total",
		Help: "Total number of rate limit decisions by outcome (allowed/denied)",
	}, []string{"decision"})
	RateLimitStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_relay_ratelimit_store_errors_total",
		Help: "Total number of rate limit store errors; requests are let through when this happens",
	}, []string{"store"})
	RateLimitTrackedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "contact_relay_ratelimit_tracked_clients",
		Help: "Number of client windows currently held by the in-memory rate limit store",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_relay_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_relay_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
	MailSendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contact_relay_mail_send_duration_seconds",
		Help:    "Time spent handing a message to the SMTP server",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"host"})
	MailVerifyFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_relay_mail_verify_failure_total",
		Help: "Total number of failed SMTP connectivity checks",
	}, []string{"host"})
)

func init() {
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(RateLimitDecisions)
	prometheus.MustRegister(RateLimitStoreErrors)
	prometheus.MustRegister(RateLimitTrackedClients)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailSendDuration)
	prometheus.MustRegister(MailVerifyFailure)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
