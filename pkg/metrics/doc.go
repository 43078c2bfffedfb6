// Package metrics defines Prometheus metrics for the contact relay,
// covering form submissions, rate limiting and mail delivery.
package metrics
