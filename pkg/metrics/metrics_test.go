package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSubmissionMetricsIncrement(t *testing.T) {
	lbl := "test-result"

	Submissions.WithLabelValues(lbl).Inc()
	if v := testutil.ToFloat64(Submissions.WithLabelValues(lbl)); v < 1 {
		t.Fatalf("expected Submissions >= 1, got %v", v)
	}

	RateLimitDecisions.WithLabelValues("denied").Add(2)
	if v := testutil.ToFloat64(RateLimitDecisions.WithLabelValues("denied")); v < 2 {
		t.Fatalf("expected RateLimitDecisions >= 2, got %v", v)
	}
}

func TestMailMetricsLabelCardinality(t *testing.T) {
	MailSendFailure.Reset()
	defer MailSendFailure.Reset()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MailSendFailure panicked: %v", r)
		}
	}()

	MailSendFailure.WithLabelValues("smtp.test").Inc()
	if v := testutil.ToFloat64(MailSendFailure.WithLabelValues("smtp.test")); v != 1 {
		t.Fatalf("expected metric value 1 after increment, got %v", v)
	}
}

func TestMetricsHandlerExposesRegisteredMetrics(t *testing.T) {
	MailSendSuccess.WithLabelValues("smtp.test").Inc()

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "contact_relay_mail_send_success_total") {
		t.Fatalf("expected mail success counter in exposition output")
	}
}
