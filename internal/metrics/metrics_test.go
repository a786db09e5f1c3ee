package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRemote(t *testing.T) {
	before := testutil.ToFloat64(remoteCalls.WithLabelValues("firestore", "getById", "error"))
	ObserveRemote("firestore", "getById", "error", 20*time.Millisecond)
	after := testutil.ToFloat64(remoteCalls.WithLabelValues("firestore", "getById", "error"))
	assert.Equal(t, before+1, after)
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHTTP(http.MethodGet, "/v1/committees", http.StatusOK, time.Millisecond)
	ObserveStep("send_email", "failed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(body, "munreg_http_requests_total"))
	assert.True(t, strings.Contains(body, `munreg_assignment_steps_total{status="failed",step="send_email"}`))
}
