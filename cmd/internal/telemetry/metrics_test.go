package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.AuthEvent("login", "ok")
	m.AccessDecision("owner")
	m.Swept(3)
	m.Throttle("ip")
	m.ObserveHTTP("GET", "/me", 200, time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetrics_CountsAndExposes(t *testing.T) {
	m := NewMetrics()

	m.AuthEvent("login", "ok")
	m.AuthEvent("login", "ok")
	m.AuthEvent("refresh", "invalid_token")
	m.AccessDecision("access expired")
	m.Swept(4)
	m.Swept(-1)
	m.ObserveHTTP("GET", "/me", 200, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthEvents.WithLabelValues("login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AccessDecisions.WithLabelValues("access expired")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SessionsSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/me", "200")))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "memorybook_auth_events_total")
	assert.Contains(t, rr.Body.String(), "memorybook_sessions_swept_total 4")
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "memorybook"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
