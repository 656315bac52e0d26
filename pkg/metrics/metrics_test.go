package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CallCounters(t *testing.T) {
	m := New(prometheus.NewRegistry(), "test")

	m.CallTransition("pending", "dialing")
	m.CallTransition("pending", "dialing")
	m.CallFinished("completed", 42)
	m.CallFinished("failed", 0)
	m.CallReconciled()
	m.LifecycleStarted()
	m.LifecycleStarted()
	m.LifecycleEnded()
	m.ProviderCallback("ringing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.callTransitionsTotal.WithLabelValues("pending", "dialing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsFinishedTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsFinishedTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsReconciledTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCallbacksTotal.WithLabelValues("ringing")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.callDuration))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.CallTransition("a", "b")
	m.CallFinished("completed", 1)
	m.LifecycleStarted()
	m.LifecycleEnded()
	m.CallReconciled()
	m.ProviderCallback("x")
	m.RecordHTTPRequest("GET", "/", 200, 0)
	assert.NotNil(t, m.Handler())
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry(), "test")

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/ping", "204")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `http_requests_total{endpoint="/ping",method="GET",service="test",status="204"} 1`))
}
