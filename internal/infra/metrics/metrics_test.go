package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveCompute("crystal", "ok", 3*time.Millisecond)
	m.ObserveCompute("crystal", "invalid_input", 0)
	m.ObserveCompute("crystal", "ok", time.Millisecond)
	m.CacheEvent("tb", "hit")
	m.HTTPRequest("/api/tb/bands", "200")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.computeRequests.WithLabelValues("crystal", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.computeRequests.WithLabelValues("crystal", "invalid_input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("tb", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/tb/bands", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.computeDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveCompute("ewald", "ok", time.Second)
	m.CacheEvent("ewald", "miss")
	m.HTTPRequest("/", "404")
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveCompute("ewald", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `solidstate_compute_requests_total{op="ewald",status="ok"} 1`))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	t.Parallel()
	a, b := New(), New()
	a.CacheEvent("tb", "miss")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.cacheEvents.WithLabelValues("tb", "miss")))
}
