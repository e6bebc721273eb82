package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.BatchRefresh(ResultCreated)
	m.BatchRefresh(ResultCreated)
	m.BatchRefresh(ResultReused)
	m.BatchGenerated(12)
	m.ObserveFetch(300 * time.Millisecond)
	m.AssignmentsCreated(7)
	m.AssignmentsCreated(0)
	m.Response("accepted", false)
	m.Response("accepted", true)
	m.OnboardingCompleted()

	require.Equal(t, 2.0, testutil.ToFloat64(m.batchRefresh.WithLabelValues(ResultCreated)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.batchRefresh.WithLabelValues(ResultReused)))
	require.Equal(t, 12.0, testutil.ToFloat64(m.batchSize))
	require.Equal(t, 7.0, testutil.ToFloat64(m.assignmentsCreated))
	require.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("accepted", "duplicate")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.onboardingCompleted))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.BatchRefresh(ResultCreated)
		m.BatchGenerated(1)
		m.ObserveFetch(time.Second)
		m.AssignmentsCreated(1)
		m.Response("rejected", false)
		m.OnboardingCompleted()
	})
	require.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.BatchRefresh(ResultGenerationError)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `onboarding_batch_refresh_total{result="generation_error"} 1`))
}
