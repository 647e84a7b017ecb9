package rmmetrics

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IterationSubmitted()
	m.IterationSubmitted()
	m.TransientError("submit")
	m.Polled(3)
	m.Finished("converged")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Iterations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transient.WithLabelValues("submit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Polls))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Confirmed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues("converged")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IterationSubmitted()
		m.TransientError("poll")
		m.Polled(1)
		m.Finished("died")
	})
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg).IterationSubmitted()
	srv := httptest.NewServer(Router(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rankmaniac_iterations_submitted_total 1")
}
