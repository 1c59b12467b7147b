package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drilonhametaj25/client-sniper-sub007/internal/config"
	"github.com/drilonhametaj25/client-sniper-sub007/internal/model"
)

func TestObserveAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveAttempt(model.SourceMaps, &model.ScrapeAttempt{
		Status:        model.AttemptSuccess,
		RecordsFound:  10,
		RecordsNew:    4,
		RecordsMerged: 6,
	}, 2.5)
	m.ObserveAttempt(model.SourceMaps, &model.ScrapeAttempt{
		Status: model.AttemptFailed,
	}, 1.0)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("maps", "success")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("maps", "failed")), 0.001)
	assert.InDelta(t, 10, testutil.ToFloat64(m.RecordsFound.WithLabelValues("maps")), 0.001)
	assert.InDelta(t, 4, testutil.ToFloat64(m.RecordsNew.WithLabelValues("maps")), 0.001)
	assert.InDelta(t, 6, testutil.ToFloat64(m.RecordsMerged.WithLabelValues("maps")), 0.001)
}

func TestListenerServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.EmptyQueueTotal.Inc()

	l := NewListener(config.MetricsConfig{ListenAddr: ":0"}, reg)
	srv := httptest.NewServer(l.srv.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sniper_empty_queue_total 1")
}

func TestListenerShutdownOnCancel(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := NewListener(config.MetricsConfig{ListenAddr: "127.0.0.1:0"}, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not shut down")
	}
}
