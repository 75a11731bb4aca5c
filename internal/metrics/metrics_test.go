package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequestCountsByEndpointAndCode(t *testing.T) {
	m := New()
	m.ObserveRequest("feed", 200, 10*time.Millisecond)
	m.ObserveRequest("feed", 200, 20*time.Millisecond)
	m.ObserveRequest("feed", 500, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("feed", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("feed", "500")))
}

func TestObserveUpload(t *testing.T) {
	m := New()
	m.ObserveUpload(true, 1024)
	m.ObserveUpload(false, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues("error")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.uploadedBytes))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("feed", 200, time.Second)
	m.ObserveUpload(true, 1)
	assert.NoError(t, m.WriteTextfile("/does/not/matter"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRequest("login", 200, time.Millisecond)

	path := filepath.Join(t.TempDir(), "bazaar.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bazaar_api_requests_total{code="200",endpoint="login"} 1`)
}
