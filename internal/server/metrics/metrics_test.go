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

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Signups.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Signups))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Signups))
}

func TestObserveHTTP(t *testing.T) {
	m := New()

	m.ObserveHTTP("GET", "/api/posts", 200, 15*time.Millisecond)
	m.ObserveHTTP("GET", "/api/posts", 200, 5*time.Millisecond)
	m.ObserveHTTP("GET", "/api/posts", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/posts", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/posts", "404")))
}

func TestObserveUpgrade_SkipsDuration(t *testing.T) {
	m := New()

	m.ObserveUpgrade("GET", "/ws")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/ws", "101")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.HTTPDuration))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.RelayFramesDropped.Inc()
	m.Logins.WithLabelValues("ok").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	assert.True(t, strings.Contains(text, "gophsocial_relay_frames_dropped_total 1"))
	assert.True(t, strings.Contains(text, `gophsocial_logins_total{result="ok"} 1`))
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
