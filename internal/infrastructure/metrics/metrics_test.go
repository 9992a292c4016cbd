package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edirooss/rtsp2hls/internal/infrastructure/processmgr"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserver(t *testing.T) {
	m := New()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("idle")))

	m.StateChanged(processmgr.StateIdle, processmgr.StateStarting)
	m.StateChanged(processmgr.StateStarting, processmgr.StateRunning)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("idle")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.state.WithLabelValues("starting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state.WithLabelValues("running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("running")))

	m.ProcessExited(processmgr.SpawnFailureExitCode, 0)
	m.ProcessExited(1, 42*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exits.WithLabelValues("spawn_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exits.WithLabelValues("exit")))

	m.SetPublishing(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishing))
	m.SetPublishing(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.publishing))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/hls/:filename", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for n := 0; n < 2; n++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hls/index.m3u8", nil))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/hls/:filename", "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "rtsp2hls_supervisor_state"))
	assert.True(t, strings.Contains(body, `route="/hls/:filename"`))
}
