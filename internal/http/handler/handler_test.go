package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edirooss/rtsp2hls/internal/domain/overlay"
	"github.com/edirooss/rtsp2hls/internal/http/middleware"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/processmgr"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/segmentdir"
	"github.com/edirooss/rtsp2hls/internal/repo"
	"github.com/edirooss/rtsp2hls/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeSupervisor struct {
	snap  processmgr.Snapshot
	lines []string
}

func (f *fakeSupervisor) Snapshot() processmgr.Snapshot { return f.snap }
func (f *fakeSupervisor) DiagnosticCapacity() int       { return len(f.lines) }
func (f *fakeSupervisor) Diagnostics(n int) []string {
	if n > len(f.lines) {
		n = len(f.lines)
	}
	return f.lines[:n]
}

func do(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health)

	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

// ---- stream ----

func newStreamEngine(t *testing.T, sup *fakeSupervisor, publicURL string) (*gin.Engine, *segmentdir.Manager) {
	t.Helper()
	dir := segmentdir.NewManager(zap.NewNop(), t.TempDir())
	require.NoError(t, dir.EnsureReady())
	status := service.NewStatusService(zap.NewNop(), sup, dir, service.StatusOptions{})
	h := NewStreamHandler(zap.NewNop(), status, dir, publicURL, "test stream")

	r := gin.New()
	r.GET("/hls/:filename", h.ServeHLS)
	r.GET("/api/stream/status", h.Status)
	r.GET("/api/stream/logs", h.Logs)
	r.GET("/api/stream-config", h.Config)
	return r, dir
}

func TestServeHLS_PlaylistNotYetPublished(t *testing.T) {
	r, _ := newStreamEngine(t, &fakeSupervisor{}, "")

	w := do(t, r, http.MethodGet, "/hls/index.m3u8", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeHLS_PlaylistAndSegment(t *testing.T) {
	r, dir := newStreamEngine(t, &fakeSupervisor{}, "")
	require.NoError(t, os.WriteFile(dir.PlaylistPath(), []byte("#EXTM3U\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir.Dir(), "segment_00001.ts"), []byte("ts"), 0o644))

	w := do(t, r, http.MethodGet, "/hls/index.m3u8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "#EXTM3U\n", w.Body.String())

	w = do(t, r, http.MethodGet, "/hls/segment_00001.ts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/mp2t", w.Header().Get("Content-Type"))
	assert.Equal(t, "ts", w.Body.String())

	w = do(t, r, http.MethodGet, "/hls/segment_00099.ts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/hls/..%2Fsecret.ts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamStatus(t *testing.T) {
	sup := &fakeSupervisor{snap: processmgr.Snapshot{
		State:      processmgr.StateBackoff,
		RetryState: processmgr.RetryState{ConsecutiveFailures: 3},
		LastExit:   &processmgr.ProcessInfo{ExitCode: 1, LastError: "Connection refused"},
		Spawns:     3,
	}}
	r, _ := newStreamEngine(t, sup, "")

	w := do(t, r, http.MethodGet, "/api/stream/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "backoff", body["state"])
	assert.EqualValues(t, 3, body["consecutive_failures"])
	assert.EqualValues(t, 1, body["last_exit_code"])
	assert.Equal(t, "Connection refused", body["last_error"])
	assert.Equal(t, false, body["is_publishing"])
}

func TestStreamLogs(t *testing.T) {
	sup := &fakeSupervisor{lines: []string{"c", "b", "a"}}
	r, _ := newStreamEngine(t, sup, "")

	w := do(t, r, http.MethodGet, "/api/stream/logs?lines=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"c", "b"}, decode[map[string][]string](t, w)["lines"])
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))

	w = do(t, r, http.MethodGet, "/api/stream/logs", nil)
	assert.Equal(t, []string{"c", "b", "a"}, decode[map[string][]string](t, w)["lines"])

	w = do(t, r, http.MethodGet, "/api/stream/logs?lines=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamConfig(t *testing.T) {
	r, _ := newStreamEngine(t, &fakeSupervisor{}, "")
	w := do(t, r, http.MethodGet, "/api/stream-config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "http://example.com/hls/index.m3u8", body["hls_url"])
	assert.Equal(t, "application/x-mpegURL", body["type"])

	r, _ = newStreamEngine(t, &fakeSupervisor{}, "https://cdn.example.net/live/index.m3u8")
	w = do(t, r, http.MethodGet, "/api/stream-config", nil)
	assert.Equal(t, "https://cdn.example.net/live/index.m3u8", decode[map[string]string](t, w)["hls_url"])
}

// ---- overlays ----

func newOverlayEngine() *gin.Engine {
	svc := service.NewOverlayService(zap.NewNop(), repo.NewMemoryOverlayStore(zap.NewNop()))
	h := NewOverlaysHandler(zap.NewNop(), svc)

	r := gin.New()
	r.GET("/api/overlays", h.GetOverlayList)
	r.POST("/api/overlays", h.CreateOverlay)
	byID := r.Group("/api/overlays/:id", middleware.RequireValidOverlayID())
	byID.GET("", h.GetOverlay)
	byID.PUT("", h.ModifyOverlay)
	byID.PATCH("", h.ModifyOverlay)
	byID.DELETE("", h.DeleteOverlay)
	return r
}

func TestOverlays_CRUD(t *testing.T) {
	r := newOverlayEngine()

	w := do(t, r, http.MethodGet, "/api/overlays", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	assert.Equal(t, "0", w.Header().Get("X-Total-Count"))

	w = do(t, r, http.MethodPost, "/api/overlays", map[string]any{"name": "logo", "content": "hello", "x": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[overlay.Overlay](t, w)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "/api/overlays/"+created.ID, w.Header().Get("Location"))
	assert.Equal(t, "logo", created.Name)
	assert.Equal(t, 10, created.X)
	assert.Equal(t, overlay.DefaultWidth, created.Width)
	assert.Equal(t, overlay.KindText, created.Type)

	path := "/api/overlays/" + created.ID

	w = do(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[overlay.Overlay](t, w).ID)

	// PUT merges like PATCH
	w = do(t, r, http.MethodPut, path, map[string]any{"y": 20})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[overlay.Overlay](t, w)
	assert.Equal(t, 10, got.X)
	assert.Equal(t, 20, got.Y)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, created.CreatedAt, got.CreatedAt)
	assert.NotNil(t, got.UpdatedAt)

	w = do(t, r, http.MethodPatch, path, map[string]any{"content": nil})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[overlay.Overlay](t, w).Content)

	w = do(t, r, http.MethodGet, "/api/overlays", nil)
	assert.Equal(t, "1", w.Header().Get("X-Total-Count"))

	w = do(t, r, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "Overlay deleted successfully", body["message"])
	assert.Equal(t, created.ID, body["id"])

	w = do(t, r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOverlays_Errors(t *testing.T) {
	r := newOverlayEngine()

	w := do(t, r, http.MethodPost, "/api/overlays", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/overlays", map[string]any{"unknown": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/overlays", map[string]any{"name": nil})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/overlays", map[string]any{"type": "video"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodGet, "/api/overlays/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPatch, "/api/overlays/0b7e4c0e-3f43-4d5a-9d2a-1c1f7e0b7a11", map[string]any{"x": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/overlays", map[string]any{})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[overlay.Overlay](t, w).ID

	w = do(t, r, http.MethodPatch, "/api/overlays/"+id, map[string]any{"width": nil})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPatch, "/api/overlays/"+id, map[string]any{"width": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// ---- uploads ----

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newUploadEngine(t *testing.T, maxBytes int64) *gin.Engine {
	t.Helper()
	svc := service.NewUploadService(zap.NewNop(), t.TempDir(), maxBytes)
	require.NoError(t, svc.EnsureDir())
	h := NewUploadHandler(zap.NewNop(), svc)

	r := gin.New()
	r.POST("/api/upload-image", h.UploadImage)
	r.GET("/static/uploads/:filename", h.ServeUpload)
	return r
}

func upload(t *testing.T, r http.Handler, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/upload-image", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadImage_StoreAndServe(t *testing.T) {
	r := newUploadEngine(t, 1<<20)

	w := upload(t, r, "file", "my logo.png", pngHeader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	up := decode[service.Upload](t, w)
	assert.True(t, strings.HasSuffix(up.Filename, "_my_logo.png"), up.Filename)
	assert.Equal(t, service.UploadURLPrefix+up.Filename, up.URL)

	w = do(t, r, http.MethodGet, up.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngHeader, w.Body.Bytes())

	w = do(t, r, http.MethodGet, "/static/uploads/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadImage_Rejections(t *testing.T) {
	r := newUploadEngine(t, 64)

	w := upload(t, r, "other", "a.png", pngHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing file field")

	w = upload(t, r, "file", "a.exe", pngHeader)
	assert.Equal(t, http.StatusBadRequest, w.Code, "extension")

	w = upload(t, r, "file", "a.png", []byte("just text, not an image"))
	assert.Equal(t, http.StatusBadRequest, w.Code, "content sniff")

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 128)...)
	w = upload(t, r, "file", "a.png", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
