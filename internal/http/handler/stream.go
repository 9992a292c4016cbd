package handler

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/edirooss/rtsp2hls/internal/infrastructure/segmentdir"
	"github.com/edirooss/rtsp2hls/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
	hlsMIMEType         = "application/x-mpegURL"
)

// StreamHandler serves the HLS output and the stream's health.
//
// Supported operations:
//   - GET /hls/{filename}        → playlist or segment from the output directory
//   - GET /api/stream/status     → supervisor + publishing status
//   - GET /api/stream/logs       → transcoder stderr of the latest run
//   - GET /api/stream-config     → player configuration
type StreamHandler struct {
	log    *zap.Logger
	status *service.StatusService
	dir    *segmentdir.Manager

	publicURL   string
	description string
}

// NewStreamHandler constructs a StreamHandler. publicURL may be empty, in
// which case the playlist URL is derived from the request.
func NewStreamHandler(log *zap.Logger, status *service.StatusService, dir *segmentdir.Manager, publicURL, description string) *StreamHandler {
	return &StreamHandler{
		log:         log.Named("stream"),
		status:      status,
		dir:         dir,
		publicURL:   publicURL,
		description: description,
	}
}

// ServeHLS handles GET /hls/{filename}. CORS headers come from the router.
//
// Status Codes:
//   - 200 OK → file content (conditional requests answered with 304)
//   - 404 Not Found → unknown file, or playlist not yet published
//   - 500 Internal Server Error
func (h *StreamHandler) ServeHLS(c *gin.Context) {
	name := c.Param("filename")

	if name == segmentdir.PlaylistName && !h.status.Available(c.Request.Context()) {
		c.JSON(http.StatusNotFound, gin.H{"message": "stream not available yet"})
		return
	}

	f, fi, err := h.dir.Open(name)
	if err != nil {
		if errors.Is(err, segmentdir.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": segmentdir.ErrFileNotFound.Error()})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	defer f.Close()

	if path.Ext(name) == ".m3u8" {
		c.Header("Content-Type", playlistContentType)
	} else {
		c.Header("Content-Type", segmentContentType)
	}
	// segment names repeat across transcoder restarts
	c.Header("Cache-Control", "no-cache")

	http.ServeContent(c.Writer, c.Request, name, fi.ModTime(), f)
}

// Status handles GET /api/stream/status.
func (h *StreamHandler) Status(c *gin.Context) {
	st := h.status.Snapshot(c.Request.Context())
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, st)
}

// Logs handles GET /api/stream/logs?lines=N.
//
// Behavior:
//   - Returns up to N stderr lines of the latest transcoder run, newest first.
//   - N defaults to (and is clamped at) the retained line count.
//
// Status Codes:
//   - 200 OK → {"lines": [...]}
//   - 400 Bad Request → lines is not an integer
func (h *StreamHandler) Logs(c *gin.Context) {
	n := 0
	if raw := c.Query("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "lines must be a non-negative integer"})
			return
		}
		n = v
	}

	lines := h.status.Logs(n)
	if lines == nil {
		lines = []string{}
	}
	c.Header("X-Total-Count", strconv.Itoa(len(lines)))
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

// Config handles GET /api/stream-config.
func (h *StreamHandler) Config(c *gin.Context) {
	u := h.publicURL
	if u == "" {
		scheme := "http"
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		u = scheme + "://" + c.Request.Host + "/hls/" + segmentdir.PlaylistName
	}
	c.JSON(http.StatusOK, gin.H{
		"hls_url":     u,
		"type":        hlsMIMEType,
		"description": h.description,
	})
}
