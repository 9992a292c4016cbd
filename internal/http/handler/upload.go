package handler

import (
	"errors"
	"net/http"

	"github.com/edirooss/rtsp2hls/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UploadHandler stores and serves overlay images.
//
// Supported operations:
//   - POST /api/upload-image          → multipart upload, field "file"
//   - GET  /static/uploads/{filename} → stored image
type UploadHandler struct {
	log *zap.Logger
	svc *service.UploadService
}

func NewUploadHandler(log *zap.Logger, svc *service.UploadService) *UploadHandler {
	return &UploadHandler{
		log: log.Named("upload"),
		svc: svc,
	}
}

// UploadImage handles POST /api/upload-image.
//
// Status Codes:
//   - 200 OK → {"url": ..., "filename": ...}
//   - 400 Bad Request → missing file, empty filename or unsupported type
//   - 413 Request Entity Too Large
//   - 500 Internal Server Error
func (h *UploadHandler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.Error(err)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": service.ErrFileTooLarge.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file provided"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No file selected"})
		return
	}
	if fh.Size > h.svc.MaxBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": service.ErrFileTooLarge.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	defer f.Close()

	up, err := h.svc.Save(fh.Filename, f)
	if err != nil {
		c.Error(err)
		switch {
		case errors.Is(err, service.ErrUnsupportedFileType):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, service.ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, up)
}

// ServeUpload handles GET /static/uploads/{filename}.
func (h *UploadHandler) ServeUpload(c *gin.Context) {
	f, fi, err := h.svc.Open(c.Param("filename"))
	if err != nil {
		if errors.Is(err, service.ErrUploadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
			return
		}
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	defer f.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, fi.Name(), fi.ModTime(), f)
}
