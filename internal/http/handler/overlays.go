package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/edirooss/rtsp2hls/internal/domain/overlay"
	"github.com/edirooss/rtsp2hls/internal/http/dto"
	"github.com/edirooss/rtsp2hls/internal/repo"
	"github.com/edirooss/rtsp2hls/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// OverlaysHandler provides RESTful HTTP handlers for Overlay resources.
//
// Supported operations:
//   - GET    /api/overlays       → List all overlays
//   - POST   /api/overlays       → Create a new overlay
//   - GET    /api/overlays/{id}  → Retrieve an overlay by ID
//   - PUT    /api/overlays/{id}  → Update an existing overlay
//   - PATCH  /api/overlays/{id}  → Update an existing overlay
//   - DELETE /api/overlays/{id}  → Remove an overlay
//
// Notes:
//   - PUT and PATCH both merge the body into the stored overlay; the player
//     UI sends partial bodies with PUT.
type OverlaysHandler struct {
	log *zap.Logger
	svc *service.OverlayService
}

// NewOverlaysHandler constructs an OverlaysHandler instance.
func NewOverlaysHandler(log *zap.Logger, svc *service.OverlayService) *OverlaysHandler {
	return &OverlaysHandler{
		log: log.Named("overlays"),
		svc: svc,
	}
}

// GetOverlayList handles GET /api/overlays.
//
// Behavior:
//   - Returns all overlays, newest first.
//   - Adds `X-Total-Count` header.
//
// Status Codes:
//   - 200 OK  → JSON array of overlays
//   - 500 Internal Server Error
func (h *OverlaysHandler) GetOverlayList(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if list == nil {
		list = []*overlay.Overlay{}
	}
	c.Header("X-Total-Count", strconv.Itoa(len(list)))
	c.JSON(http.StatusOK, list)
}

// CreateOverlay handles POST /api/overlays.
//
// Behavior:
//   - Applies the body on top of the overlay defaults.
//   - Responds with resource location in `Location` header.
//
// Status Codes:
//   - 201 Created → JSON of created overlay
//   - 400 Bad Request → Invalid JSON or schema
//   - 413 Request Entity Too Large
//   - 422 Unprocessable Entity → Validation failed
//   - 500 Internal Server Error
func (h *OverlaysHandler) CreateOverlay(c *gin.Context) {
	var req dto.OverlayPatch
	if err := bind(c.Request, &req); err != nil {
		c.Error(err)
		c.JSON(bindStatus(err), gin.H{"message": err.Error()})
		return
	}

	o := h.svc.New()
	if err := req.Apply(o); err != nil {
		c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := h.svc.Create(c.Request.Context(), o); err != nil {
		c.Error(err)
		c.JSON(overlayErrorStatus(err), gin.H{"message": err.Error()})
		return
	}

	c.Header("Location", "/api/overlays/"+o.ID)
	c.JSON(http.StatusCreated, o)
}

// GetOverlay handles GET /api/overlays/{id}.
//
// Status Codes:
//   - 200 OK → JSON of overlay
//   - 404 Not Found → Overlay not found
//   - 500 Internal Server Error
func (h *OverlaysHandler) GetOverlay(c *gin.Context) {
	id := c.Param("id") // already validated by middleware

	o, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		c.JSON(overlayErrorStatus(err), gin.H{"message": overlayErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, o)
}

// ModifyOverlay handles PUT and PATCH /api/overlays/{id}.
//
// Behavior:
//   - Omitted fields keep their stored value; null resets nullable fields.
//   - id and created_at are never changed.
//
// Status Codes:
//   - 200 OK → JSON of updated overlay
//   - 400 Bad Request → Invalid JSON, schema or null on a required field
//   - 404 Not Found → Overlay not found
//   - 413 Request Entity Too Large
//   - 422 Unprocessable Entity → Validation failed
//   - 500 Internal Server Error
func (h *OverlaysHandler) ModifyOverlay(c *gin.Context) {
	id := c.Param("id")

	var req dto.OverlayPatch
	if err := bind(c.Request, &req); err != nil {
		c.Error(err)
		c.JSON(bindStatus(err), gin.H{"message": err.Error()})
		return
	}

	o, err := h.svc.Modify(c.Request.Context(), id, req.Apply)
	if err != nil {
		c.Error(err)
		c.JSON(overlayErrorStatus(err), gin.H{"message": overlayErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, o)
}

// DeleteOverlay handles DELETE /api/overlays/{id}.
//
// Status Codes:
//   - 200 OK → {"message": ..., "id": ...}
//   - 404 Not Found → Overlay not found
//   - 500 Internal Server Error
func (h *OverlaysHandler) DeleteOverlay(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		c.JSON(overlayErrorStatus(err), gin.H{"message": overlayErrorMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Overlay deleted successfully", "id": id})
}

func overlayErrorStatus(err error) int {
	switch {
	case errors.Is(err, repo.ErrOverlayNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidPatch):
		return http.StatusBadRequest
	case overlay.IsValidationError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func overlayErrorMessage(err error) string {
	if errors.Is(err, repo.ErrOverlayNotFound) {
		return repo.ErrOverlayNotFound.Error()
	}
	return err.Error()
}
