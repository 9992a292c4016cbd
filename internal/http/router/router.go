// Package router assembles the gin engine: middleware chain and routes.
package router

import (
	"net/http"
	"time"

	"github.com/edirooss/rtsp2hls/internal/http/handler"
	mw "github.com/edirooss/rtsp2hls/internal/http/middleware"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/metrics"
	"github.com/edirooss/rtsp2hls/internal/infrastructure/segmentdir"
	"github.com/edirooss/rtsp2hls/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxBodyBytes       = 10 << 20
	maxUploadsInFlight = 4
	streamDescription  = "Live RTSP camera stream converted to HLS"
)

// Deps are the services the routes are bound to.
type Deps struct {
	Status   *service.StatusService
	Overlays *service.OverlayService
	Uploads  *service.UploadService
	Segments *segmentdir.Manager
	Metrics  *metrics.Metrics

	// PublicHLSURL is advertised by /api/stream-config when set.
	PublicHLSURL string
	// TrustedProxies are honored for client IP and scheme when not in debug.
	TrustedProxies []string
}

// New returns the configured engine. debug selects the permissive dev setup.
func New(log *zap.Logger, debug bool, d Deps) *gin.Engine {
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // outermost
		r.Use(mw.RequestID())

		// The player is embedded from arbitrary origins; nothing is cookie-based.
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"X-Request-ID", "Content-Type", "Range"},
			ExposeHeaders:   []string{"X-Request-ID", "X-Total-Count", "Content-Length", "Content-Range"},
			MaxAge:          12 * time.Hour,
		}))

		if !debug { // behind a TLS-terminating proxy
			if len(d.TrustedProxies) > 0 {
				if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
					log.Warn("invalid trusted proxies", zap.Error(err))
				}
			}
			r.Use(secure.New(secure.Config{
				ContentTypeNosniff: true,
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
			}))
		}

		if d.Metrics != nil {
			r.Use(d.Metrics.Middleware())
		}
		r.Use(mw.AccessLog(log.Named("http"), "/health", "/hls/:filename", "/metrics"))
		r.Use(mw.LimitBody(maxBodyBytes))
	}

	// Register route handlers
	{
		r.GET("/health", handler.Health)

		{
			streamhndlr := handler.NewStreamHandler(log, d.Status, d.Segments, d.PublicHLSURL, streamDescription)
			r.GET("/hls/:filename", streamhndlr.ServeHLS)
			r.GET("/api/stream/status", streamhndlr.Status)
			r.GET("/api/stream/logs", streamhndlr.Logs)
			r.GET("/api/stream-config", streamhndlr.Config)
		}

		{
			overlayshndlr := handler.NewOverlaysHandler(log, d.Overlays)

			// --- Overlay collection ---
			r.GET("/api/overlays", overlayshndlr.GetOverlayList) // get list
			r.POST("/api/overlays", overlayshndlr.CreateOverlay)  // create one

			// --- Overlay resource ---
			requireValidID := mw.RequireValidOverlayID()
			r.GET("/api/overlays/:id", requireValidID, overlayshndlr.GetOverlay)       // get one
			r.PUT("/api/overlays/:id", requireValidID, overlayshndlr.ModifyOverlay)    // update one
			r.PATCH("/api/overlays/:id", requireValidID, overlayshndlr.ModifyOverlay)  // update one
			r.DELETE("/api/overlays/:id", requireValidID, overlayshndlr.DeleteOverlay) // delete one
		}

		{
			uploadhndlr := handler.NewUploadHandler(log, d.Uploads)
			r.POST("/api/upload-image", mw.LimitConcurrentRequests(maxUploadsInFlight), uploadhndlr.UploadImage)
			r.GET("/static/uploads/:filename", uploadhndlr.ServeUpload)
		}

		if d.Metrics != nil {
			r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
		}

		r.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
		})
	}

	return r
}
