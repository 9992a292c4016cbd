package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequireValidOverlayID ensures the path param ":id" is a UUID. Anything
// else cannot name an overlay and is answered with 404.
func RequireValidOverlayID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := uuid.Validate(c.Param("id")); err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "overlay not found"})
			return
		}
		c.Next()
	}
}
