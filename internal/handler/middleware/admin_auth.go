package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const adminTokenHeader = "X-Admin-Token"

// AdminTokenMiddleware gates manual issuance behind the server-held admin
// credential. An empty configured token rejects everything: the surface
// fails closed rather than opening up.
func AdminTokenMiddleware(adminToken string, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AdminTokenMiddleware")
	return func(c *gin.Context) {
		tokenFromHeader := c.GetHeader(adminTokenHeader)

		if adminToken == "" || tokenFromHeader == "" ||
			subtle.ConstantTimeCompare([]byte(tokenFromHeader), []byte(adminToken)) != 1 {
			log.Warn("Rejected admin request",
				zap.Bool("token_configured", adminToken != ""),
				zap.Bool("header_present", tokenFromHeader != ""),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Next()
	}
}
