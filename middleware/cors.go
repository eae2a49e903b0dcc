package middleware

import (
	"strings"
	"time"

	"speed-enforcement-api/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupCORS admits the enforcement dashboard origins. A lone "*"
// allows everything but drops credentials, so a misconfigured
// wildcard cannot leak auth cookies.
func SetupCORS(cfg config.CORSConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	origins := strings.Split(cfg.AllowedOrigins, ",")
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}

	return cors.New(corsCfg)
}
