package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the given origins; "*" or an empty list allows any.
func CORS(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	config.ExposeHeaders = []string{RequestIDHeader, "Content-Disposition"}

	return cors.New(config)
}
