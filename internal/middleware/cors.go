package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the dashboard frontend and GitHub webhook deliveries to reach
// the API from any origin. The extra headers cover webhook signatures and
// event metadata.
func CORS() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = []string{"*"}
	cfg.AllowCredentials = true
	cfg.AddAllowMethods("OPTIONS")
	cfg.AddAllowHeaders(
		"Accept",
		"Authorization",
		"X-Requested-With",
		"X-GitHub-Event",
		"X-GitHub-Delivery",
		"X-Hub-Signature",
		"X-Hub-Signature-256",
	)
	return cors.New(cfg)
}
