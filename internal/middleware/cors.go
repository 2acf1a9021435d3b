// internal/middleware/cors.go
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages",
			"X-402-Version", "X-402-Protocol", "X-402-Challenge", "X-402-Recipient",
			"X-402-Amount", "X-402-Currency", "X-402-Description", "X-402-Expires",
		},
		MaxAge: 12 * time.Hour,
	})
}
