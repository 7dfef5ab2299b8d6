package handler

import (
	"net/http"
	"time"

	"qr-transfer-authorizer/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck returns a handler that deep-pings every registered dependency.
// Any failing dependency degrades the overall status and flips the response
// to 503 so load balancers stop routing here.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		status := "healthy"
		deps := make(map[string]string, len(checkers))
		for _, checker := range checkers {
			if err := checker.Ping(ctx); err != nil {
				deps[checker.Name()] = "unreachable"
				status = "degraded"
				continue
			}
			deps[checker.Name()] = "ok"
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":       status,
			"dependencies": deps,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
