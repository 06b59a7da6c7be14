package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuscore/campus-api/internal/service"
)

// Metrics records one observation per request, labelled by the route
// template so path parameters do not explode label cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			// Unmatched routes fall back to the raw path.
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
