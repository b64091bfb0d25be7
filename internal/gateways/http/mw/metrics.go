package mw

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records one finished request
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// Instrument reports every request by its route template, so path parameters do not explode label cardinality
func Instrument(o RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		o.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
