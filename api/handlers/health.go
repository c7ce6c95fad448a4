package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailvault/mailvault/interfaces"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/tracing"
)

// HealthCheck provides a simple liveness endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// RunHealthSweep triggers a full credential sweep
func RunHealthSweep(healthService interfaces.HealthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RunHealthSweep", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		summary, err := healthService.RunOnce(ctx)
		if err != nil {
			if err == er.ErrSweepInProgress {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

// CheckAccountHealth probes one account's credential
func CheckAccountHealth(healthService interfaces.HealthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "CheckAccountHealth", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		email := c.Param("email")
		tracing.TagAccount(span, email)

		check, err := healthService.CheckAccount(ctx, email)
		if err != nil {
			if err == er.ErrAccountNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, check)
	}
}
