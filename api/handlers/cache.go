package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/tracing"
)

// ClearCache drops every cached listing
func ClearCache(listingCache interfaces.ListingCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ClearCache", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		listingCache.Clear()
		c.JSON(http.StatusOK, gin.H{"status": "cache cleared"})
	}
}

// InvalidateAccountCache drops the cached listings of one account
func InvalidateAccountCache(listingCache interfaces.ListingCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "InvalidateAccountCache", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		email := c.Param("email")
		tracing.TagAccount(span, email)

		listingCache.InvalidateAccount(email)
		c.JSON(http.StatusOK, gin.H{"status": "cache invalidated", "email": email})
	}
}
