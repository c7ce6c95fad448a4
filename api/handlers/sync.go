package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/tracing"
)

type syncRequest struct {
	Policy string `json:"policy"`
}

// PushBackup writes the local registry into the backup store
func PushBackup(syncService interfaces.SyncService, defaultPolicy string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "PushBackup", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req syncRequest
		_ = c.ShouldBindJSON(&req)
		policy := resolvePolicy(req.Policy, defaultPolicy)
		span.SetTag("policy", policy.String())

		outcome, err := syncService.Push(ctx, policy)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, er.ErrSyncUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, outcome)
	}
}

// PullBackup applies backup records onto the local registry
func PullBackup(syncService interfaces.SyncService, listingCache interfaces.ListingCache, defaultPolicy string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "PullBackup", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req syncRequest
		_ = c.ShouldBindJSON(&req)
		policy := resolvePolicy(req.Policy, defaultPolicy)
		span.SetTag("policy", policy.String())

		outcome, err := syncService.Pull(ctx, policy)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, er.ErrSyncUnavailable) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// pulled credentials may differ from the ones the cache was built on
		if outcome.Updated > 0 || outcome.Removed > 0 {
			listingCache.Clear()
		}

		c.JSON(http.StatusOK, outcome)
	}
}

func resolvePolicy(requested, fallback string) enum.ConflictPolicy {
	if requested != "" {
		return enum.GetConflictPolicy(requested)
	}
	return enum.GetConflictPolicy(fallback)
}
