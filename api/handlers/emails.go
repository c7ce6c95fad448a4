package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mailvault/mailvault/interfaces"
	"github.com/mailvault/mailvault/internal/enum"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/tracing"
)

// ListEmails returns one folder view page for a single account
func ListEmails(emailService interfaces.EmailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListEmails", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		email := c.Param("email")
		tracing.TagAccount(span, email)

		view := enum.GetFolderView(c.DefaultQuery("view", "all"))
		page := intQuery(c, "page", 1)
		pageSize := intQuery(c, "pageSize", 0)

		listing, err := emailService.FetchListing(ctx, email, view, page, pageSize)
		if err != nil {
			if err == er.ErrAccountNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			if er.IsInvalidGrant(err) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, listing)
	}
}

type batchListRequest struct {
	Emails   []string `json:"emails" binding:"required"`
	View     string   `json:"view"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// BatchListEmails lists one folder view page for many accounts at once
func BatchListEmails(emailService interfaces.EmailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "BatchListEmails", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req batchListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(req.Emails) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "emails list is empty"})
			return
		}
		span.SetTag("accounts.count", len(req.Emails))

		results := emailService.FetchMany(ctx, req.Emails, enum.GetFolderView(req.View), req.Page, req.PageSize)
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

// GetEmail returns one fully fetched message
func GetEmail(emailService interfaces.EmailService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetEmail", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		email := c.Param("email")
		tracing.TagAccount(span, email)

		folder := c.DefaultQuery("folder", "INBOX")
		tracing.TagFolder(span, folder)

		uid, err := strconv.ParseUint(c.Param("uid"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uid"})
			return
		}

		detail, err := emailService.FetchMessage(ctx, email, folder, uint32(uid))
		if err != nil {
			if err == er.ErrAccountNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			// a permanent protocol rejection means the message or folder is gone
			if protoErr, ok := er.AsProtocolError(err); ok && protoErr.Permanent {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, detail)
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
