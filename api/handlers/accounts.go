package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mailvault/mailvault/interfaces"
	er "github.com/mailvault/mailvault/internal/errors"
	"github.com/mailvault/mailvault/internal/models"
	"github.com/mailvault/mailvault/internal/tracing"
)

// ListAccounts returns every registered account, credentials redacted
func ListAccounts(accountRepository interfaces.AccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListAccounts", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := accountRepository.List(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"accounts": redactAccounts(accounts)})
	}
}

// UpsertAccount registers a new account or rewrites an existing one
func UpsertAccount(accountRepository interfaces.AccountRepository, listingCache interfaces.ListingCache, oauthService interfaces.OAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "UpsertAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var account models.Account
		if err := c.ShouldBindJSON(&account); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tracing.TagAccount(span, account.Email)

		if err := accountRepository.Upsert(ctx, &account); err != nil {
			if err == er.ErrAccountIncomplete {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// fresh credentials invalidate everything derived from the old ones
		oauthService.InvalidateToken(account.Email)
		listingCache.InvalidateAccount(account.Email)

		c.JSON(http.StatusCreated, gin.H{"status": "account saved", "email": account.Email})
	}
}

// RemoveAccount soft-deletes an account
func RemoveAccount(accountRepository interfaces.AccountRepository, listingCache interfaces.ListingCache, oauthService interfaces.OAuthService, pool interfaces.ConnectionPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RemoveAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		email := c.Param("email")
		tracing.TagAccount(span, email)

		if err := accountRepository.Remove(ctx, email); err != nil {
			if err == er.ErrAccountNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		oauthService.InvalidateToken(email)
		listingCache.InvalidateAccount(email)
		pool.CloseAccount(email)

		c.JSON(http.StatusOK, gin.H{"status": "account removed", "email": email})
	}
}

type accountView struct {
	Email            string     `json:"email"`
	ClientID         string     `json:"clientId"`
	Tags             []string   `json:"tags"`
	Note             *string    `json:"note,omitempty"`
	CredentialStatus string     `json:"credentialStatus"`
	LastCheckedAt    *time.Time `json:"lastCheckedAt,omitempty"`
}

func redactAccounts(accounts []*models.Account) []accountView {
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			Email:            a.Email,
			ClientID:         a.ClientID,
			Tags:             a.Tags,
			Note:             a.Note,
			CredentialStatus: a.CredentialStatus.String(),
			LastCheckedAt:    a.LastCheckedAt,
		})
	}
	return views
}
