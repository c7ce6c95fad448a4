package interfaces

import (
	"context"
	"time"

	"github.com/mailvault/mailvault/internal/models"
)

// AccessToken is a short-lived bearer credential for one protocol session.
// Never persisted; regenerated on expiry or after a 401-class protocol error.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

func (t *AccessToken) Valid(now time.Time) bool {
	return t != nil && t.Token != "" && now.Before(t.ExpiresAt)
}

type OAuthService interface {
	// Acquire returns a cached token when still inside the safety margin,
	// otherwise performs a refresh exchange. Fails with AuthError.
	Acquire(ctx context.Context, account *models.Account) (*AccessToken, error)
	// ForceRefresh drops any cached token for the account and acquires anew.
	ForceRefresh(ctx context.Context, account *models.Account) (*AccessToken, error)
	InvalidateToken(email string)
	Clear()
}
