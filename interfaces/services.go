package interfaces

import (
	"context"

	"github.com/mailvault/mailvault/internal/enum"
	"github.com/mailvault/mailvault/internal/models"
)

// EmailService lists and retrieves mailbox content across accounts.
type EmailService interface {
	// FetchMany lists a folder view page for every given account concurrently.
	// Per-account failures are reported in the result map, never as a global error.
	FetchMany(ctx context.Context, emails []string, view enum.FolderView, page, pageSize int) map[string]*models.FetchResult
	// FetchListing lists one account's folder view page, serving from cache when fresh.
	FetchListing(ctx context.Context, email string, view enum.FolderView, page, pageSize int) (*models.FolderListing, error)
	// FetchMessage retrieves one full message body by UID.
	FetchMessage(ctx context.Context, email, folder string, uid uint32) (*models.MessageDetail, error)
}

// ListingCache holds folder listings keyed by (email, view, page, pageSize).
type ListingCache interface {
	Get(email string, view enum.FolderView, page, pageSize int) (*models.FolderListing, bool)
	Put(listing *models.FolderListing)
	InvalidateAccount(email string)
	Clear()
}

type SyncService interface {
	// Push writes local accounts into the backup store under the conflict policy.
	Push(ctx context.Context, policy enum.ConflictPolicy) (*models.SyncOutcome, error)
	// Pull applies backup records onto the local registry under the conflict policy.
	Pull(ctx context.Context, policy enum.ConflictPolicy) (*models.SyncOutcome, error)
}

type HealthService interface {
	// RunOnce sweeps every account's credential. A second concurrent call
	// fails fast with ErrSweepInProgress.
	RunOnce(ctx context.Context) (*models.HealthSummary, error)
	CheckAccount(ctx context.Context, email string) (*models.AccountHealthCheck, error)
}
