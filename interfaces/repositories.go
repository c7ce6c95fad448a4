package interfaces

import (
	"context"

	"github.com/mailvault/mailvault/internal/enum"
	"github.com/mailvault/mailvault/internal/models"
)

// AccountRepository is the local account registry. The CRUD layer and the
// sync engine's pull path are its only writers.
type AccountRepository interface {
	// List returns non-deleted accounts.
	List(ctx context.Context) ([]*models.Account, error)
	// ListAll returns every account including soft-deleted ones.
	ListAll(ctx context.Context) ([]*models.Account, error)
	// Get returns nil without error when the account does not exist.
	Get(ctx context.Context, email string) (*models.Account, error)
	Upsert(ctx context.Context, account *models.Account) error
	// Remove soft-deletes the account, preserving it for sync.
	Remove(ctx context.Context, email string) error
	UpdateCredentialStatus(ctx context.Context, email string, status enum.CredentialStatus) error
}

// BackupStore is the narrow contract to the durable backup of the registry.
// Per-record atomicity only; no cross-record transactions.
type BackupStore interface {
	Ping(ctx context.Context) error
	// GetRecord returns nil without error when absent.
	GetRecord(ctx context.Context, email string) (*models.AccountBackup, error)
	ListRecords(ctx context.Context) ([]*models.AccountBackup, error)
	SaveRecord(ctx context.Context, record *models.AccountBackup) error
	MarkDeleted(ctx context.Context, email, source string) error
}

type HealthCheckRepository interface {
	Record(ctx context.Context, check *models.AccountHealthCheck) error
	LastByEmail(ctx context.Context, email string) (*models.AccountHealthCheck, error)
}
