package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mailvault/mailvault/internal/enum"
)

// Account is a registered external mailbox. Email is the stable key shared
// with the backup store; credential fields are only rewritten through explicit
// CRUD or the sync engine's pull path.
type Account struct {
	Email        string         `gorm:"column:email;type:varchar(255);primaryKey" json:"email"`
	RefreshToken string         `gorm:"column:refresh_token;type:text;not null" json:"refreshToken"`
	ClientID     string         `gorm:"column:client_id;type:varchar(255);not null" json:"clientId"`
	Tags         pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	Note         *string        `gorm:"column:note;type:text" json:"note,omitempty"`
	// Credential health, written by the token manager and health monitor only
	CredentialStatus enum.CredentialStatus `gorm:"column:credential_status;type:varchar(20);default:'unknown'" json:"credentialStatus"`
	LastCheckedAt    *time.Time            `gorm:"column:last_checked_at;type:timestamp" json:"lastCheckedAt,omitempty"`
	// Lifecycle
	IsDeleted bool      `gorm:"column:is_deleted;not null;default:false" json:"isDeleted"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

// TableName sets the table name
func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeSave(tx *gorm.DB) error {
	if a.Tags == nil {
		a.Tags = pq.StringArray{}
	}
	return nil
}
