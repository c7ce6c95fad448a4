package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/mailvault/mailvault/internal/enum"
	"github.com/mailvault/mailvault/internal/utils"
)

// AccountHealthCheck records the outcome of one token health probe for one
// account. The latest row per email is what the registry surfaces.
type AccountHealthCheck struct {
	ID        string                `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Email     string                `gorm:"column:email;type:varchar(255);index;not null" json:"email"`
	Status    enum.CredentialStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Detail    string                `gorm:"column:detail;type:text" json:"detail"`
	CheckedAt time.Time             `gorm:"column:checked_at;type:timestamp;not null" json:"checkedAt"`
	CreatedAt time.Time             `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

// TableName sets the table name
func (AccountHealthCheck) TableName() string {
	return "account_health_checks"
}

func (c *AccountHealthCheck) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIDWithPrefix("hchk", 16)
	}
	return nil
}
