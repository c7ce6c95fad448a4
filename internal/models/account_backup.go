package models

import (
	"time"

	"github.com/lib/pq"
)

// AccountBackup is the durable server-side representation of an account.
// Checksum is a SHA-256 hash of Data; the sync engine compares checksums to
// decide divergence without shipping full payloads. Rows are soft-deleted.
type AccountBackup struct {
	Email     string         `gorm:"column:email;type:varchar(255);primaryKey" json:"email"`
	Data      string         `gorm:"column:data;type:text;not null" json:"data"`
	Checksum  string         `gorm:"column:checksum;type:char(64);not null" json:"checksum"`
	Tags      pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	Note      *string        `gorm:"column:note;type:text" json:"note,omitempty"`
	IsDeleted bool           `gorm:"column:is_deleted;not null;default:false" json:"isDeleted"`
	Source    string         `gorm:"column:source;type:varchar(32);not null;default:'unknown'" json:"source"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

// TableName sets the table name
func (AccountBackup) TableName() string {
	return "account_backups"
}
