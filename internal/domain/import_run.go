package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ImportStatusPending   = "pending"
	ImportStatusCommitted = "committed"
	ImportStatusFailed    = "failed"
)

// ImportRun is the bookkeeping row for one uploaded spreadsheet: which file,
// which organization, and how many drafts were extracted and committed.
type ImportRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FileName       string         `gorm:"column:file_name;not null" json:"file_name"`
	Organization   string         `gorm:"column:organization;not null;index" json:"organization"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	ExtractedCount int            `gorm:"column:extracted_count;not null;default:0" json:"extracted_count"`
	NewCount       int            `gorm:"column:new_count;not null;default:0" json:"new_count"`
	MergedCount    int            `gorm:"column:merged_count;not null;default:0" json:"merged_count"`
	Error          string         `gorm:"column:error" json:"error,omitempty"`
	Metadata       datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (ImportRun) TableName() string { return "import_run" }
