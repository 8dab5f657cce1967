package domain

import (
	"time"

	"github.com/google/uuid"
)

// CategoryMapping records one resolution of a raw spreadsheet category to its
// canonical form. Append-only: rows are added on first resolution, never edited.
type CategoryMapping struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceCategory string    `gorm:"column:source_category;not null;uniqueIndex" json:"source_category"`
	TargetCategory string    `gorm:"column:target_category;not null" json:"target_category"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (CategoryMapping) TableName() string { return "category_mapping" }
