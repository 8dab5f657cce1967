package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Requirement type labels. Skall is mandatory, Bör is desirable. An empty
// string means the statement carried no recognizable modal keyword.
const (
	TypeSkall = "Skall"
	TypeBor   = "Bör"
)

// UncategorizedCategory is the canonical fallback for blank or unusable
// raw categories.
const UncategorizedCategory = "Uncategorized"

type Requirement struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Text                string         `gorm:"column:text;not null" json:"text"`
	Type                string         `gorm:"column:type;index" json:"type,omitempty"`
	RawCategory         string         `gorm:"column:raw_category" json:"raw_category,omitempty"`
	Category            string         `gorm:"column:category;index" json:"category"`
	Categories          datatypes.JSON `gorm:"column:categories;type:jsonb" json:"categories"`
	Organizations       datatypes.JSON `gorm:"column:organizations;type:jsonb" json:"organizations"`
	Occurrences         int            `gorm:"column:occurrences;not null;default:1" json:"occurrences"`
	GroupID             *uuid.UUID     `gorm:"type:uuid;column:group_id;index" json:"group_id,omitempty"`
	GroupRepresentative bool           `gorm:"column:group_representative;not null;default:false" json:"group_representative"`
	SimilarityScore     *int           `gorm:"column:similarity_score" json:"similarity_score,omitempty"`
	UserStatus          string         `gorm:"column:user_status" json:"user_status,omitempty"`
	UserComment         string         `gorm:"column:user_comment" json:"user_comment,omitempty"`
	FirstSeenDate       time.Time      `gorm:"column:first_seen_date;not null" json:"first_seen_date"`
	LastSeenDate        time.Time      `gorm:"column:last_seen_date;not null" json:"last_seen_date"`
	IsNew               bool           `gorm:"column:is_new;not null;default:true" json:"is_new"`
	CreatedAt           time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Requirement) TableName() string { return "requirement" }
