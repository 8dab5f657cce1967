package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
)

func SeedRequirement(tb testing.TB, ctx context.Context, tx *gorm.DB, text, category string) *domain.Requirement {
	tb.Helper()
	now := time.Now().UTC()
	r := &domain.Requirement{
		ID:            uuid.New(),
		Text:          text,
		Type:          domain.TypeSkall,
		RawCategory:   category,
		Category:      category,
		Categories:    datatypes.JSON([]byte(`["Sheet1","` + category + `"]`)),
		Organizations: datatypes.JSON([]byte(`["org-a"]`)),
		Occurrences:   1,
		FirstSeenDate: now,
		LastSeenDate:  now,
		IsNew:         true,
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed requirement: %v", err)
	}
	return r
}

func SeedCategoryMapping(tb testing.TB, ctx context.Context, tx *gorm.DB, source, target string) *domain.CategoryMapping {
	tb.Helper()
	m := &domain.CategoryMapping{
		ID:             uuid.New(),
		SourceCategory: source,
		TargetCategory: target,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed category mapping: %v", err)
	}
	return m
}
