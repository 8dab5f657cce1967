package repos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
)

type CategoryMappingRepo interface {
	GetAll(ctx context.Context, tx *gorm.DB) ([]*domain.CategoryMapping, error)
	// Upsert inserts source→target and returns the row that ended up in the
	// table. Concurrent resolutions of the same raw category may race; the
	// loser's insert is a no-op and the winner's row is returned.
	Upsert(ctx context.Context, tx *gorm.DB, source, target string) (*domain.CategoryMapping, error)
}

type categoryMappingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCategoryMappingRepo(db *gorm.DB, baseLog *logger.Logger) CategoryMappingRepo {
	repoLog := baseLog.With("repo", "CategoryMappingRepo")
	return &categoryMappingRepo{db: db, log: repoLog}
}

func (r *categoryMappingRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *categoryMappingRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*domain.CategoryMapping, error) {
	var results []*domain.CategoryMapping
	if err := r.conn(tx).WithContext(ctx).
		Order("source_category ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *categoryMappingRepo) Upsert(ctx context.Context, tx *gorm.DB, source, target string) (*domain.CategoryMapping, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	conn := r.conn(tx)
	row := &domain.CategoryMapping{
		ID:             uuid.New(),
		SourceCategory: source,
		TargetCategory: target,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_category"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	var existing domain.CategoryMapping
	if err := conn.WithContext(ctx).
		Where("source_category = ?", source).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}
