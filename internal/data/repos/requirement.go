package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
	apperrors "github.com/kravdesk/kravdesk-backend/internal/pkg/errors"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
)

type RequirementRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*domain.Requirement) ([]*domain.Requirement, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*domain.Requirement, error)
	GetForGrouping(ctx context.Context, tx *gorm.DB) ([]*domain.Requirement, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Requirement, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Requirement, error)
	FindByNormalizedText(ctx context.Context, tx *gorm.DB, text string) ([]*domain.Requirement, error)
	UpdateGroup(ctx context.Context, tx *gorm.DB, id uuid.UUID, groupID uuid.UUID, isRepresentative bool, similarityScore int, category string) error
	ClearAllGroupings(ctx context.Context, tx *gorm.DB) error
	ClearGrouping(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	UpdateUserFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, comment string) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type requirementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequirementRepo(db *gorm.DB, baseLog *logger.Logger) RequirementRepo {
	repoLog := baseLog.With("repo", "RequirementRepo")
	return &requirementRepo{db: db, log: repoLog}
}

func (r *requirementRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *requirementRepo) Create(ctx context.Context, tx *gorm.DB, rows []*domain.Requirement) ([]*domain.Requirement, error) {
	if len(rows) == 0 {
		return []*domain.Requirement{}, nil
	}

	// Keep batches small because Text is large
	const batchSize = 100

	if err := r.conn(tx).WithContext(ctx).CreateInBatches(rows, batchSize).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *requirementRepo) GetAll(ctx context.Context, tx *gorm.DB) ([]*domain.Requirement, error) {
	var results []*domain.Requirement
	if err := r.conn(tx).WithContext(ctx).
		Order("category, created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetForGrouping returns the full persisted corpus. Grouping runs operate on
// every requirement, not just newly imported ones.
func (r *requirementRepo) GetForGrouping(ctx context.Context, tx *gorm.DB) ([]*domain.Requirement, error) {
	return r.GetAll(ctx, tx)
}

func (r *requirementRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Requirement, error) {
	var row domain.Requirement
	if err := r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("requirement %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &row, nil
}

func (r *requirementRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Requirement, error) {
	var results []*domain.Requirement
	if len(ids) == 0 {
		return results, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *requirementRepo) FindByNormalizedText(ctx context.Context, tx *gorm.DB, text string) ([]*domain.Requirement, error) {
	var results []*domain.Requirement
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return results, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("LOWER(TRIM(text)) = ?", norm).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *requirementRepo) UpdateGroup(ctx context.Context, tx *gorm.DB, id uuid.UUID, groupID uuid.UUID, isRepresentative bool, similarityScore int, category string) error {
	if id == uuid.Nil {
		return nil
	}
	updates := map[string]interface{}{
		"group_id":             groupID,
		"group_representative": isRepresentative,
		"similarity_score":     similarityScore,
		"updated_at":           time.Now().UTC(),
	}
	if strings.TrimSpace(category) != "" {
		updates["category"] = category
	}
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Requirement{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClearAllGroupings resets the group fields on every row, including the
// grouping-assigned category. A grouping run replaces prior assignments
// wholesale, it does not merge into them; categories are recomputed from the
// raw category on the next partition.
func (r *requirementRepo) ClearAllGroupings(ctx context.Context, tx *gorm.DB) error {
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Requirement{}).
		Where("1 = 1").
		Updates(map[string]interface{}{
			"group_id":             nil,
			"group_representative": false,
			"similarity_score":     nil,
			"category":             "",
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *requirementRepo) ClearGrouping(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Requirement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"group_id":             nil,
			"group_representative": false,
			"similarity_score":     nil,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *requirementRepo) UpdateUserFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, status, comment string) error {
	if id == uuid.Nil {
		return nil
	}
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Requirement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"user_status":  status,
			"user_comment": comment,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *requirementRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.conn(tx).WithContext(ctx).
		Model(&domain.Requirement{}).
		Where("id = ?", id).
		Updates(updates).Error
}
