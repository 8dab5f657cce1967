package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kravdesk/kravdesk-backend/internal/domain"
	apperrors "github.com/kravdesk/kravdesk-backend/internal/pkg/errors"
	"github.com/kravdesk/kravdesk-backend/internal/platform/logger"
)

type ImportRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *domain.ImportRun) (*domain.ImportRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.ImportRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type importRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewImportRunRepo(db *gorm.DB, baseLog *logger.Logger) ImportRunRepo {
	repoLog := baseLog.With("repo", "ImportRunRepo")
	return &importRunRepo{db: db, log: repoLog}
}

func (r *importRunRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *importRunRepo) Create(ctx context.Context, tx *gorm.DB, run *domain.ImportRun) (*domain.ImportRun, error) {
	if run == nil {
		return nil, nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if err := r.conn(tx).WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *importRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.ImportRun, error) {
	var run domain.ImportRun
	if err := r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("import run %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &run, nil
}

func (r *importRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&domain.ImportRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}
