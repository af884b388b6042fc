package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type ContributionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, contributions []*types.Contribution) ([]*types.Contribution, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Contribution, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Contribution, error)
	Save(ctx context.Context, tx *gorm.DB, contribution *types.Contribution) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	CountPublishedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type contributionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContributionRepo(db *gorm.DB, baseLog *logger.Logger) ContributionRepo {
	return &contributionRepo{db: db, log: baseLog.With("repo", "ContributionRepo")}
}

func (cr *contributionRepo) Create(ctx context.Context, tx *gorm.DB, contributions []*types.Contribution) ([]*types.Contribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if len(contributions) == 0 {
		return []*types.Contribution{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&contributions).Error; err != nil {
		return nil, err
	}
	return contributions, nil
}

func (cr *contributionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Contribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Contribution
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *contributionRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Contribution, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var results []*types.Contribution
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (cr *contributionRepo) Save(ctx context.Context, tx *gorm.DB, contribution *types.Contribution) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).Save(contribution).Error
}

func (cr *contributionRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if len(fields) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Contribution{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (cr *contributionRepo) CountPublishedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Contribution{}).
		Where("user_id = ? AND status = ?", userID, types.StatusPublished).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
