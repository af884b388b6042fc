package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type UserBadgeRepo interface {
	// Award inserts the badge, ignoring the row when the user already holds it.
	Award(ctx context.Context, tx *gorm.DB, badge *types.UserBadge) error
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserBadge, error)
}

type userBadgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserBadgeRepo(db *gorm.DB, baseLog *logger.Logger) UserBadgeRepo {
	return &userBadgeRepo{db: db, log: baseLog.With("repo", "UserBadgeRepo")}
}

func (ubr *userBadgeRepo) Award(ctx context.Context, tx *gorm.DB, badge *types.UserBadge) error {
	transaction := tx
	if transaction == nil {
		transaction = ubr.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge"}},
			DoNothing: true,
		}).
		Create(badge).Error
}

func (ubr *userBadgeRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UserBadge, error) {
	transaction := tx
	if transaction == nil {
		transaction = ubr.db
	}
	var results []*types.UserBadge
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("awarded_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
