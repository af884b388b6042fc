package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/repos"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type BadgeService interface {
	GetUserBadges(ctx context.Context, userID uuid.UUID) ([]*types.UserBadge, error)
	// AwardPublishBadges grants the milestone badges a publish may unlock.
	// Awards are idempotent.
	AwardPublishBadges(ctx context.Context, tx *gorm.DB, contribution *types.Contribution) error
	// AwardInterviewCompleted grants the interview badge when a contribution
	// first reaches the outline step. Idempotent.
	AwardInterviewCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type badgeService struct {
	db               *gorm.DB
	log              *logger.Logger
	badgeRepo        repos.UserBadgeRepo
	contributionRepo repos.ContributionRepo
}

func NewBadgeService(db *gorm.DB, log *logger.Logger, badgeRepo repos.UserBadgeRepo, contributionRepo repos.ContributionRepo) BadgeService {
	return &badgeService{
		db:               db,
		log:              log.With("service", "BadgeService"),
		badgeRepo:        badgeRepo,
		contributionRepo: contributionRepo,
	}
}

func (bs *badgeService) GetUserBadges(ctx context.Context, userID uuid.UUID) ([]*types.UserBadge, error) {
	return bs.badgeRepo.GetByUserID(ctx, nil, userID)
}

func (bs *badgeService) award(ctx context.Context, tx *gorm.DB, userID uuid.UUID, badge string) error {
	return bs.badgeRepo.Award(ctx, tx, &types.UserBadge{
		ID:        uuid.New(),
		UserID:    userID,
		Badge:     badge,
		AwardedAt: time.Now().UTC(),
	})
}

func (bs *badgeService) AwardPublishBadges(ctx context.Context, tx *gorm.DB, contribution *types.Contribution) error {
	published, err := bs.contributionRepo.CountPublishedByUser(ctx, tx, contribution.UserID)
	if err != nil {
		return err
	}

	if published >= 1 {
		if err := bs.award(ctx, tx, contribution.UserID, types.BadgeFirstPublished); err != nil {
			return err
		}
	}
	if published >= 5 {
		if err := bs.award(ctx, tx, contribution.UserID, types.BadgeFivePublished); err != nil {
			return err
		}
	}
	if len(contribution.SourceDiscovery) > 0 && string(contribution.SourceDiscovery) != "null" && string(contribution.SourceDiscovery) != "[]" {
		if err := bs.award(ctx, tx, contribution.UserID, types.BadgeSourcedAuthor); err != nil {
			return err
		}
	}
	return nil
}

func (bs *badgeService) AwardInterviewCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return bs.award(ctx, tx, userID, types.BadgeInterviewCompleted)
}
