package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

// UsageLogRepo is append-only. Entries are never updated; the only read back
// is the per-user monthly cost sum surfaced on the usage endpoint.
type UsageLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entries []*types.UsageLogEntry) ([]*types.UsageLogEntry, error)
	SumCostByMonth(ctx context.Context, tx *gorm.DB, userID uuid.UUID, month string) (float64, error)
}

type usageLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageLogRepo(db *gorm.DB, baseLog *logger.Logger) UsageLogRepo {
	return &usageLogRepo{db: db, log: baseLog.With("repo", "UsageLogRepo")}
}

func (ulr *usageLogRepo) Create(ctx context.Context, tx *gorm.DB, entries []*types.UsageLogEntry) ([]*types.UsageLogEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = ulr.db
	}
	if len(entries) == 0 {
		return []*types.UsageLogEntry{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (ulr *usageLogRepo) SumCostByMonth(ctx context.Context, tx *gorm.DB, userID uuid.UUID, month string) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = ulr.db
	}
	var total float64
	if err := transaction.WithContext(ctx).
		Model(&types.UsageLogEntry{}).
		Where("user_id = ? AND month = ?", userID, month).
		Select("COALESCE(SUM(estimated_cost), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
