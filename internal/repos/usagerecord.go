package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/inkwell-backend/internal/logger"
	"github.com/yungbote/inkwell-backend/internal/types"
)

type UsageRecordRepo interface {
	// GetForUpdate reads the (user, service, action) row holding a row lock
	// for the duration of tx. Returns nil when no row exists.
	GetForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, service, action string) (*types.UsageRecord, error)
	Save(ctx context.Context, tx *gorm.DB, record *types.UsageRecord) error
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UsageRecord, error)
	GetByUserAndService(ctx context.Context, tx *gorm.DB, userID uuid.UUID, service string) ([]*types.UsageRecord, error)
}

type usageRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageRecordRepo(db *gorm.DB, baseLog *logger.Logger) UsageRecordRepo {
	return &usageRecordRepo{db: db, log: baseLog.With("repo", "UsageRecordRepo")}
}

func (urr *usageRecordRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, service, action string) (*types.UsageRecord, error) {
	if tx == nil {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	var record types.UsageRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND service = ? AND action = ?", userID, service, action).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (urr *usageRecordRepo) Save(ctx context.Context, tx *gorm.DB, record *types.UsageRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = urr.db
	}
	return transaction.WithContext(ctx).Save(record).Error
}

func (urr *usageRecordRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.UsageRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = urr.db
	}
	var results []*types.UsageRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (urr *usageRecordRepo) GetByUserAndService(ctx context.Context, tx *gorm.DB, userID uuid.UUID, service string) ([]*types.UsageRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = urr.db
	}
	var results []*types.UsageRecord
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND service = ?", userID, service).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
