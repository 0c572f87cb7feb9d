package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
)

type BehaviorRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.BehaviorRecord) (*types.BehaviorRecord, error)
	Update(ctx context.Context, tx *gorm.DB, record *types.BehaviorRecord) error
	GetByUserAndSession(ctx context.Context, tx *gorm.DB, userID uuid.UUID, sessionID string) (*types.BehaviorRecord, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.BehaviorRecord, error)
	DeleteByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type behaviorRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBehaviorRecordRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorRecordRepo {
	repoLog := baseLog.With("repo", "BehaviorRecordRepo")
	return &behaviorRecordRepo{db: db, log: repoLog}
}

func (r *behaviorRecordRepo) Create(ctx context.Context, tx *gorm.DB, record *types.BehaviorRecord) (*types.BehaviorRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *behaviorRecordRepo) Update(ctx context.Context, tx *gorm.DB, record *types.BehaviorRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(record).Error
}

func (r *behaviorRecordRepo) GetByUserAndSession(ctx context.Context, tx *gorm.DB, userID uuid.UUID, sessionID string) (*types.BehaviorRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.BehaviorRecord
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *behaviorRecordRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.BehaviorRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.BehaviorRecord
	if userID == uuid.Nil {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *behaviorRecordRepo) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.BehaviorRecord{}).Error
}
