package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
)

type LearningStyleProfileRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LearningStyleProfile, error)
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LearningStyleProfile, error)
	Save(ctx context.Context, tx *gorm.DB, profile *types.LearningStyleProfile) error
	DeleteByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type learningStyleProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningStyleProfileRepo(db *gorm.DB, baseLog *logger.Logger) LearningStyleProfileRepo {
	repoLog := baseLog.With("repo", "LearningStyleProfileRepo")
	return &learningStyleProfileRepo{db: db, log: repoLog}
}

func (r *learningStyleProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LearningStyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.LearningStyleProfile
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *learningStyleProfileRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.LearningStyleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	existing, err := r.GetByUserID(ctx, transaction, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	profile := &types.LearningStyleProfile{
		UserID:               userID,
		Dimensions:           types.DimensionScores{},
		Confidence:           types.DimensionConfidence{},
		RecommendedModes:     types.RecommendedModes{},
		ClassificationMethod: types.MethodRuleBased,
		DataQuality: types.DataQuality{
			ConfidenceLevel: types.ConfidenceLow,
		},
	}
	if err := transaction.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *learningStyleProfileRepo) Save(ctx context.Context, tx *gorm.DB, profile *types.LearningStyleProfile) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Save(profile).Error
}

func (r *learningStyleProfileRepo) DeleteByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if userID == uuid.Nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&types.LearningStyleProfile{}).Error
}
