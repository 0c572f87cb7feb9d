package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/studyloop/adaptive-backend/internal/clients/mlservice"
	"github.com/studyloop/adaptive-backend/internal/clients/redis"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/repos"
	"github.com/studyloop/adaptive-backend/internal/types"
	"github.com/studyloop/adaptive-backend/internal/utils"
)

const DefaultReclassifyAfterHours = 24

// InsufficientDataError is returned when classification is requested before
// the user has produced enough interactions to cross the evidence floor.
type InsufficientDataError struct {
	TotalInteractions int
	Required          int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient behavioral data: %d interactions recorded, %d required", e.TotalInteractions, e.Required)
}

// ClassificationStatus is the side-effect-free snapshot served by the status
// endpoint. It never triggers model calls or profile writes.
type ClassificationStatus struct {
	HasProfile             bool                      `json:"hasProfile"`
	Dimensions             types.DimensionScores     `json:"dimensions"`
	Confidence             types.DimensionConfidence `json:"confidence"`
	ClassificationMethod   string                    `json:"classificationMethod,omitempty"`
	RecommendedModes       types.RecommendedModes    `json:"recommendedModes,omitempty"`
	DataQuality            types.DataQuality         `json:"dataQuality"`
	LastPrediction         *time.Time                `json:"lastPrediction,omitempty"`
	ReadyForClassification bool                      `json:"readyForClassification"`
	InteractionsNeeded     int                       `json:"interactionsNeeded"`
}

// ClassificationService orchestrates the full pipeline: evidence gate,
// model-or-rules selection, questionnaire blending, and profile persistence.
type ClassificationService interface {
	Classify(ctx context.Context, userID uuid.UUID) (*types.LearningStyleProfile, error)
	Status(ctx context.Context, userID uuid.UUID) (*ClassificationStatus, error)
	Profile(ctx context.Context, userID uuid.UUID) (*types.LearningStyleProfile, error)
	SubmitQuestionnaire(ctx context.Context, userID uuid.UUID, answers map[int]string) (*types.LearningStyleProfile, error)
	MaybeAutoClassify(ctx context.Context, userID uuid.UUID)
	Reset(ctx context.Context, userID uuid.UUID) error
}

type classificationService struct {
	features        FeatureEngineeringService
	labeler         RuleBasedLabelingService
	questionnaire   QuestionnaireService
	ml              mlservice.Client
	profileRepo     repos.LearningStyleProfileRepo
	recordRepo      repos.BehaviorRecordRepo
	cache           redis.StatusCache
	reclassifyAfter time.Duration
	log             *logger.Logger
}

func NewClassificationService(
	features FeatureEngineeringService,
	labeler RuleBasedLabelingService,
	questionnaire QuestionnaireService,
	ml mlservice.Client,
	profileRepo repos.LearningStyleProfileRepo,
	recordRepo repos.BehaviorRecordRepo,
	cache redis.StatusCache,
	baseLog *logger.Logger,
) ClassificationService {
	log := baseLog.With("service", "ClassificationService")
	hours := utils.GetEnvAsInt("RECLASSIFY_AFTER_HOURS", DefaultReclassifyAfterHours, log)
	return &classificationService{
		features:        features,
		labeler:         labeler,
		questionnaire:   questionnaire,
		ml:              ml,
		profileRepo:     profileRepo,
		recordRepo:      recordRepo,
		cache:           cache,
		reclassifyAfter: time.Duration(hours) * time.Hour,
		log:             log,
	}
}

func (s *classificationService) Classify(ctx context.Context, userID uuid.UUID) (*types.LearningStyleProfile, error) {
	agg, err := s.features.CalculateFeatures(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !agg.DataQuality.SufficientForClassification {
		return nil, &InsufficientDataError{
			TotalInteractions: agg.TotalInteractions,
			Required:          s.features.MinInteractions(),
		}
	}

	result := s.labeler.Classify(agg)
	modelVersion := ""

	health := s.ml.CheckHealth(ctx)
	if health.Available {
		prediction := s.ml.GetPrediction(ctx, s.features.ConvertToMLFormat(agg))
		if prediction.Success {
			result.Dimensions = prediction.Predictions
			result.Confidence = prediction.Confidence
			result.Method = types.MethodMLPrediction
			modelVersion = health.Version
		} else {
			s.log.Warn("ml prediction failed, falling back to rule-based labeling",
				"user_id", userID.String(), "reason", prediction.Err)
		}
	} else {
		s.log.Debug("ml service unavailable, using rule-based labeling",
			"user_id", userID.String(), "reason", health.Err)
	}

	profile, err := s.profileRepo.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	if profile.QuestionnaireScores != nil {
		result.Dimensions = blendScores(result.Dimensions, *profile.QuestionnaireScores)
		result.Method = types.MethodHybrid
	}

	now := time.Now().UTC()
	profile.Dimensions = result.Dimensions
	profile.Confidence = result.Confidence
	profile.RecommendedModes = s.labeler.GenerateRecommendations(result)
	profile.ClassificationMethod = result.Method
	profile.DataQuality = result.DataQuality
	profile.LastPrediction = &now
	profile.PredictionCount++
	if modelVersion != "" {
		profile.ModelVersion = modelVersion
	}
	if err := s.profileRepo.Save(ctx, nil, profile); err != nil {
		return nil, err
	}

	s.invalidateStatus(ctx, userID)
	s.log.Info("classification complete",
		"user_id", userID.String(),
		"method", result.Method,
		"confidence_level", result.DataQuality.ConfidenceLevel)
	return profile, nil
}

func (s *classificationService) Status(ctx context.Context, userID uuid.UUID) (*ClassificationStatus, error) {
	if s.cache != nil {
		if payload, ok := s.cache.Get(ctx, userID.String()); ok {
			var cached ClassificationStatus
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	agg, err := s.features.CalculateFeatures(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}

	needed := s.features.MinInteractions() - agg.TotalInteractions
	if needed < 0 {
		needed = 0
	}
	status := &ClassificationStatus{
		DataQuality:            agg.DataQuality,
		ReadyForClassification: agg.DataQuality.SufficientForClassification,
		InteractionsNeeded:     needed,
	}
	if profile != nil {
		status.HasProfile = true
		status.Dimensions = profile.Dimensions
		status.Confidence = profile.Confidence
		status.ClassificationMethod = profile.ClassificationMethod
		status.RecommendedModes = profile.RecommendedModes
		status.LastPrediction = profile.LastPrediction
	}

	if s.cache != nil {
		if payload, err := json.Marshal(status); err == nil {
			s.cache.Set(ctx, userID.String(), payload)
		}
	}
	return status, nil
}

func (s *classificationService) Profile(ctx context.Context, userID uuid.UUID) (*types.LearningStyleProfile, error) {
	return s.profileRepo.GetByUserID(ctx, nil, userID)
}

// SubmitQuestionnaire stores self-reported scores and reclassifies right
// away when enough behavioral evidence exists, otherwise the questionnaire
// result stands alone until tracking catches up.
func (s *classificationService) SubmitQuestionnaire(ctx context.Context, userID uuid.UUID, answers map[int]string) (*types.LearningStyleProfile, error) {
	scores, err := s.questionnaire.CalculateScores(answers)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileRepo.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	profile.QuestionnaireScores = &scores

	agg, err := s.features.CalculateFeatures(ctx, userID)
	if err != nil {
		return nil, err
	}
	if agg.DataQuality.SufficientForClassification {
		if err := s.profileRepo.Save(ctx, nil, profile); err != nil {
			return nil, err
		}
		return s.Classify(ctx, userID)
	}

	now := time.Now().UTC()
	result := Classification{
		Dimensions:  scores,
		Confidence:  questionnaireConfidence(),
		Method:      types.MethodQuestionnaire,
		DataQuality: agg.DataQuality,
	}
	profile.Dimensions = scores
	profile.Confidence = result.Confidence
	profile.RecommendedModes = s.labeler.GenerateRecommendations(result)
	profile.ClassificationMethod = types.MethodQuestionnaire
	profile.DataQuality = result.DataQuality
	profile.LastPrediction = &now
	if err := s.profileRepo.Save(ctx, nil, profile); err != nil {
		return nil, err
	}
	s.invalidateStatus(ctx, userID)
	return profile, nil
}

// MaybeAutoClassify reclassifies after tracking writes when the previous
// prediction is stale or missing. Failures are logged, never surfaced to the
// tracking path.
func (s *classificationService) MaybeAutoClassify(ctx context.Context, userID uuid.UUID) {
	profile, err := s.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		s.log.Error("auto-classification profile lookup failed", "user_id", userID.String(), "error", err)
		return
	}
	if profile != nil && profile.LastPrediction != nil && time.Since(*profile.LastPrediction) < s.reclassifyAfter {
		return
	}
	if _, err := s.Classify(ctx, userID); err != nil {
		var insufficient *InsufficientDataError
		if errors.As(err, &insufficient) {
			return
		}
		s.log.Error("auto-classification failed", "user_id", userID.String(), "error", err)
	}
}

func (s *classificationService) Reset(ctx context.Context, userID uuid.UUID) error {
	if err := s.recordRepo.DeleteByUserID(ctx, nil, userID); err != nil {
		return err
	}
	if err := s.profileRepo.DeleteByUserID(ctx, nil, userID); err != nil {
		return err
	}
	s.invalidateStatus(ctx, userID)
	s.log.Info("behavior data reset", "user_id", userID.String())
	return nil
}

func (s *classificationService) invalidateStatus(ctx context.Context, userID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID.String())
	}
}

// blendScores averages behavioral and self-reported scores per dimension,
// rounding half away from zero. Both inputs are already clamped so the mean
// stays in range.
func blendScores(behavioral, questionnaire types.DimensionScores) types.DimensionScores {
	return types.DimensionScores{
		ActiveReflective: roundMean(behavioral.ActiveReflective, questionnaire.ActiveReflective),
		SensingIntuitive: roundMean(behavioral.SensingIntuitive, questionnaire.SensingIntuitive),
		VisualVerbal:     roundMean(behavioral.VisualVerbal, questionnaire.VisualVerbal),
		SequentialGlobal: roundMean(behavioral.SequentialGlobal, questionnaire.SequentialGlobal),
	}
}

func roundMean(a, b int) int {
	return int(math.Round(float64(a+b) / 2))
}

// Self-report carries flat moderate confidence: honest answers locate the
// preference but not its strength.
func questionnaireConfidence() types.DimensionConfidence {
	return types.DimensionConfidence{
		ActiveReflective: 0.7,
		SensingIntuitive: 0.7,
		VisualVerbal:     0.7,
		SequentialGlobal: 0.7,
	}
}
