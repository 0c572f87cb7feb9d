package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/studyloop/adaptive-backend/internal/clients/redis"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/repos"
	"github.com/studyloop/adaptive-backend/internal/types"
)

// TrackPayload is one flushed batch from a client tracking session. Mode usage
// and activity engagement are cumulative snapshots of the whole session;
// content interactions are the delta since the previous flush.
type TrackPayload struct {
	SessionID           string                    `json:"sessionId" binding:"required"`
	ModeUsage           types.ModeUsage           `json:"modeUsage"`
	ActivityEngagement  types.ActivityEngagement  `json:"activityEngagement"`
	ContentInteractions types.ContentInteractions `json:"contentInteractions"`
	DeviceInfo          types.DeviceInfo          `json:"deviceInfo"`
	Timestamp           time.Time                 `json:"timestamp"`
}

// BehaviorSummary aggregates a user's stored evidence for the summary
// endpoint.
type BehaviorSummary struct {
	TotalInteractions int                      `json:"totalInteractions"`
	TotalLearningTime int64                    `json:"totalLearningTime"`
	SessionCount      int                      `json:"sessionCount"`
	ModeUsage         map[string]ModeTotals    `json:"modeUsage"`
	Activity          types.ActivityEngagement `json:"activityEngagement"`
	DataQuality       types.DataQuality        `json:"dataQuality"`
}

// TrackingService persists flushed batches and keeps the profile's data
// quality current. One record per (user, session); a session's later flushes
// update its own record rather than appending new rows.
type TrackingService interface {
	Track(ctx context.Context, userID uuid.UUID, payload TrackPayload) (*types.BehaviorRecord, error)
	Summary(ctx context.Context, userID uuid.UUID) (*BehaviorSummary, error)
}

type trackingService struct {
	recordRepo     repos.BehaviorRecordRepo
	profileRepo    repos.LearningStyleProfileRepo
	features       FeatureEngineeringService
	classification ClassificationService
	cache          redis.StatusCache
	log            *logger.Logger
}

func NewTrackingService(
	recordRepo repos.BehaviorRecordRepo,
	profileRepo repos.LearningStyleProfileRepo,
	features FeatureEngineeringService,
	classification ClassificationService,
	cache redis.StatusCache,
	baseLog *logger.Logger,
) TrackingService {
	return &trackingService{
		recordRepo:     recordRepo,
		profileRepo:    profileRepo,
		features:       features,
		classification: classification,
		cache:          cache,
		log:            baseLog.With("service", "TrackingService"),
	}
}

func (s *trackingService) Track(ctx context.Context, userID uuid.UUID, payload TrackPayload) (*types.BehaviorRecord, error) {
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	if payload.ModeUsage == nil {
		payload.ModeUsage = types.NewModeUsage()
	}

	record, err := s.recordRepo.GetByUserAndSession(ctx, nil, userID, payload.SessionID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &types.BehaviorRecord{
			UserID:              userID,
			SessionID:           payload.SessionID,
			ModeUsage:           payload.ModeUsage,
			ActivityEngagement:  payload.ActivityEngagement,
			ContentInteractions: payload.ContentInteractions,
			DeviceInfo:          payload.DeviceInfo,
			Timestamp:           payload.Timestamp,
		}
		if record, err = s.recordRepo.Create(ctx, nil, record); err != nil {
			return nil, err
		}
	} else {
		record.ModeUsage = mergeModeUsage(record.ModeUsage, payload.ModeUsage)
		record.ActivityEngagement = mergeActivity(record.ActivityEngagement, payload.ActivityEngagement)
		record.ContentInteractions = append(record.ContentInteractions, payload.ContentInteractions...)
		record.DeviceInfo = payload.DeviceInfo
		if payload.Timestamp.After(record.Timestamp) {
			record.Timestamp = payload.Timestamp
		}
		if err = s.recordRepo.Update(ctx, nil, record); err != nil {
			return nil, err
		}
	}

	if err := s.refreshDataQuality(ctx, userID); err != nil {
		s.log.Error("data quality refresh failed", "user_id", userID.String(), "error", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, userID.String())
	}
	s.classification.MaybeAutoClassify(ctx, userID)

	s.log.Debug("behavior batch stored",
		"user_id", userID.String(),
		"session_id", payload.SessionID,
		"interactions", record.TotalInteractions())
	return record, nil
}

func (s *trackingService) Summary(ctx context.Context, userID uuid.UUID) (*BehaviorSummary, error) {
	agg, err := s.features.CalculateFeatures(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BehaviorSummary{
		TotalInteractions: agg.TotalInteractions,
		TotalLearningTime: agg.TotalLearningTime,
		SessionCount:      agg.SessionCount,
		ModeUsage:         agg.ModeUsage,
		Activity:          agg.Activity,
		DataQuality:       agg.DataQuality,
	}, nil
}

func (s *trackingService) refreshDataQuality(ctx context.Context, userID uuid.UUID) error {
	agg, err := s.features.CalculateFeatures(ctx, userID)
	if err != nil {
		return err
	}
	profile, err := s.profileRepo.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return err
	}
	profile.DataQuality = agg.DataQuality
	return s.profileRepo.Save(ctx, nil, profile)
}

// Snapshots are cumulative per session, so the incoming values normally
// supersede the stored ones. Taking the max per counter tolerates batches
// that arrive out of order after a retry.
func mergeModeUsage(stored, incoming types.ModeUsage) types.ModeUsage {
	merged := types.NewModeUsage()
	for mode := range merged {
		have := stored[mode]
		got := incoming[mode]
		stat := types.ModeStat{
			Count:     maxInt(have.Count, got.Count),
			TotalTime: maxInt64(have.TotalTime, got.TotalTime),
			LastUsed:  laterTime(have.LastUsed, got.LastUsed),
		}
		merged[mode] = stat
	}
	return merged
}

func mergeActivity(stored, incoming types.ActivityEngagement) types.ActivityEngagement {
	return types.ActivityEngagement{
		QuizzesCompleted:           maxInt(stored.QuizzesCompleted, incoming.QuizzesCompleted),
		PracticeQuestionsAttempted: maxInt(stored.PracticeQuestionsAttempted, incoming.PracticeQuestionsAttempted),
		DiscussionParticipation:    maxInt(stored.DiscussionParticipation, incoming.DiscussionParticipation),
		ReflectionJournalEntries:   maxInt(stored.ReflectionJournalEntries, incoming.ReflectionJournalEntries),
		VisualDiagramsViewed:       maxInt(stored.VisualDiagramsViewed, incoming.VisualDiagramsViewed),
		HandsOnLabsCompleted:       maxInt(stored.HandsOnLabsCompleted, incoming.HandsOnLabsCompleted),
		ConceptExplorationsCount:   maxInt(stored.ConceptExplorationsCount, incoming.ConceptExplorationsCount),
		SequentialStepsCompleted:   maxInt(stored.SequentialStepsCompleted, incoming.SequentialStepsCompleted),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func laterTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}
