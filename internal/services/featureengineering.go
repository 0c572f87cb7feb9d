package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/studyloop/adaptive-backend/internal/clients/mlservice"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/repos"
	"github.com/studyloop/adaptive-backend/internal/types"
	"github.com/studyloop/adaptive-backend/internal/utils"
)

// Evidence policy. A single authoritative threshold unlocks classification;
// confidence saturates at EvidenceSaturation interactions. Both are
// env-configurable (MIN_INTERACTIONS_THRESHOLD, EVIDENCE_SATURATION).
const (
	DefaultMinInteractions    = 50
	DefaultEvidenceSaturation = 200
)

type ModeTotals struct {
	Count     int   `json:"count"`
	TotalTime int64 `json:"totalTime"`
}

// BehavioralFeatures are the 24 normalized signals derived from aggregated
// mode usage and activity engagement, six per FSLSM dimension.
type BehavioralFeatures struct {
	// Active vs Reflective
	ActiveLearningUsageRatio     float64 `json:"activeLearningUsageRatio"`
	ReflectiveLearningUsageRatio float64 `json:"reflectiveLearningUsageRatio"`
	DiscussionParticipationRate  float64 `json:"discussionParticipationRate"`
	ReflectionJournalFrequency   float64 `json:"reflectionJournalFrequency"`
	GroupActivityPreference      float64 `json:"groupActivityPreference"`
	ImmediateApplicationRate     float64 `json:"immediateApplicationRate"`

	// Sensing vs Intuitive
	SensingLearningUsageRatio      float64 `json:"sensingLearningUsageRatio"`
	IntuitiveLearningUsageRatio    float64 `json:"intuitiveLearningUsageRatio"`
	PracticalLabCompletionRate     float64 `json:"practicalLabCompletionRate"`
	AbstractPatternExplorationRate float64 `json:"abstractPatternExplorationRate"`
	ConcreteVsAbstractPreference   float64 `json:"concreteVsAbstractPreference"`
	ExperimentationFrequency       float64 `json:"experimentationFrequency"`

	// Visual vs Verbal
	VisualLearningUsageRatio float64 `json:"visualLearningUsageRatio"`
	AINarratorUsageRatio     float64 `json:"aiNarratorUsageRatio"`
	DiagramViewFrequency     float64 `json:"diagramViewFrequency"`
	AudioNarrationUsage      float64 `json:"audioNarrationUsage"`
	VisualVsVerbalPreference float64 `json:"visualVsVerbalPreference"`
	VisualAidEngagement      float64 `json:"visualAidEngagement"`

	// Sequential vs Global
	SequentialLearningUsageRatio float64 `json:"sequentialLearningUsageRatio"`
	GlobalLearningUsageRatio     float64 `json:"globalLearningUsageRatio"`
	StepByStepCompletionRate     float64 `json:"stepByStepCompletionRate"`
	OverviewFirstBehavior        float64 `json:"overviewFirstBehavior"`
	SequentialVsGlobalPreference float64 `json:"sequentialVsGlobalPreference"`
	LinearProgressionRate        float64 `json:"linearProgressionRate"`
}

// AggregatedFeatures is the derived, never-persisted aggregation of all of a
// user's behavior records. Computing it twice over the same records yields
// identical output.
type AggregatedFeatures struct {
	ModeUsage         map[string]ModeTotals    `json:"modeUsage"`
	Activity          types.ActivityEngagement `json:"activityEngagement"`
	TotalInteractions int                      `json:"totalInteractions"`
	TotalLearningTime int64                    `json:"totalLearningTime"`
	SessionCount      int                      `json:"sessionCount"`
	Behavioral        BehavioralFeatures       `json:"behavioral"`
	DataQuality       types.DataQuality        `json:"dataQuality"`
}

type FeatureEngineeringService interface {
	CalculateFeatures(ctx context.Context, userID uuid.UUID) (*AggregatedFeatures, error)
	Aggregate(records []*types.BehaviorRecord) *AggregatedFeatures
	ConvertToMLFormat(agg *AggregatedFeatures) mlservice.Features
	MinInteractions() int
}

type featureEngineeringService struct {
	recordRepo      repos.BehaviorRecordRepo
	log             *logger.Logger
	minInteractions int
	saturation      int
}

func NewFeatureEngineeringService(recordRepo repos.BehaviorRecordRepo, log *logger.Logger) FeatureEngineeringService {
	svcLog := log.With("service", "FeatureEngineeringService")
	minInteractions := utils.GetEnvAsInt("MIN_INTERACTIONS_THRESHOLD", DefaultMinInteractions, log)
	saturation := utils.GetEnvAsInt("EVIDENCE_SATURATION", DefaultEvidenceSaturation, log)
	if saturation < minInteractions {
		saturation = minInteractions
	}
	return &featureEngineeringService{
		recordRepo:      recordRepo,
		log:             svcLog,
		minInteractions: minInteractions,
		saturation:      saturation,
	}
}

func (s *featureEngineeringService) MinInteractions() int {
	return s.minInteractions
}

func (s *featureEngineeringService) CalculateFeatures(ctx context.Context, userID uuid.UUID) (*AggregatedFeatures, error) {
	records, err := s.recordRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load behavior records: %w", err)
	}
	return s.Aggregate(records), nil
}

// Aggregate is a pure reduction over immutable record snapshots. Summation is
// commutative, so record order never changes the result.
func (s *featureEngineeringService) Aggregate(records []*types.BehaviorRecord) *AggregatedFeatures {
	agg := &AggregatedFeatures{
		ModeUsage:    make(map[string]ModeTotals, 8),
		SessionCount: len(records),
	}
	for _, mode := range types.AllModes() {
		agg.ModeUsage[mode] = ModeTotals{}
	}

	for _, record := range records {
		for _, mode := range types.AllModes() {
			stat, ok := record.ModeUsage[mode]
			if !ok {
				continue
			}
			totals := agg.ModeUsage[mode]
			totals.Count += stat.Count
			totals.TotalTime += stat.TotalTime
			agg.ModeUsage[mode] = totals
		}

		a := record.ActivityEngagement
		agg.Activity.QuizzesCompleted += a.QuizzesCompleted
		agg.Activity.PracticeQuestionsAttempted += a.PracticeQuestionsAttempted
		agg.Activity.DiscussionParticipation += a.DiscussionParticipation
		agg.Activity.ReflectionJournalEntries += a.ReflectionJournalEntries
		agg.Activity.VisualDiagramsViewed += a.VisualDiagramsViewed
		agg.Activity.HandsOnLabsCompleted += a.HandsOnLabsCompleted
		agg.Activity.ConceptExplorationsCount += a.ConceptExplorationsCount
		agg.Activity.SequentialStepsCompleted += a.SequentialStepsCompleted
	}

	for _, totals := range agg.ModeUsage {
		agg.TotalInteractions += totals.Count
		agg.TotalLearningTime += totals.TotalTime
	}

	agg.Behavioral = computeBehavioralFeatures(agg)
	agg.DataQuality = s.assessDataQuality(agg)
	return agg
}

func computeBehavioralFeatures(agg *AggregatedFeatures) BehavioralFeatures {
	if agg.TotalInteractions == 0 {
		return defaultBehavioralFeatures()
	}

	totalTime := float64(agg.TotalLearningTime)
	if totalTime == 0 {
		totalTime = 1
	}
	totalActivities := float64(agg.TotalInteractions)
	sessions := float64(agg.SessionCount)
	if sessions == 0 {
		sessions = 1
	}

	modeTime := func(mode string) float64 { return float64(agg.ModeUsage[mode].TotalTime) }
	modeCount := func(mode string) float64 { return float64(agg.ModeUsage[mode].Count) }
	a := agg.Activity

	return BehavioralFeatures{
		ActiveLearningUsageRatio:     modeTime(types.ModeActiveLearning) / totalTime,
		ReflectiveLearningUsageRatio: modeTime(types.ModeReflectiveLearning) / totalTime,
		DiscussionParticipationRate:  float64(a.DiscussionParticipation) / totalActivities,
		ReflectionJournalFrequency:   float64(a.ReflectionJournalEntries) / sessions,
		GroupActivityPreference: float64(a.DiscussionParticipation) /
			float64(a.DiscussionParticipation+a.ReflectionJournalEntries+1),
		ImmediateApplicationRate: float64(a.PracticeQuestionsAttempted) / totalActivities,

		SensingLearningUsageRatio:      modeTime(types.ModeSensingLearning) / totalTime,
		IntuitiveLearningUsageRatio:    modeTime(types.ModeIntuitiveLearning) / totalTime,
		PracticalLabCompletionRate:     float64(a.HandsOnLabsCompleted) / totalActivities,
		AbstractPatternExplorationRate: float64(a.ConceptExplorationsCount) / totalActivities,
		ConcreteVsAbstractPreference: (modeTime(types.ModeSensingLearning) + 1) /
			(modeTime(types.ModeIntuitiveLearning) + 1),
		ExperimentationFrequency: float64(a.HandsOnLabsCompleted) / sessions,

		VisualLearningUsageRatio: modeTime(types.ModeVisualLearning) / totalTime,
		AINarratorUsageRatio:     modeTime(types.ModeAINarrator) / totalTime,
		DiagramViewFrequency:     float64(a.VisualDiagramsViewed) / totalActivities,
		AudioNarrationUsage:      modeCount(types.ModeAINarrator) / totalActivities,
		VisualVsVerbalPreference: (modeTime(types.ModeVisualLearning) + 1) /
			(modeTime(types.ModeAINarrator) + 1),
		VisualAidEngagement: float64(a.VisualDiagramsViewed) / sessions,

		SequentialLearningUsageRatio: modeTime(types.ModeSequentialLearning) / totalTime,
		GlobalLearningUsageRatio:     modeTime(types.ModeGlobalLearning) / totalTime,
		StepByStepCompletionRate:     float64(a.SequentialStepsCompleted) / totalActivities,
		OverviewFirstBehavior:        modeCount(types.ModeGlobalLearning) / totalActivities,
		SequentialVsGlobalPreference: (modeTime(types.ModeSequentialLearning) + 1) /
			(modeTime(types.ModeGlobalLearning) + 1),
		LinearProgressionRate: float64(a.SequentialStepsCompleted) / sessions,
	}
}

// Defaults for a user with no evidence: ratios and rates zero, pairwise
// preferences neutral.
func defaultBehavioralFeatures() BehavioralFeatures {
	return BehavioralFeatures{
		GroupActivityPreference:      0.5,
		ConcreteVsAbstractPreference: 1,
		VisualVsVerbalPreference:     1,
		SequentialVsGlobalPreference: 1,
	}
}

// assessDataQuality maps totalInteractions onto a bounded, monotone
// confidence percentage with fixed level breakpoints. More evidence never
// decreases confidence.
func (s *featureEngineeringService) assessDataQuality(agg *AggregatedFeatures) types.DataQuality {
	pct := 0
	if s.saturation > 0 {
		pct = agg.TotalInteractions * 100 / s.saturation
	}
	if pct > 100 {
		pct = 100
	}

	level := types.ConfidenceLow
	switch {
	case agg.TotalInteractions >= s.saturation:
		level = types.ConfidenceHigh
	case agg.TotalInteractions >= 2*s.minInteractions:
		level = types.ConfidenceMedium
	case agg.TotalInteractions >= s.minInteractions:
		level = types.ConfidenceLowMedium
	}

	return types.DataQuality{
		TotalInteractions:           agg.TotalInteractions,
		TotalLearningTime:           agg.TotalLearningTime,
		SessionCount:                agg.SessionCount,
		ConfidenceLevel:             level,
		ConfidencePercentage:        pct,
		SufficientForClassification: agg.TotalInteractions >= s.minInteractions,
	}
}

// dampPreference compresses pairwise preference ratios above 1 so the ML
// input stays bounded; ratios at or below 1 are already in range.
func dampPreference(v float64) float64 {
	if v > 1 {
		return 1 / (1 + math.Log(v))
	}
	return v
}

// ConvertToMLFormat maps aggregated features onto the external predictor's
// 27-field contract. Signals this system does not collect (the assistant
// usage ratios) are zero-filled, which the contract permits.
func (s *featureEngineeringService) ConvertToMLFormat(agg *AggregatedFeatures) mlservice.Features {
	b := agg.Behavioral
	a := agg.Activity
	return mlservice.Features{
		ActiveModeRatio:     dampPreference(b.ActiveLearningUsageRatio),
		QuestionsGenerated:  float64(a.PracticeQuestionsAttempted),
		DebatesParticipated: float64(a.DiscussionParticipation),

		ReflectiveModeRatio: dampPreference(b.ReflectiveLearningUsageRatio),
		ReflectionsWritten:  float64(a.ReflectionJournalEntries),
		JournalEntries:      float64(a.ReflectionJournalEntries),

		SensingModeRatio:     dampPreference(b.SensingLearningUsageRatio),
		SimulationsCompleted: float64(a.HandsOnLabsCompleted),
		ChallengesCompleted:  float64(a.PracticeQuestionsAttempted),

		IntuitiveModeRatio: dampPreference(b.IntuitiveLearningUsageRatio),
		ConceptsExplored:   float64(a.ConceptExplorationsCount),
		PatternsDiscovered: float64(a.ConceptExplorationsCount),

		VisualModeRatio:    dampPreference(b.VisualLearningUsageRatio),
		DiagramsViewed:     float64(a.VisualDiagramsViewed),
		WireframesExplored: float64(a.VisualDiagramsViewed),

		VerbalModeRatio:  dampPreference(b.AINarratorUsageRatio),
		TextRead:         float64(agg.ModeUsage[types.ModeAINarrator].Count),
		SummariesCreated: float64(a.ReflectionJournalEntries / 2),

		SequentialModeRatio: dampPreference(b.SequentialLearningUsageRatio),
		StepsCompleted:      float64(a.SequentialStepsCompleted),
		LinearNavigation:    float64(a.SequentialStepsCompleted),

		GlobalModeRatio: dampPreference(b.GlobalLearningUsageRatio),
		OverviewsViewed: float64(agg.ModeUsage[types.ModeGlobalLearning].Count),
		NavigationJumps: float64(agg.ModeUsage[types.ModeGlobalLearning].Count),
	}
}
