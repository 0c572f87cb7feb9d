package services

import (
	"math"
	"sort"

	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
)

// MinRecommendationScore is the mild-preference cutoff on the ILS scale: a
// dimension recommends a mode only when |score| reaches it.
const MinRecommendationScore = 3

// Learning mode display names surfaced in recommendations.
const (
	ModeNameActiveHub         = "Active Learning Hub"
	ModeNameReflective        = "Reflective Learning"
	ModeNameHandsOnLab        = "Hands-On Lab"
	ModeNameConceptExploring  = "Concept Constellation"
	ModeNameVisual            = "Visual Learning"
	ModeNameAINarrator        = "AI Narrator"
	ModeNameSequential        = "Sequential Learning"
	ModeNameGlobal            = "Global Learning"
)

// Classification is the tagged outcome of a labeling pass; Method records
// which path produced the dimension scores.
type Classification struct {
	Dimensions  types.DimensionScores     `json:"dimensions"`
	Confidence  types.DimensionConfidence `json:"confidence"`
	Method      string                    `json:"method"`
	DataQuality types.DataQuality         `json:"dataQuality"`
}

// RuleBasedLabelingService converts aggregated features into FSLSM dimension
// scores with fixed heuristics. It is the always-available floor under the ML
// path: deterministic, pure, and total over every valid input including the
// all-zero case.
type RuleBasedLabelingService interface {
	Classify(agg *AggregatedFeatures) Classification
	GenerateRecommendations(c Classification) types.RecommendedModes
}

type ruleBasedLabelingService struct {
	log *logger.Logger
}

func NewRuleBasedLabelingService(log *logger.Logger) RuleBasedLabelingService {
	return &ruleBasedLabelingService{log: log.With("service", "RuleBasedLabelingService")}
}

func (s *ruleBasedLabelingService) Classify(agg *AggregatedFeatures) Classification {
	if agg == nil || agg.TotalInteractions == 0 {
		return Classification{
			Method: types.MethodRuleBased,
			DataQuality: types.DataQuality{
				ConfidenceLevel: types.ConfidenceLow,
			},
		}
	}

	f := agg.Behavioral
	dims := types.DimensionScores{
		ActiveReflective: activeReflectiveScore(f),
		SensingIntuitive: sensingIntuitiveScore(f),
		VisualVerbal:     visualVerbalScore(f),
		SequentialGlobal: sequentialGlobalScore(f),
	}

	return Classification{
		Dimensions:  dims,
		Confidence:  dimensionConfidences(f, agg.DataQuality),
		Method:      types.MethodRuleBased,
		DataQuality: agg.DataQuality,
	}
}

// Positive pole is Active. Mode-time ratio dominates, discussion vs
// reflection activity and group preference refine it.
func activeReflectiveScore(f BehavioralFeatures) int {
	score := (f.ActiveLearningUsageRatio - f.ReflectiveLearningUsageRatio) * 11 * 0.4
	score += (f.DiscussionParticipationRate - f.ReflectionJournalFrequency) * 11 * 0.3
	score += (f.GroupActivityPreference - 0.5) * 2 * 11 * 0.2
	score += (f.ImmediateApplicationRate - 0.5) * 11 * 0.1
	return clampScore(score)
}

// Positive pole is Sensing.
func sensingIntuitiveScore(f BehavioralFeatures) int {
	score := (f.SensingLearningUsageRatio - f.IntuitiveLearningUsageRatio) * 11 * 0.4
	score += (f.PracticalLabCompletionRate - f.AbstractPatternExplorationRate) * 11 * 0.3
	score += math.Log(f.ConcreteVsAbstractPreference) * 11 * 0.2
	score += (f.ExperimentationFrequency - 0.5) * 11 * 0.1
	return clampScore(score)
}

// Positive pole is Visual; the AI narrator is the verbal channel.
func visualVerbalScore(f BehavioralFeatures) int {
	score := (f.VisualLearningUsageRatio - f.AINarratorUsageRatio) * 11 * 0.5
	score += (f.DiagramViewFrequency - f.AudioNarrationUsage) * 11 * 0.3
	score += math.Log(f.VisualVsVerbalPreference) * 11 * 0.2
	return clampScore(score)
}

// Positive pole is Sequential.
func sequentialGlobalScore(f BehavioralFeatures) int {
	score := (f.SequentialLearningUsageRatio - f.GlobalLearningUsageRatio) * 11 * 0.4
	score += (f.StepByStepCompletionRate - f.OverviewFirstBehavior) * 11 * 0.3
	score += math.Log(f.SequentialVsGlobalPreference) * 11 * 0.2
	score += (f.LinearProgressionRate - 0.5) * 11 * 0.1
	return clampScore(score)
}

func clampScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded > 11 {
		return 11
	}
	if rounded < -11 {
		return -11
	}
	return rounded
}

// Per-dimension confidence blends overall data quality with how many of the
// dimension's signals carry any evidence.
func dimensionConfidences(f BehavioralFeatures, dq types.DataQuality) types.DimensionConfidence {
	base := float64(dq.ConfidencePercentage) / 100
	return types.DimensionConfidence{
		ActiveReflective: featureGroupConfidence(base,
			f.ActiveLearningUsageRatio, f.ReflectiveLearningUsageRatio,
			f.DiscussionParticipationRate, f.ReflectionJournalFrequency),
		SensingIntuitive: featureGroupConfidence(base,
			f.SensingLearningUsageRatio, f.IntuitiveLearningUsageRatio,
			f.PracticalLabCompletionRate, f.AbstractPatternExplorationRate),
		VisualVerbal: featureGroupConfidence(base,
			f.VisualLearningUsageRatio, f.AINarratorUsageRatio,
			f.DiagramViewFrequency, f.AudioNarrationUsage),
		SequentialGlobal: featureGroupConfidence(base,
			f.SequentialLearningUsageRatio, f.GlobalLearningUsageRatio,
			f.StepByStepCompletionRate, f.OverviewFirstBehavior),
	}
}

func featureGroupConfidence(base float64, features ...float64) float64 {
	meaningful := 0
	for _, v := range features {
		if v > 0 {
			meaningful++
		}
	}
	confidence := base*0.6 + float64(meaningful)/float64(len(features))*0.4
	return math.Min(1, math.Max(0, confidence))
}

type recommendationRule struct {
	dimension    string
	score        int
	positiveMode string
	positiveWhy  string
	negativeMode string
	negativeWhy  string
}

// GenerateRecommendations maps dimensions with at least a mild preference
// into recommended modes, each with a plain-language justification and a
// confidence proportional to the score magnitude. Balanced profiles get a
// fixed default pair instead of an empty list.
func (s *ruleBasedLabelingService) GenerateRecommendations(c Classification) types.RecommendedModes {
	rules := []recommendationRule{
		{
			dimension:    "Active/Reflective",
			score:        c.Dimensions.ActiveReflective,
			positiveMode: ModeNameActiveHub,
			positiveWhy:  "You learn best through hands-on activities and group discussions",
			negativeMode: ModeNameReflective,
			negativeWhy:  "You prefer individual contemplation and deep analysis",
		},
		{
			dimension:    "Sensing/Intuitive",
			score:        c.Dimensions.SensingIntuitive,
			positiveMode: ModeNameHandsOnLab,
			positiveWhy:  "You prefer practical, concrete examples and real-world applications",
			negativeMode: ModeNameConceptExploring,
			negativeWhy:  "You enjoy exploring abstract patterns and theoretical frameworks",
		},
		{
			dimension:    "Visual/Verbal",
			score:        c.Dimensions.VisualVerbal,
			positiveMode: ModeNameVisual,
			positiveWhy:  "You learn best with diagrams, charts, and visual representations",
			negativeMode: ModeNameAINarrator,
			negativeWhy:  "You prefer written and spoken explanations",
		},
		{
			dimension:    "Sequential/Global",
			score:        c.Dimensions.SequentialGlobal,
			positiveMode: ModeNameSequential,
			positiveWhy:  "You prefer step-by-step, logical progression",
			negativeMode: ModeNameGlobal,
			negativeWhy:  "You prefer seeing the big picture and overall context first",
		},
	}

	recommendations := make(types.RecommendedModes, 0, 4)
	for _, rule := range rules {
		magnitude := rule.score
		if magnitude < 0 {
			magnitude = -magnitude
		}
		if magnitude < MinRecommendationScore {
			continue
		}
		mode, why := rule.positiveMode, rule.positiveWhy
		if rule.score < 0 {
			mode, why = rule.negativeMode, rule.negativeWhy
		}
		recommendations = append(recommendations, types.RecommendedMode{
			Mode:       mode,
			Dimension:  rule.dimension,
			Reason:     why,
			Confidence: float64(magnitude) / 11,
			Score:      rule.score,
		})
	}

	if len(recommendations) == 0 {
		return types.RecommendedModes{
			{
				Mode:       ModeNameAINarrator,
				Dimension:  "Balanced",
				Reason:     "Great starting point for understanding any content",
				Confidence: 0.5,
			},
			{
				Mode:       ModeNameVisual,
				Dimension:  "Balanced",
				Reason:     "Visual aids enhance comprehension for most learners",
				Confidence: 0.5,
			},
		}
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Confidence > recommendations[j].Confidence
	})
	return recommendations
}
