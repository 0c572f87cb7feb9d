package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/adaptive-backend/internal/clients/mlservice"
	"github.com/studyloop/adaptive-backend/internal/types"
)

type classificationFixture struct {
	svc      ClassificationService
	records  *fakeRecordRepo
	profiles *fakeProfileRepo
	ml       *fakeMLClient
}

func newClassificationFixture(t *testing.T, ml *fakeMLClient) *classificationFixture {
	t.Helper()
	log := testLogger(t)
	records := &fakeRecordRepo{}
	profiles := newFakeProfileRepo()
	features := NewFeatureEngineeringService(records, log)
	labeler := NewRuleBasedLabelingService(log)
	questionnaire := NewQuestionnaireService(log)
	svc := NewClassificationService(features, labeler, questionnaire, ml, profiles, records, nil, log)
	return &classificationFixture{svc: svc, records: records, profiles: profiles, ml: ml}
}

func seedRecords(t *testing.T, f *classificationFixture, userID uuid.UUID, interactions int) {
	t.Helper()
	record := behaviorRecordWith(userID, "s1",
		map[string]int{
			types.ModeActiveLearning: interactions / 2,
			types.ModeVisualLearning: interactions - interactions/2,
		},
		map[string]int64{
			types.ModeActiveLearning: int64(interactions) * 800,
			types.ModeVisualLearning: int64(interactions) * 1200,
		},
		types.ActivityEngagement{DiscussionParticipation: 5, VisualDiagramsViewed: 8})
	if _, err := f.records.Create(context.Background(), nil, record); err != nil {
		t.Fatalf("seed records: %v", err)
	}
}

func TestClassifyInsufficientData(t *testing.T) {
	f := newClassificationFixture(t, &fakeMLClient{})
	userID := uuid.New()
	seedRecords(t, f, userID, 49)

	_, err := f.svc.Classify(context.Background(), userID)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.TotalInteractions != 49 || insufficient.Required != 50 {
		t.Fatalf("unexpected gate details: %+v", insufficient)
	}
	if f.ml.healthCalls != 0 {
		t.Fatal("gate should reject before any ml call")
	}
	if len(f.profiles.profiles) != 0 {
		t.Fatal("gate rejection must not create a profile")
	}
}

func TestClassifyFallsBackWhenMLUnavailable(t *testing.T) {
	f := newClassificationFixture(t, &fakeMLClient{
		health: mlservice.HealthStatus{Available: false, Err: "connection refused"},
	})
	userID := uuid.New()
	seedRecords(t, f, userID, 50)

	profile, err := f.svc.Classify(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ClassificationMethod != types.MethodRuleBased {
		t.Fatalf("expected rule-based fallback, got %s", profile.ClassificationMethod)
	}
	if f.ml.predicts != 0 {
		t.Fatal("unhealthy service must not receive predict calls")
	}
	if profile.PredictionCount != 1 {
		t.Fatalf("expected prediction count 1, got %d", profile.PredictionCount)
	}
	if profile.LastPrediction == nil {
		t.Fatal("last prediction timestamp not set")
	}
	if len(profile.RecommendedModes) == 0 {
		t.Fatal("classification must always produce recommendations")
	}
}

func TestClassifyFallsBackWhenPredictionFails(t *testing.T) {
	f := newClassificationFixture(t, &fakeMLClient{
		health:     mlservice.HealthStatus{Available: true, Version: "2.1.0"},
		prediction: mlservice.PredictionResult{Success: false, Err: "models not loaded"},
	})
	userID := uuid.New()
	seedRecords(t, f, userID, 80)

	profile, err := f.svc.Classify(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ClassificationMethod != types.MethodRuleBased {
		t.Fatalf("failed prediction should fall back to rule-based, got %s", profile.ClassificationMethod)
	}
}

func TestClassifyUsesMLPrediction(t *testing.T) {
	predicted := types.DimensionScores{ActiveReflective: 7, SensingIntuitive: -4, VisualVerbal: 9, SequentialGlobal: 1}
	f := newClassificationFixture(t, &fakeMLClient{
		health: mlservice.HealthStatus{Available: true, Version: "2.1.0"},
		prediction: mlservice.PredictionResult{
			Success:     true,
			Predictions: predicted,
			Confidence:  types.DimensionConfidence{ActiveReflective: 0.8, SensingIntuitive: 0.7, VisualVerbal: 0.9, SequentialGlobal: 0.6},
		},
	})
	userID := uuid.New()
	seedRecords(t, f, userID, 100)

	profile, err := f.svc.Classify(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ClassificationMethod != types.MethodMLPrediction {
		t.Fatalf("expected ml-prediction, got %s", profile.ClassificationMethod)
	}
	if profile.Dimensions != predicted {
		t.Fatalf("expected predicted dimensions %+v, got %+v", predicted, profile.Dimensions)
	}
	if profile.ModelVersion != "2.1.0" {
		t.Fatalf("model version not recorded, got %s", profile.ModelVersion)
	}
}

func TestClassifyHybridMergesQuestionnaire(t *testing.T) {
	predicted := types.DimensionScores{ActiveReflective: 8, SensingIntuitive: 0, VisualVerbal: 4, SequentialGlobal: -6}
	f := newClassificationFixture(t, &fakeMLClient{
		health:     mlservice.HealthStatus{Available: true},
		prediction: mlservice.PredictionResult{Success: true, Predictions: predicted},
	})
	userID := uuid.New()
	seedRecords(t, f, userID, 100)

	questionnaire := types.DimensionScores{ActiveReflective: 2, SensingIntuitive: 6, VisualVerbal: -4, SequentialGlobal: -6}
	f.profiles.profiles[userID] = &types.LearningStyleProfile{
		ID:                  uuid.New(),
		UserID:              userID,
		QuestionnaireScores: &questionnaire,
	}

	profile, err := f.svc.Classify(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ClassificationMethod != types.MethodHybrid {
		t.Fatalf("expected hybrid method, got %s", profile.ClassificationMethod)
	}
	want := types.DimensionScores{ActiveReflective: 5, SensingIntuitive: 3, VisualVerbal: 0, SequentialGlobal: -6}
	if profile.Dimensions != want {
		t.Fatalf("hybrid merge: got %+v, want %+v", profile.Dimensions, want)
	}
}

func TestStatusIsSideEffectFree(t *testing.T) {
	f := newClassificationFixture(t, &fakeMLClient{})
	userID := uuid.New()
	seedRecords(t, f, userID, 30)

	status, err := f.svc.Status(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.HasProfile {
		t.Fatal("no profile expected before classification")
	}
	if status.ReadyForClassification {
		t.Fatal("30 interactions should not be ready")
	}
	if status.InteractionsNeeded != 20 {
		t.Fatalf("expected 20 more interactions, got %d", status.InteractionsNeeded)
	}
	if f.ml.healthCalls != 0 || f.ml.predicts != 0 {
		t.Fatal("status must not touch the ml service")
	}
	if len(f.profiles.profiles) != 0 || f.profiles.saves != 0 {
		t.Fatal("status must not write profiles")
	}
}

func TestSubmitQuestionnaireWithoutBehavioralData(t *testing.T) {
	f := newClassificationFixture(t, &fakeMLClient{})
	userID := uuid.New()

	log := testLogger(t)
	q := NewQuestionnaireService(log)
	profile, err := f.svc.SubmitQuestionnaire(context.Background(), userID, allAnswers(q.Questions(), "a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ClassificationMethod != types.MethodQuestionnaire {
		t.Fatalf("expected questionnaire method, got %s", profile.ClassificationMethod)
	}
	if profile.Dimensions.ActiveReflective != 11 {
		t.Fatalf("expected full active tilt, got %d", profile.Dimensions.ActiveReflective)
	}
	if profile.QuestionnaireScores == nil {
		t.Fatal("questionnaire scores not stored")
	}
	if f.ml.healthCalls != 0 {
		t.Fatal("questionnaire-only path must not call the ml service")
	}
}

func TestMaybeAutoClassify(t *testing.T) {
	f := newClassificationFixture(t, &fakeMLClient{})
	userID := uuid.New()
	seedRecords(t, f, userID, 60)

	// No profile yet: classification runs.
	f.svc.MaybeAutoClassify(context.Background(), userID)
	profile, err := f.svc.Profile(context.Background(), userID)
	if err != nil || profile == nil {
		t.Fatalf("expected profile after auto-classify, got %v %v", profile, err)
	}
	firstPrediction := *profile.LastPrediction

	// Fresh prediction: no reclassification.
	f.svc.MaybeAutoClassify(context.Background(), userID)
	profile, _ = f.svc.Profile(context.Background(), userID)
	if !profile.LastPrediction.Equal(firstPrediction) {
		t.Fatal("fresh profile should not be reclassified")
	}

	// Stale prediction: reclassification runs.
	stale := time.Now().Add(-25 * time.Hour)
	stored := f.profiles.profiles[userID]
	stored.LastPrediction = &stale
	f.svc.MaybeAutoClassify(context.Background(), userID)
	profile, _ = f.svc.Profile(context.Background(), userID)
	if profile.LastPrediction.Equal(stale) {
		t.Fatal("stale profile should be reclassified")
	}
}

func TestResetClearsEverything(t *testing.T) {
	f := newClassificationFixture(t, &fakeMLClient{})
	userID := uuid.New()
	seedRecords(t, f, userID, 60)
	if _, err := f.svc.Classify(context.Background(), userID); err != nil {
		t.Fatalf("classify: %v", err)
	}

	if err := f.svc.Reset(context.Background(), userID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	records, _ := f.records.GetByUserID(context.Background(), nil, userID)
	if len(records) != 0 {
		t.Fatal("behavior records not deleted")
	}
	profile, _ := f.svc.Profile(context.Background(), userID)
	if profile != nil {
		t.Fatal("profile not deleted")
	}
}
