package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studyloop/adaptive-backend/internal/types"
)

type trackingFixture struct {
	svc      TrackingService
	records  *fakeRecordRepo
	profiles *fakeProfileRepo
	ml       *fakeMLClient
}

func newTrackingFixture(t *testing.T) *trackingFixture {
	t.Helper()
	log := testLogger(t)
	records := &fakeRecordRepo{}
	profiles := newFakeProfileRepo()
	ml := &fakeMLClient{}
	features := NewFeatureEngineeringService(records, log)
	labeler := NewRuleBasedLabelingService(log)
	questionnaire := NewQuestionnaireService(log)
	classification := NewClassificationService(features, labeler, questionnaire, ml, profiles, records, nil, log)
	svc := NewTrackingService(records, profiles, features, classification, nil, log)
	return &trackingFixture{svc: svc, records: records, profiles: profiles, ml: ml}
}

func trackPayload(sessionID string, visualCount int, visualTime int64) TrackPayload {
	usage := types.NewModeUsage()
	stat := usage[types.ModeVisualLearning]
	stat.Count = visualCount
	stat.TotalTime = visualTime
	usage[types.ModeVisualLearning] = stat
	return TrackPayload{
		SessionID: sessionID,
		ModeUsage: usage,
		Timestamp: time.Now().UTC(),
	}
}

func TestTrackCreatesOneRecordPerSession(t *testing.T) {
	f := newTrackingFixture(t)
	userID := uuid.New()

	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s1", 2, 10000)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s1", 5, 25000)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s2", 1, 4000)); err != nil {
		t.Fatalf("track: %v", err)
	}

	records, _ := f.records.GetByUserID(context.Background(), nil, userID)
	if len(records) != 2 {
		t.Fatalf("expected 2 records for 2 sessions, got %d", len(records))
	}
	s1, _ := f.records.GetByUserAndSession(context.Background(), nil, userID, "s1")
	if s1.ModeUsage[types.ModeVisualLearning].Count != 5 {
		t.Fatalf("cumulative snapshot should replace, got count %d", s1.ModeUsage[types.ModeVisualLearning].Count)
	}
	if s1.ModeUsage[types.ModeVisualLearning].TotalTime != 25000 {
		t.Fatalf("cumulative time should replace, got %d", s1.ModeUsage[types.ModeVisualLearning].TotalTime)
	}
}

func TestTrackOutOfOrderBatchCannotRegress(t *testing.T) {
	f := newTrackingFixture(t)
	userID := uuid.New()

	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s1", 8, 40000)); err != nil {
		t.Fatalf("track: %v", err)
	}
	// A delayed retry of an earlier batch carries smaller counters.
	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s1", 3, 15000)); err != nil {
		t.Fatalf("track: %v", err)
	}

	record, _ := f.records.GetByUserAndSession(context.Background(), nil, userID, "s1")
	if record.ModeUsage[types.ModeVisualLearning].Count != 8 {
		t.Fatalf("stale batch regressed count to %d", record.ModeUsage[types.ModeVisualLearning].Count)
	}
	if record.ModeUsage[types.ModeVisualLearning].TotalTime != 40000 {
		t.Fatalf("stale batch regressed time to %d", record.ModeUsage[types.ModeVisualLearning].TotalTime)
	}
}

func TestTrackAppendsContentInteractions(t *testing.T) {
	f := newTrackingFixture(t)
	userID := uuid.New()

	payload := trackPayload("s1", 1, 1000)
	payload.ContentInteractions = types.ContentInteractions{{ContentID: "a", ViewDuration: 500}}
	if _, err := f.svc.Track(context.Background(), userID, payload); err != nil {
		t.Fatalf("track: %v", err)
	}
	payload = trackPayload("s1", 2, 2000)
	payload.ContentInteractions = types.ContentInteractions{{ContentID: "b", ViewDuration: 700}}
	if _, err := f.svc.Track(context.Background(), userID, payload); err != nil {
		t.Fatalf("track: %v", err)
	}

	record, _ := f.records.GetByUserAndSession(context.Background(), nil, userID, "s1")
	if len(record.ContentInteractions) != 2 {
		t.Fatalf("content interactions should append, got %d", len(record.ContentInteractions))
	}
}

func TestTrackRefreshesProfileDataQuality(t *testing.T) {
	f := newTrackingFixture(t)
	userID := uuid.New()

	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s1", 10, 60000)); err != nil {
		t.Fatalf("track: %v", err)
	}

	profile := f.profiles.profiles[userID]
	if profile == nil {
		t.Fatal("tracking should lazily create the profile")
	}
	if profile.DataQuality.TotalInteractions != 10 {
		t.Fatalf("data quality not refreshed, got %d interactions", profile.DataQuality.TotalInteractions)
	}
	if profile.DataQuality.SufficientForClassification {
		t.Fatal("10 interactions should not be sufficient")
	}
}

func TestTrackTriggersAutoClassification(t *testing.T) {
	f := newTrackingFixture(t)
	userID := uuid.New()

	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s1", 60, 300000)); err != nil {
		t.Fatalf("track: %v", err)
	}

	profile := f.profiles.profiles[userID]
	if profile == nil || profile.LastPrediction == nil {
		t.Fatal("crossing the evidence floor should auto-classify")
	}
	if profile.ClassificationMethod != types.MethodRuleBased {
		t.Fatalf("expected rule-based auto classification, got %s", profile.ClassificationMethod)
	}
}

func TestSummary(t *testing.T) {
	f := newTrackingFixture(t)
	userID := uuid.New()

	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s1", 4, 20000)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := f.svc.Track(context.Background(), userID, trackPayload("s2", 6, 30000)); err != nil {
		t.Fatalf("track: %v", err)
	}

	summary, err := f.svc.Summary(context.Background(), userID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalInteractions != 10 {
		t.Fatalf("expected 10 interactions, got %d", summary.TotalInteractions)
	}
	if summary.SessionCount != 2 {
		t.Fatalf("expected 2 sessions, got %d", summary.SessionCount)
	}
	if summary.TotalLearningTime != 50000 {
		t.Fatalf("expected 50000ms, got %d", summary.TotalLearningTime)
	}
}
