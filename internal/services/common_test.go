package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyloop/adaptive-backend/internal/clients/mlservice"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

type fakeRecordRepo struct {
	records []*types.BehaviorRecord
}

func (f *fakeRecordRepo) Create(_ context.Context, _ *gorm.DB, record *types.BehaviorRecord) (*types.BehaviorRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.records = append(f.records, record)
	return record, nil
}

func (f *fakeRecordRepo) Update(_ context.Context, _ *gorm.DB, record *types.BehaviorRecord) error {
	for i, r := range f.records {
		if r.ID == record.ID {
			f.records[i] = record
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRecordRepo) GetByUserAndSession(_ context.Context, _ *gorm.DB, userID uuid.UUID, sessionID string) (*types.BehaviorRecord, error) {
	for _, r := range f.records {
		if r.UserID == userID && r.SessionID == sessionID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRecordRepo) GetByUserID(_ context.Context, _ *gorm.DB, userID uuid.UUID) ([]*types.BehaviorRecord, error) {
	var out []*types.BehaviorRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) DeleteByUserID(_ context.Context, _ *gorm.DB, userID uuid.UUID) error {
	kept := f.records[:0]
	for _, r := range f.records {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

type fakeProfileRepo struct {
	profiles map[uuid.UUID]*types.LearningStyleProfile
	saves    int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[uuid.UUID]*types.LearningStyleProfile)}
}

func (f *fakeProfileRepo) GetByUserID(_ context.Context, _ *gorm.DB, userID uuid.UUID) (*types.LearningStyleProfile, error) {
	if p, ok := f.profiles[userID]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, nil
}

func (f *fakeProfileRepo) GetOrCreate(_ context.Context, _ *gorm.DB, userID uuid.UUID) (*types.LearningStyleProfile, error) {
	if p, ok := f.profiles[userID]; ok {
		clone := *p
		return &clone, nil
	}
	p := &types.LearningStyleProfile{
		ID:                   uuid.New(),
		UserID:               userID,
		ClassificationMethod: types.MethodRuleBased,
		DataQuality:          types.DataQuality{ConfidenceLevel: types.ConfidenceLow},
	}
	f.profiles[userID] = p
	clone := *p
	return &clone, nil
}

func (f *fakeProfileRepo) Save(_ context.Context, _ *gorm.DB, profile *types.LearningStyleProfile) error {
	clone := *profile
	f.profiles[profile.UserID] = &clone
	f.saves++
	return nil
}

func (f *fakeProfileRepo) DeleteByUserID(_ context.Context, _ *gorm.DB, userID uuid.UUID) error {
	delete(f.profiles, userID)
	return nil
}

type fakeMLClient struct {
	health      mlservice.HealthStatus
	prediction  mlservice.PredictionResult
	healthCalls int
	predicts    int
}

func (f *fakeMLClient) CheckHealth(_ context.Context) mlservice.HealthStatus {
	f.healthCalls++
	return f.health
}

func (f *fakeMLClient) GetPrediction(_ context.Context, _ mlservice.Features) mlservice.PredictionResult {
	f.predicts++
	return f.prediction
}

// behaviorRecordWith builds one session record whose mode counts and times
// are spread over the given modes.
func behaviorRecordWith(userID uuid.UUID, sessionID string, counts map[string]int, times map[string]int64, activity types.ActivityEngagement) *types.BehaviorRecord {
	usage := types.NewModeUsage()
	for mode, count := range counts {
		stat := usage[mode]
		stat.Count = count
		usage[mode] = stat
	}
	for mode, total := range times {
		stat := usage[mode]
		stat.TotalTime = total
		usage[mode] = stat
	}
	return &types.BehaviorRecord{
		ID:                 uuid.New(),
		UserID:             userID,
		SessionID:          sessionID,
		ModeUsage:          usage,
		ActivityEngagement: activity,
	}
}
