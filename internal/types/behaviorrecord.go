package types

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The eight learning modes whose usage is timed and counted. Keys are fixed:
// they double as jsonb keys in behavior records and as the vocabulary the
// feature engineering stage aggregates over.
const (
	ModeAINarrator         = "aiNarrator"
	ModeVisualLearning     = "visualLearning"
	ModeSequentialLearning = "sequentialLearning"
	ModeGlobalLearning     = "globalLearning"
	ModeSensingLearning    = "sensingLearning"
	ModeIntuitiveLearning  = "intuitiveLearning"
	ModeActiveLearning     = "activeLearning"
	ModeReflectiveLearning = "reflectiveLearning"
)

func AllModes() []string {
	return []string{
		ModeAINarrator,
		ModeVisualLearning,
		ModeSequentialLearning,
		ModeGlobalLearning,
		ModeSensingLearning,
		ModeIntuitiveLearning,
		ModeActiveLearning,
		ModeReflectiveLearning,
	}
}

// ModeStat holds one mode's usage within a single tracking session.
// Counts only ever grow; TotalTime is milliseconds.
type ModeStat struct {
	Count     int        `json:"count"`
	TotalTime int64      `json:"totalTime"`
	LastUsed  *time.Time `json:"lastUsed,omitempty"`
}

type ModeUsage map[string]ModeStat

func NewModeUsage() ModeUsage {
	usage := make(ModeUsage, 8)
	for _, mode := range AllModes() {
		usage[mode] = ModeStat{}
	}
	return usage
}

func (m ModeUsage) Value() (driver.Value, error) { return jsonValue(m) }
func (m *ModeUsage) Scan(src any) error          { return jsonScan(m, src) }

// ActivityEngagement counts discrete learning activities, independent of
// mode timing.
type ActivityEngagement struct {
	QuizzesCompleted           int `json:"quizzesCompleted"`
	PracticeQuestionsAttempted int `json:"practiceQuestionsAttempted"`
	DiscussionParticipation    int `json:"discussionParticipation"`
	ReflectionJournalEntries   int `json:"reflectionJournalEntries"`
	VisualDiagramsViewed       int `json:"visualDiagramsViewed"`
	HandsOnLabsCompleted       int `json:"handsOnLabsCompleted"`
	ConceptExplorationsCount   int `json:"conceptExplorationsCount"`
	SequentialStepsCompleted   int `json:"sequentialStepsCompleted"`
}

func (a ActivityEngagement) Value() (driver.Value, error) { return jsonValue(a) }
func (a *ActivityEngagement) Scan(src any) error          { return jsonScan(a, src) }

type ContentInteraction struct {
	ContentID      string    `json:"contentId"`
	ViewDuration   int64     `json:"viewDuration"`
	CompletionRate float64   `json:"completionRate"`
	Timestamp      time.Time `json:"timestamp"`
}

type ContentInteractions []ContentInteraction

func (c ContentInteractions) Value() (driver.Value, error) { return jsonValue(c) }
func (c *ContentInteractions) Scan(src any) error          { return jsonScan(c, src) }

// DeviceInfo is non-semantic platform metadata sent with each flush.
type DeviceInfo struct {
	UserAgent  string `json:"userAgent,omitempty"`
	ScreenSize string `json:"screenSize,omitempty"`
	Platform   string `json:"platform,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

func (d DeviceInfo) Value() (driver.Value, error) { return jsonValue(d) }
func (d *DeviceInfo) Scan(src any) error          { return jsonScan(d, src) }

// BehaviorRecord is the durable evidence for one tracking session. A session
// owns its record exclusively: flushes replace the counter snapshot with a
// strictly-newer one and append content interactions, so counters are
// monotone per session and aggregation across records stays commutative.
type BehaviorRecord struct {
	ID                  uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID              uuid.UUID           `gorm:"type:uuid;not null;index:idx_behavior_user_session,unique" json:"user_id"`
	User                *User               `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	SessionID           string              `gorm:"column:session_id;not null;index:idx_behavior_user_session,unique" json:"session_id"`
	ModeUsage           ModeUsage           `gorm:"type:jsonb;column:mode_usage" json:"mode_usage"`
	ActivityEngagement  ActivityEngagement  `gorm:"type:jsonb;column:activity_engagement" json:"activity_engagement"`
	ContentInteractions ContentInteractions `gorm:"type:jsonb;column:content_interactions" json:"content_interactions"`
	DeviceInfo          DeviceInfo          `gorm:"type:jsonb;column:device_info" json:"device_info"`
	Timestamp           time.Time           `gorm:"column:timestamp;not null;index" json:"timestamp"`
	CreatedAt           time.Time           `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

func (BehaviorRecord) TableName() string {
	return "behavior_record"
}

// IDs are assigned client-side as well so drivers without uuid defaults work.
func (r *BehaviorRecord) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TotalInteractions sums the mode counts in this record.
func (r *BehaviorRecord) TotalInteractions() int {
	total := 0
	for _, stat := range r.ModeUsage {
		total += stat.Count
	}
	return total
}

// TotalLearningTime sums mode time in milliseconds.
func (r *BehaviorRecord) TotalLearningTime() int64 {
	var total int64
	for _, stat := range r.ModeUsage {
		total += stat.TotalTime
	}
	return total
}
