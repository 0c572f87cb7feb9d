package types

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Classification methods recorded on the profile. Hybrid means a behavioral
// classification merged with stored questionnaire scores.
const (
	MethodRuleBased     = "rule-based"
	MethodMLPrediction  = "ml-prediction"
	MethodHybrid        = "hybrid"
	MethodQuestionnaire = "questionnaire"
)

// Data-quality confidence levels, in increasing order of evidence.
const (
	ConfidenceLow       = "low"
	ConfidenceLowMedium = "low-medium"
	ConfidenceMedium    = "medium"
	ConfidenceHigh      = "high"
)

// DimensionScores holds the four FSLSM dimension scores on the ILS scale.
// Each value is an integer in [-11, +11]; the positive pole is Active,
// Sensing, Visual, Sequential respectively.
type DimensionScores struct {
	ActiveReflective int `json:"activeReflective"`
	SensingIntuitive int `json:"sensingIntuitive"`
	VisualVerbal     int `json:"visualVerbal"`
	SequentialGlobal int `json:"sequentialGlobal"`
}

func (d DimensionScores) Value() (driver.Value, error) { return jsonValue(d) }
func (d *DimensionScores) Scan(src any) error          { return jsonScan(d, src) }

// DimensionConfidence holds per-dimension confidence in [0, 1].
type DimensionConfidence struct {
	ActiveReflective float64 `json:"activeReflective"`
	SensingIntuitive float64 `json:"sensingIntuitive"`
	VisualVerbal     float64 `json:"visualVerbal"`
	SequentialGlobal float64 `json:"sequentialGlobal"`
}

func (d DimensionConfidence) Value() (driver.Value, error) { return jsonValue(d) }
func (d *DimensionConfidence) Scan(src any) error          { return jsonScan(d, src) }

// Average collapses the per-dimension confidences into one scalar.
func (d DimensionConfidence) Average() float64 {
	return (d.ActiveReflective + d.SensingIntuitive + d.VisualVerbal + d.SequentialGlobal) / 4
}

type RecommendedMode struct {
	Mode       string  `json:"mode"`
	Dimension  string  `json:"dimension"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	Score      int     `json:"score"`
}

type RecommendedModes []RecommendedMode

func (r RecommendedModes) Value() (driver.Value, error) { return jsonValue(r) }
func (r *RecommendedModes) Scan(src any) error          { return jsonScan(r, src) }

// DataQuality summarizes how much behavioral evidence backs a profile.
// ConfidencePercentage is monotone non-decreasing in TotalInteractions.
type DataQuality struct {
	TotalInteractions           int        `json:"totalInteractions"`
	TotalLearningTime           int64      `json:"totalLearningTime"`
	SessionCount                int        `json:"sessionCount"`
	ConfidenceLevel             string     `json:"confidenceLevel"`
	ConfidencePercentage        int        `json:"confidencePercentage"`
	SufficientForClassification bool       `json:"sufficientForClassification"`
	LastDataUpdate              *time.Time `json:"lastDataUpdate,omitempty"`
}

func (q DataQuality) Value() (driver.Value, error) { return jsonValue(q) }
func (q *DataQuality) Scan(src any) error          { return jsonScan(q, src) }

// LearningStyleProfile is the persisted classification outcome, one row per
// user. It is created lazily and mutated only by the classification service
// and the questionnaire submission path.
type LearningStyleProfile struct {
	ID                   uuid.UUID           `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID               uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	User                 *User               `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Dimensions           DimensionScores     `gorm:"type:jsonb;column:dimensions" json:"dimensions"`
	Confidence           DimensionConfidence `gorm:"type:jsonb;column:confidence" json:"confidence"`
	RecommendedModes     RecommendedModes    `gorm:"type:jsonb;column:recommended_modes" json:"recommended_modes"`
	ClassificationMethod string              `gorm:"column:classification_method;not null;default:'rule-based'" json:"classification_method"`
	ModelVersion         string              `gorm:"column:model_version;not null;default:'1.0.0'" json:"model_version"`
	QuestionnaireScores  *DimensionScores    `gorm:"type:jsonb;column:questionnaire_scores" json:"questionnaire_scores,omitempty"`
	DataQuality          DataQuality         `gorm:"type:jsonb;column:data_quality" json:"data_quality"`
	LastPrediction       *time.Time          `gorm:"column:last_prediction;index" json:"last_prediction,omitempty"`
	PredictionCount      int                 `gorm:"column:prediction_count;not null;default:0" json:"prediction_count"`
	CreatedAt            time.Time           `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

func (LearningStyleProfile) TableName() string {
	return "learning_style_profile"
}

func (p *LearningStyleProfile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DominantStyle names the poles with at least a mild preference (|score| >= 3).
func (p *LearningStyleProfile) DominantStyle() string {
	d := p.Dimensions
	styles := make([]string, 0, 4)
	if abs(d.ActiveReflective) >= 3 {
		styles = append(styles, pole(d.ActiveReflective, "Active", "Reflective"))
	}
	if abs(d.SensingIntuitive) >= 3 {
		styles = append(styles, pole(d.SensingIntuitive, "Sensing", "Intuitive"))
	}
	if abs(d.VisualVerbal) >= 3 {
		styles = append(styles, pole(d.VisualVerbal, "Visual", "Verbal"))
	}
	if abs(d.SequentialGlobal) >= 3 {
		styles = append(styles, pole(d.SequentialGlobal, "Sequential", "Global"))
	}
	if len(styles) == 0 {
		return "Balanced"
	}
	out := styles[0]
	for _, s := range styles[1:] {
		out += "-" + s
	}
	return out
}

func pole(score int, positive, negative string) string {
	if score > 0 {
		return positive
	}
	return negative
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
