package repos

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/studyloop/adaptive-backend/internal/logger"
)

// The schema below mirrors the postgres models minus the uuid extension
// defaults, which sqlite cannot express. IDs are assigned in BeforeCreate
// hooks so both databases behave the same.
const testSchema = `
CREATE TABLE behavior_record (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	mode_usage TEXT,
	activity_engagement TEXT,
	content_interactions TEXT,
	device_info TEXT,
	timestamp DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, session_id)
);
CREATE TABLE learning_style_profile (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE,
	dimensions TEXT,
	confidence TEXT,
	recommended_modes TEXT,
	classification_method TEXT NOT NULL DEFAULT 'rule-based',
	model_version TEXT NOT NULL DEFAULT '1.0.0',
	questionnaire_scores TEXT,
	data_quality TEXT,
	last_prediction DATETIME,
	prediction_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(testSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}
