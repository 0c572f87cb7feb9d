package observability

import (
	"context"
	"testing"

	"github.com/studyloop/adaptive-backend/internal/logger"
)

func TestInitOTelDisabledReturnsNilShutdown(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "0")

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}

	shutdown := InitOTel(context.Background(), log, OtelConfig{ServiceName: "adaptive-backend-test"})
	if shutdown != nil {
		t.Fatal("expected nil shutdown func when tracing is disabled")
	}
}
