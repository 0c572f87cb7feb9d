package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
)

type captureTransport struct {
	mu      sync.Mutex
	batches []Batch
	fail    bool
}

func (c *captureTransport) SendBatch(_ context.Context, batch Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("transport down")
	}
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureTransport) sent() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Batch, len(c.batches))
	copy(out, c.batches)
	return out
}

func newTestSession(t *testing.T, transport Transport, batchSize int) *Session {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	s := NewSession(Config{
		SessionID:     "test-session",
		BatchSize:     batchSize,
		FlushInterval: time.Hour,
	}, transport, log)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestBatchSizeTriggersFlush(t *testing.T) {
	transport := &captureTransport{}
	s := newTestSession(t, transport, 3)

	s.TrackActivity(ActivityQuizCompleted)
	s.TrackActivity(ActivityDiagramViewed)
	if len(transport.sent()) != 0 {
		t.Fatal("flush fired before batch size reached")
	}
	s.TrackActivity(ActivityHandsOnLab)

	batches := transport.sent()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch after 3 events, got %d", len(batches))
	}
	got := batches[0].ActivityEngagement
	if got.QuizzesCompleted != 1 || got.VisualDiagramsViewed != 1 || got.HandsOnLabsCompleted != 1 {
		t.Fatalf("activity snapshot incomplete: %+v", got)
	}
	if batches[0].SessionID != "test-session" {
		t.Fatalf("unexpected session id %s", batches[0].SessionID)
	}
}

func TestModeTiming(t *testing.T) {
	transport := &captureTransport{}
	s := newTestSession(t, transport, 100)

	base := time.Unix(1700000000, 0)
	current := base
	s.mu.Lock()
	s.now = func() time.Time { return current }
	s.mu.Unlock()

	s.TrackModeStart(types.ModeVisualLearning)
	current = base.Add(90 * time.Second)
	// Starting another mode ends the first.
	s.TrackModeStart(types.ModeActiveLearning)
	current = base.Add(150 * time.Second)
	s.TrackModeEnd(types.ModeActiveLearning)

	s.Flush(context.Background())
	batches := transport.sent()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	usage := batches[0].ModeUsage
	if usage[types.ModeVisualLearning].TotalTime != 90000 {
		t.Fatalf("visual mode time: got %d, want 90000", usage[types.ModeVisualLearning].TotalTime)
	}
	if usage[types.ModeActiveLearning].TotalTime != 60000 {
		t.Fatalf("active mode time: got %d, want 60000", usage[types.ModeActiveLearning].TotalTime)
	}
	if usage[types.ModeVisualLearning].Count != 1 || usage[types.ModeActiveLearning].Count != 1 {
		t.Fatalf("mode counts wrong: %+v", usage)
	}
}

func TestModeEndMismatchIsNoop(t *testing.T) {
	transport := &captureTransport{}
	s := newTestSession(t, transport, 100)

	s.TrackModeStart(types.ModeVisualLearning)
	s.TrackModeEnd(types.ModeActiveLearning)

	s.mu.Lock()
	current := s.currentMode
	s.mu.Unlock()
	if current != types.ModeVisualLearning {
		t.Fatalf("mismatched end should not stop timing, current=%q", current)
	}
}

func TestContentViewLifecycle(t *testing.T) {
	transport := &captureTransport{}
	s := newTestSession(t, transport, 100)

	base := time.Unix(1700000000, 0)
	current := base
	s.mu.Lock()
	s.now = func() time.Time { return current }
	s.mu.Unlock()

	s.TrackContentView("lesson-42")
	current = base.Add(30 * time.Second)
	s.TrackContentViewEnd("lesson-42", 0.75)
	s.TrackContentViewEnd("never-started", 1.0)

	s.Flush(context.Background())
	batches := transport.sent()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	content := batches[0].ContentInteractions
	if len(content) != 1 {
		t.Fatalf("expected 1 content interaction, got %d", len(content))
	}
	if content[0].ContentID != "lesson-42" || content[0].ViewDuration != 30000 || content[0].CompletionRate != 0.75 {
		t.Fatalf("content interaction wrong: %+v", content[0])
	}
}

func TestFailedFlushRetainsContent(t *testing.T) {
	transport := &captureTransport{fail: true}
	s := newTestSession(t, transport, 100)

	s.TrackContentView("lesson-1")
	s.TrackContentViewEnd("lesson-1", 1.0)
	s.Flush(context.Background())
	if len(transport.sent()) != 0 {
		t.Fatal("failed transport should have recorded nothing")
	}

	transport.mu.Lock()
	transport.fail = false
	transport.mu.Unlock()

	s.Flush(context.Background())
	batches := transport.sent()
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch after recovery, got %d", len(batches))
	}
	if len(batches[0].ContentInteractions) != 1 {
		t.Fatalf("retained interaction lost: %+v", batches[0].ContentInteractions)
	}
}

func TestSuspendFlushesAndPausesTimer(t *testing.T) {
	transport := &captureTransport{}
	s := newTestSession(t, transport, 100)

	s.TrackModeStart(types.ModeGlobalLearning)
	s.Suspend()

	batches := transport.sent()
	if len(batches) != 1 {
		t.Fatalf("suspend should flush, got %d batches", len(batches))
	}
	s.mu.Lock()
	suspended, current := s.suspended, s.currentMode
	s.mu.Unlock()
	if !suspended {
		t.Fatal("session should be suspended")
	}
	if current != "" {
		t.Fatalf("suspend should end the active mode, still timing %q", current)
	}

	s.Resume()
	s.mu.Lock()
	suspended = s.suspended
	s.mu.Unlock()
	if suspended {
		t.Fatal("resume should clear suspension")
	}
}

func TestCloseFlushesRemainder(t *testing.T) {
	transport := &captureTransport{}
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	s := NewSession(Config{FlushInterval: time.Hour}, transport, log)

	s.TrackModeStart(types.ModeSequentialLearning)
	s.Close(context.Background())

	batches := transport.sent()
	if len(batches) != 1 {
		t.Fatalf("expected final flush on close, got %d batches", len(batches))
	}
	if batches[0].ModeUsage[types.ModeSequentialLearning].Count != 1 {
		t.Fatalf("final batch missing mode usage: %+v", batches[0].ModeUsage)
	}

	// Close is idempotent.
	s.Close(context.Background())
	if len(transport.sent()) != 1 {
		t.Fatal("second close must not flush again")
	}
}
