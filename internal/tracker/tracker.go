// Package tracker is the client-side half of the behavior pipeline: an
// embeddable session object that times learning-mode usage, counts
// activities, and flushes cumulative snapshots to the tracking endpoint in
// batches. It keeps no global state; callers construct a Session per
// learning session and close it when the session ends.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/types"
)

const (
	DefaultBatchSize     = 5
	DefaultFlushInterval = 30 * time.Second
)

// ActivityKind names a discrete countable learning activity.
type ActivityKind string

const (
	ActivityQuizCompleted     ActivityKind = "quizCompleted"
	ActivityPracticeQuestion  ActivityKind = "practiceQuestion"
	ActivityDiscussion        ActivityKind = "discussion"
	ActivityReflectionJournal ActivityKind = "reflectionJournal"
	ActivityDiagramViewed     ActivityKind = "diagramViewed"
	ActivityHandsOnLab        ActivityKind = "handsOnLab"
	ActivityConceptExplored   ActivityKind = "conceptExplored"
	ActivitySequentialStep    ActivityKind = "sequentialStep"
)

// Batch is one flush payload. ModeUsage and ActivityEngagement are cumulative
// for the whole session; ContentInteractions holds only interactions not yet
// acknowledged by the server.
type Batch struct {
	SessionID           string                    `json:"sessionId"`
	ModeUsage           types.ModeUsage           `json:"modeUsage"`
	ActivityEngagement  types.ActivityEngagement  `json:"activityEngagement"`
	ContentInteractions types.ContentInteractions `json:"contentInteractions"`
	DeviceInfo          types.DeviceInfo          `json:"deviceInfo"`
	Timestamp           time.Time                 `json:"timestamp"`
}

// Transport delivers a batch to the backend. Implementations must be safe to
// call from the flush goroutine.
type Transport interface {
	SendBatch(ctx context.Context, batch Batch) error
}

type Config struct {
	SessionID     string
	BatchSize     int
	FlushInterval time.Duration
	DeviceInfo    types.DeviceInfo
}

// Session accumulates behavioral evidence for one learning session. All
// methods are safe for concurrent use.
type Session struct {
	mu             sync.Mutex
	sessionID      string
	batchSize      int
	flushInterval  time.Duration
	deviceInfo     types.DeviceInfo
	transport      Transport
	log            *logger.Logger
	now            func() time.Time
	modeUsage      types.ModeUsage
	activity       types.ActivityEngagement
	pendingContent types.ContentInteractions
	openViews      map[string]time.Time
	currentMode    string
	modeStartedAt  time.Time
	pendingEvents  int
	suspended      bool
	done           chan struct{}
	closeOnce      sync.Once
}

func NewSession(cfg Config, transport Transport, log *logger.Logger) *Session {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	s := &Session{
		sessionID:     cfg.SessionID,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		deviceInfo:    cfg.DeviceInfo,
		transport:     transport,
		log:           log.With("tracker_session", cfg.SessionID),
		now:           time.Now,
		modeUsage:     types.NewModeUsage(),
		openViews:     make(map[string]time.Time),
		done:          make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

func (s *Session) SessionID() string { return s.sessionID }

// TrackModeStart begins timing a mode. Starting a new mode ends the previous
// one first, so at most one mode is ever being timed.
func (s *Session) TrackModeStart(mode string) {
	s.mu.Lock()
	if _, known := s.modeUsage[mode]; !known {
		s.mu.Unlock()
		s.log.Warn("ignoring unknown learning mode", "mode", mode)
		return
	}
	s.endCurrentModeLocked()
	now := s.now()
	stat := s.modeUsage[mode]
	stat.Count++
	stat.LastUsed = &now
	s.modeUsage[mode] = stat
	s.currentMode = mode
	s.modeStartedAt = now
	s.pendingEvents++
	shouldFlush := s.pendingEvents >= s.batchSize
	s.mu.Unlock()
	if shouldFlush {
		s.Flush(context.Background())
	}
}

// TrackModeEnd stops timing the given mode. Ending a mode that is not the
// current one is a no-op.
func (s *Session) TrackModeEnd(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentMode != mode {
		return
	}
	s.endCurrentModeLocked()
}

func (s *Session) endCurrentModeLocked() {
	if s.currentMode == "" {
		return
	}
	elapsed := s.now().Sub(s.modeStartedAt).Milliseconds()
	stat := s.modeUsage[s.currentMode]
	stat.TotalTime += elapsed
	s.modeUsage[s.currentMode] = stat
	s.currentMode = ""
}

func (s *Session) TrackActivity(kind ActivityKind) {
	s.mu.Lock()
	switch kind {
	case ActivityQuizCompleted:
		s.activity.QuizzesCompleted++
	case ActivityPracticeQuestion:
		s.activity.PracticeQuestionsAttempted++
	case ActivityDiscussion:
		s.activity.DiscussionParticipation++
	case ActivityReflectionJournal:
		s.activity.ReflectionJournalEntries++
	case ActivityDiagramViewed:
		s.activity.VisualDiagramsViewed++
	case ActivityHandsOnLab:
		s.activity.HandsOnLabsCompleted++
	case ActivityConceptExplored:
		s.activity.ConceptExplorationsCount++
	case ActivitySequentialStep:
		s.activity.SequentialStepsCompleted++
	default:
		s.mu.Unlock()
		s.log.Warn("ignoring unknown activity kind", "kind", string(kind))
		return
	}
	s.pendingEvents++
	shouldFlush := s.pendingEvents >= s.batchSize
	s.mu.Unlock()
	if shouldFlush {
		s.Flush(context.Background())
	}
}

func (s *Session) TrackContentView(contentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openViews[contentID] = s.now()
}

// TrackContentViewEnd records a finished content view. Ending a view that was
// never started is a no-op.
func (s *Session) TrackContentViewEnd(contentID string, completionRate float64) {
	s.mu.Lock()
	startedAt, ok := s.openViews[contentID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.openViews, contentID)
	now := s.now()
	s.pendingContent = append(s.pendingContent, types.ContentInteraction{
		ContentID:      contentID,
		ViewDuration:   now.Sub(startedAt).Milliseconds(),
		CompletionRate: completionRate,
		Timestamp:      now,
	})
	s.pendingEvents++
	shouldFlush := s.pendingEvents >= s.batchSize
	s.mu.Unlock()
	if shouldFlush {
		s.Flush(context.Background())
	}
}

// Flush sends the current snapshot. On transport failure the content
// interaction delta is kept for the next attempt; counter snapshots are
// cumulative so nothing else is lost.
func (s *Session) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.pendingEvents == 0 && len(s.pendingContent) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.snapshotLocked()
	content := s.pendingContent
	s.pendingContent = nil
	s.pendingEvents = 0
	s.mu.Unlock()

	if err := s.transport.SendBatch(ctx, batch); err != nil {
		s.log.Warn("batch send failed, retaining interactions for retry", "error", err)
		s.mu.Lock()
		s.pendingContent = append(content, s.pendingContent...)
		s.pendingEvents++
		s.mu.Unlock()
	}
}

func (s *Session) snapshotLocked() Batch {
	usage := make(types.ModeUsage, len(s.modeUsage))
	for mode, stat := range s.modeUsage {
		usage[mode] = stat
	}
	if s.currentMode != "" {
		stat := usage[s.currentMode]
		stat.TotalTime += s.now().Sub(s.modeStartedAt).Milliseconds()
		usage[s.currentMode] = stat
	}
	content := make(types.ContentInteractions, len(s.pendingContent))
	copy(content, s.pendingContent)
	return Batch{
		SessionID:           s.sessionID,
		ModeUsage:           usage,
		ActivityEngagement:  s.activity,
		ContentInteractions: content,
		DeviceInfo:          s.deviceInfo,
		Timestamp:           s.now().UTC(),
	}
}

// Suspend ends the active mode, flushes, and pauses periodic flushing, used
// when the learner backgrounds the app.
func (s *Session) Suspend() {
	s.mu.Lock()
	s.endCurrentModeLocked()
	s.suspended = true
	s.pendingEvents++
	s.mu.Unlock()
	s.Flush(context.Background())
}

func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = false
}

// Close ends any open mode, flushes what remains, and stops the flush loop.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.endCurrentModeLocked()
		s.pendingEvents++
		s.mu.Unlock()
		s.Flush(ctx)
	})
}

func (s *Session) flushLoop() {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			suspended := s.suspended
			s.mu.Unlock()
			if !suspended {
				s.Flush(context.Background())
			}
		}
	}
}
