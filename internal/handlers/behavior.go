package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/requestdata"
	"github.com/studyloop/adaptive-backend/internal/services"
)

type BehaviorHandler struct {
	log            *logger.Logger
	trackingSvc    services.TrackingService
	classification services.ClassificationService
}

func NewBehaviorHandler(
	log *logger.Logger,
	trackingSvc services.TrackingService,
	classification services.ClassificationService,
) *BehaviorHandler {
	return &BehaviorHandler{
		log:            log.With("handler", "BehaviorHandler"),
		trackingSvc:    trackingSvc,
		classification: classification,
	}
}

// POST /api/behavior/track
func (h *BehaviorHandler) Track(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}
	var payload services.TrackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	record, err := h.trackingSvc.Track(c.Request.Context(), userID, payload)
	if err != nil {
		h.log.Error("behavior track failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "track_failed", err)
		return
	}
	RespondOK(c, gin.H{
		"success":           true,
		"sessionId":         record.SessionID,
		"totalInteractions": record.TotalInteractions(),
	})
}

// GET /api/behavior/summary
func (h *BehaviorHandler) Summary(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}
	summary, err := h.trackingSvc.Summary(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("behavior summary failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "summary_failed", err)
		return
	}
	RespondOK(c, summary)
}

// POST /api/behavior/reset
func (h *BehaviorHandler) Reset(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}
	if err := h.classification.Reset(c.Request.Context(), userID); err != nil {
		h.log.Error("behavior reset failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "reset_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true})
}

func authenticatedUser(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing authenticated user"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}
