package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyloop/adaptive-backend/internal/logger"
	"github.com/studyloop/adaptive-backend/internal/services"
)

type ClassificationHandler struct {
	log           *logger.Logger
	classifySvc   services.ClassificationService
	questionnaire services.QuestionnaireService
}

func NewClassificationHandler(
	log *logger.Logger,
	classifySvc services.ClassificationService,
	questionnaire services.QuestionnaireService,
) *ClassificationHandler {
	return &ClassificationHandler{
		log:           log.With("handler", "ClassificationHandler"),
		classifySvc:   classifySvc,
		questionnaire: questionnaire,
	}
}

// POST /api/learning-style/classify
func (h *ClassificationHandler) Classify(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}
	profile, err := h.classifySvc.Classify(c.Request.Context(), userID)
	if err != nil {
		var insufficient *services.InsufficientDataError
		if errors.As(err, &insufficient) {
			pct := 0
			if insufficient.Required > 0 {
				pct = insufficient.TotalInteractions * 100 / insufficient.Required
			}
			c.JSON(http.StatusOK, gin.H{
				"success":       true,
				"needsMoreData": true,
				"progress": gin.H{
					"current":    insufficient.TotalInteractions,
					"required":   insufficient.Required,
					"percentage": pct,
				},
			})
			return
		}
		h.log.Error("classification failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "classification_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true, "profile": profile})
}

// GET /api/learning-style/status
func (h *ClassificationHandler) Status(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}
	status, err := h.classifySvc.Status(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("classification status failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "status_failed", err)
		return
	}
	RespondOK(c, status)
}

// GET /api/learning-style/profile
func (h *ClassificationHandler) GetProfile(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}
	profile, err := h.classifySvc.Profile(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("profile lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "profile_failed", err)
		return
	}
	if profile == nil {
		RespondError(c, http.StatusNotFound, "profile_not_found", errors.New("no learning style profile yet"))
		return
	}
	RespondOK(c, gin.H{
		"profile":           profile,
		"dominantStyle":     profile.DominantStyle(),
		"overallConfidence": profile.Confidence.Average(),
	})
}

// GET /api/learning-style/questionnaire
func (h *ClassificationHandler) GetQuestionnaire(c *gin.Context) {
	RespondOK(c, gin.H{"questions": h.questionnaire.Questions()})
}

// POST /api/learning-style/questionnaire
func (h *ClassificationHandler) SubmitQuestionnaire(c *gin.Context) {
	userID, ok := authenticatedUser(c)
	if !ok {
		return
	}
	var body struct {
		Answers map[int]string `json:"answers" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_payload", err)
		return
	}
	profile, err := h.classifySvc.SubmitQuestionnaire(c.Request.Context(), userID, body.Answers)
	if err != nil {
		h.log.Error("questionnaire submission failed", "error", err)
		RespondError(c, http.StatusBadRequest, "questionnaire_failed", err)
		return
	}
	RespondOK(c, gin.H{"success": true, "profile": profile})
}
