package handlers

import (
	"context"
	"net/http"

	"survey-voice-api/middleware"
	"survey-voice-api/models"
	"survey-voice-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListSurveys(c *gin.Context) {
	filter := services.SurveyFilter{
		Status: models.SurveyStatus(c.Query("status")),
		Page:   pageFrom(c),
	}
	surveys, total, err := h.svc.Surveys.List(c.Request.Context(), middleware.CurrentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, surveys, total)
}

func (h *Handler) CreateSurvey(c *gin.Context) {
	var survey models.Survey
	if err := c.ShouldBindJSON(&survey); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Surveys.Create(c.Request.Context(), middleware.CurrentUser(c), &survey); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, survey)
}

func (h *Handler) GetSurvey(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	survey, err := h.svc.Surveys.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, survey)
}

func (h *Handler) UpdateSurvey(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.SurveyUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	survey, err := h.svc.Surveys.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, survey)
}

func (h *Handler) DeleteSurvey(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Surveys.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Survey deleted successfully"})
}

func (h *Handler) ActivateSurvey(c *gin.Context) {
	h.surveyTransition(c, h.svc.Surveys.Activate, "activated")
}

func (h *Handler) PauseSurvey(c *gin.Context) {
	h.surveyTransition(c, h.svc.Surveys.Pause, "paused")
}

func (h *Handler) CompleteSurvey(c *gin.Context) {
	h.surveyTransition(c, h.svc.Surveys.Complete, "completed")
}

type surveyTransitionFunc func(ctx context.Context, actor *models.User, id uint) (*models.Survey, error)

func (h *Handler) surveyTransition(c *gin.Context, fn surveyTransitionFunc, verb string) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	survey, err := fn(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Survey " + verb + " successfully", "survey": survey})
}

func (h *Handler) SurveyStatistics(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.svc.Surveys.Statistics(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
