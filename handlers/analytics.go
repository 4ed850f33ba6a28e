package handlers

import (
	"net/http"
	"strconv"

	"survey-voice-api/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Dashboard(c *gin.Context) {
	dash, err := h.svc.Analytics.Dashboard(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) SurveyAnalytics(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	out, err := h.svc.Analytics.SurveyAnalytics(c.Request.Context(), middleware.CurrentUser(c), surveyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Trends(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
		return
	}
	out, err := h.svc.Analytics.Trends(c.Request.Context(), middleware.CurrentUser(c), days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) LanguageDistribution(c *gin.Context) {
	out, err := h.svc.Analytics.LanguageDistribution(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AIInsights covers every survey of the caller unless ?survey_id= is given
func (h *Handler) AIInsights(c *gin.Context) {
	out, err := h.svc.Analytics.AIInsights(c.Request.Context(), middleware.CurrentUser(c), queryUint(c, "survey_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
