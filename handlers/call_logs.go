package handlers

import (
	"net/http"

	"survey-voice-api/middleware"
	"survey-voice-api/models"
	"survey-voice-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListCallLogs(c *gin.Context) {
	filter := services.CallLogFilter{
		SurveyID:  queryUint(c, "survey_id"),
		ContactID: queryUint(c, "contact_id"),
		Status:    models.CallStatus(c.Query("status")),
		Page:      pageFrom(c),
	}
	logs, total, err := h.svc.CallLogs.List(c.Request.Context(), middleware.CurrentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, logs, total)
}

func (h *Handler) CreateCallLog(c *gin.Context) {
	var l models.CallLog
	if err := c.ShouldBindJSON(&l); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.CallLogs.Create(c.Request.Context(), middleware.CurrentUser(c), &l); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *Handler) CallStats(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	stats, err := h.svc.CallLogs.SurveyCallStats(c.Request.Context(), middleware.CurrentUser(c), surveyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ContactCalls(c *gin.Context) {
	contactID, ok := idParam(c, "contact_id")
	if !ok {
		return
	}
	logs, err := h.svc.CallLogs.ContactCallHistory(c.Request.Context(), middleware.CurrentUser(c), contactID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact_id": contactID, "calls": logs, "total_calls": len(logs)})
}

func (h *Handler) GetCallLog(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	l, err := h.svc.CallLogs.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) UpdateCallLog(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.CallLogUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	l, err := h.svc.CallLogs.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteCallLog(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.CallLogs.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Call log deleted successfully"})
}

func (h *Handler) UpdateCallStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.StatusUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	l, err := h.svc.CallLogs.UpdateStatus(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
