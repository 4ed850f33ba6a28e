package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"survey-voice-api/middleware"
	"survey-voice-api/models"
	"survey-voice-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListContacts(c *gin.Context) {
	filter := services.ContactFilter{
		SurveyID: queryUint(c, "survey_id"),
		Status:   models.ContactStatus(c.Query("status")),
		Page:     pageFrom(c),
	}
	contacts, total, err := h.svc.Contacts.List(c.Request.Context(), middleware.CurrentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, contacts, total)
}

func (h *Handler) CreateContact(c *gin.Context) {
	var contact models.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Contacts.Create(c.Request.Context(), middleware.CurrentUser(c), &contact); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// UploadContactsCSV imports the multipart "file" field into a survey
func (h *Handler) UploadContactsCSV(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a CSV"})
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c, err)
		return
	}
	defer f.Close()

	created, err := h.svc.Contacts.ImportCSV(c.Request.Context(), middleware.CurrentUser(c), surveyID, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":        "Successfully uploaded " + strconv.Itoa(len(created)) + " contacts",
		"contacts_count": len(created),
	})
}

func (h *Handler) ContactStats(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	stats, err := h.svc.Contacts.SurveyContactStats(c.Request.Context(), middleware.CurrentUser(c), surveyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) PendingContacts(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	contacts, err := h.svc.Contacts.PendingContacts(c.Request.Context(), middleware.CurrentUser(c), surveyID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, contacts, int64(len(contacts)))
}

func (h *Handler) GetContact(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	contact, err := h.svc.Contacts.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) UpdateContact(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.ContactUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	contact, err := h.svc.Contacts.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) DeleteContact(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Contacts.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted successfully"})
}

func (h *Handler) ScheduleContact(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	contact, err := h.svc.Contacts.Schedule(c.Request.Context(), middleware.CurrentUser(c), id, req.ScheduledAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) RecordCallResult(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		CallResult   string `json:"call_result" binding:"required"`
		CallDuration *int   `json:"call_duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	contact, err := h.svc.Contacts.RecordCallResult(c.Request.Context(), middleware.CurrentUser(c), id, req.CallResult, req.CallDuration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) CompleteContact(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	contact, err := h.svc.Contacts.MarkCompleted(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *Handler) FailContact(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	contact, err := h.svc.Contacts.MarkFailed(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// StartCall dials the contact through the telephony provider
func (h *Handler) StartCall(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	call, err := h.svc.Voice.StartCall(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, call)
}
