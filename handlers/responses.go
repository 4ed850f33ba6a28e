package handlers

import (
	"net/http"

	"survey-voice-api/middleware"
	"survey-voice-api/models"
	"survey-voice-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListResponses(c *gin.Context) {
	filter := services.ResponseFilter{
		SurveyID:   queryUint(c, "survey_id"),
		ContactID:  queryUint(c, "contact_id"),
		QuestionID: queryUint(c, "question_id"),
		Status:     models.ResponseStatus(c.Query("status")),
		Page:       pageFrom(c),
	}
	responses, total, err := h.svc.Responses.List(c.Request.Context(), middleware.CurrentUser(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, responses, total)
}

func (h *Handler) CreateResponse(c *gin.Context) {
	var r models.Response
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Responses.Create(c.Request.Context(), middleware.CurrentUser(c), &r); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) ResponseSummary(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	summary, err := h.svc.Responses.SurveyResponseSummary(c.Request.Context(), middleware.CurrentUser(c), surveyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ContactResponses(c *gin.Context) {
	contactID, ok := idParam(c, "contact_id")
	if !ok {
		return
	}
	responses, err := h.svc.Responses.ContactResponses(c.Request.Context(), middleware.CurrentUser(c), contactID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contact_id": contactID, "responses": responses, "total_responses": len(responses)})
}

func (h *Handler) GetResponse(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.svc.Responses.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateResponse(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.ResponseUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.svc.Responses.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) DeleteResponse(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Responses.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Response deleted successfully"})
}

// ProcessResponse runs the clarification pipeline synchronously
func (h *Handler) ProcessResponse(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.svc.Pipeline.Process(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":            "Response processed",
		"response_id":        r.ID,
		"processing_status":  r.ProcessingStatus,
		"processed_response": r.ProcessedResponse,
		"confidence_score":   r.ConfidenceScore,
		"status":             r.Status,
	})
}

func (h *Handler) AddClarification(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ClarificationText string `json:"clarification_text" binding:"required"`
		AIResponse        string `json:"ai_response"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.svc.Responses.AddClarificationAttempt(c.Request.Context(), middleware.CurrentUser(c), id, req.ClarificationText, req.AIResponse)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) SetTranscription(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		TranscribedText string   `json:"transcribed_text" binding:"required"`
		Confidence      *float64 `json:"confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	r, err := h.svc.Responses.SetTranscription(c.Request.Context(), middleware.CurrentUser(c), id, req.TranscribedText, req.Confidence)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
