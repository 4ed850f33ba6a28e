package handlers

import (
	"net/http"

	"survey-voice-api/middleware"
	"survey-voice-api/models"
	"survey-voice-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListQuestions(c *gin.Context) {
	surveyID := queryUint(c, "survey_id")
	if surveyID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "survey_id is required"})
		return
	}
	questions, total, err := h.svc.Questions.List(c.Request.Context(), middleware.CurrentUser(c), surveyID, pageFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, questions, total)
}

func (h *Handler) CreateQuestion(c *gin.Context) {
	var q models.Question
	if err := c.ShouldBindJSON(&q); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.svc.Questions.Create(c.Request.Context(), middleware.CurrentUser(c), &q); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *Handler) BulkCreateQuestions(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	var questions []models.Question
	if err := c.ShouldBindJSON(&questions); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.svc.Questions.BulkCreate(c.Request.Context(), middleware.CurrentUser(c), surveyID, questions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":   "Questions created successfully",
		"count":     len(created),
		"questions": created,
	})
}

// OrderedQuestions lists a survey's questions in asking order, rendered in
// the ?language= language when one is given
func (h *Handler) OrderedQuestions(c *gin.Context) {
	surveyID, ok := idParam(c, "survey_id")
	if !ok {
		return
	}
	actor := middleware.CurrentUser(c)
	if lang := c.Query("language"); lang != "" {
		localized, err := h.svc.Questions.OrderedIn(c.Request.Context(), actor, surveyID, lang)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"survey_id": surveyID, "language": lang, "questions": localized})
		return
	}
	questions, err := h.svc.Questions.Ordered(c.Request.Context(), actor, surveyID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"survey_id": surveyID, "questions": questions})
}

func (h *Handler) GetQuestion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	q, err := h.svc.Questions.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) UpdateQuestion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in services.QuestionUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	q, err := h.svc.Questions.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *Handler) DeleteQuestion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Questions.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

func (h *Handler) ValidateQuestionResponse(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ResponseText string `json:"response_text" form:"response_text"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ResponseText == "" {
		req.ResponseText = c.Query("response_text")
	}
	result, err := h.svc.Questions.ValidateAnswer(c.Request.Context(), middleware.CurrentUser(c), id, req.ResponseText)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question_id": id, "valid": result.Valid, "reason": result.Reason})
}
