package handlers

import (
	"net/http"
	"strconv"

	"survey-voice-api/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) twiml(c *gin.Context, body []byte, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

// VoiceTwiML answers the provider with the next question of the call
func (h *Handler) VoiceTwiML(c *gin.Context) {
	after, _ := strconv.Atoi(c.DefaultQuery("after", "0"))
	body, err := h.svc.Voice.Prompt(c.Request.Context(), c.Query("session"), after)
	h.twiml(c, body, err)
}

// VoiceGather receives the caller's speech for one question
func (h *Handler) VoiceGather(c *gin.Context) {
	in := services.GatherInput{
		SessionID:    c.Query("session"),
		QuestionID:   queryUint(c, "question"),
		SpeechResult: c.PostForm("SpeechResult"),
		Language:     c.PostForm("Language"),
	}
	if raw := c.PostForm("Confidence"); raw != "" {
		if conf, err := strconv.ParseFloat(raw, 64); err == nil {
			in.Confidence = &conf
		}
	}
	body, err := h.svc.Voice.Gather(c.Request.Context(), in)
	h.twiml(c, body, err)
}

// VoiceStatus receives call progress callbacks
func (h *Handler) VoiceStatus(c *gin.Context) {
	in := services.StatusCallback{
		SessionID:    c.Query("session"),
		CallStatus:   c.PostForm("CallStatus"),
		ErrorCode:    c.PostForm("ErrorCode"),
		ErrorMessage: c.PostForm("ErrorMessage"),
	}
	if raw := c.PostForm("CallDuration"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil {
			in.Duration = &d
		}
	}
	call, err := h.svc.Voice.HandleStatus(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_session_id": call.CallSessionID, "status": call.Status})
}
