package handlers

import (
	"survey-voice-api/middleware"
	"survey-voice-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services bundles the domain services the HTTP surface delegates to
type Services struct {
	Auth      *services.AuthService
	Users     *services.UserService
	Surveys   *services.SurveyService
	Questions *services.QuestionService
	Contacts  *services.ContactService
	CallLogs  *services.CallLogService
	Responses *services.ResponseService
	Pipeline  *services.ResponsePipeline
	Analytics *services.AnalyticsService
	Voice     *services.VoiceService
}

// NewServices wires every service over one database handle
func NewServices(db *gorm.DB, auth *services.AuthService, pipeline *services.ResponsePipeline,
	analytics *services.AnalyticsService, voice *services.VoiceService) *Services {
	return &Services{
		Auth:      auth,
		Users:     services.NewUserService(db),
		Surveys:   services.NewSurveyService(db),
		Questions: services.NewQuestionService(db),
		Contacts:  services.NewContactService(db),
		CallLogs:  services.NewCallLogService(db),
		Responses: services.NewResponseService(db),
		Pipeline:  pipeline,
		Analytics: analytics,
		Voice:     voice,
	}
}

type Handler struct {
	svc  *Services
	db   *gorm.DB
	name string
}

func New(db *gorm.DB, svc *Services, serverName string) *Handler {
	return &Handler{svc: svc, db: db, name: serverName}
}

// SetupRoutes mounts every route on r. Voice callbacks are guarded by the
// webhook token instead of a bearer token.
func (h *Handler) SetupRoutes(r *gin.Engine, webhookToken string) {
	r.GET("/", h.HomePage)
	r.GET("/health", h.HealthCheck)

	auth := middleware.NewAuthMiddleware(h.svc.Auth)
	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.GET("/me", auth.JWTAuth(), h.Me)
	}

	voice := api.Group("/voice", middleware.WebhookToken(webhookToken))
	{
		voice.POST("/twiml", h.VoiceTwiML)
		voice.GET("/twiml", h.VoiceTwiML)
		voice.POST("/gather", h.VoiceGather)
		voice.POST("/status", h.VoiceStatus)
	}

	secured := api.Group("", auth.JWTAuth())

	users := secured.Group("/users")
	{
		users.GET("", middleware.RequireAdmin(), h.ListUsers)
		users.POST("", middleware.RequireAdmin(), h.CreateUser)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", middleware.RequireAdmin(), h.DeleteUser)
		users.POST("/:id/activate", middleware.RequireAdmin(), h.ActivateUser)
		users.POST("/:id/deactivate", middleware.RequireAdmin(), h.DeactivateUser)
	}

	surveys := secured.Group("/surveys")
	{
		surveys.GET("", h.ListSurveys)
		surveys.POST("", h.CreateSurvey)
		surveys.GET("/:id", h.GetSurvey)
		surveys.PUT("/:id", h.UpdateSurvey)
		surveys.DELETE("/:id", h.DeleteSurvey)
		surveys.POST("/:id/activate", h.ActivateSurvey)
		surveys.POST("/:id/pause", h.PauseSurvey)
		surveys.POST("/:id/complete", h.CompleteSurvey)
		surveys.GET("/:id/statistics", h.SurveyStatistics)
	}

	questions := secured.Group("/questions")
	{
		questions.GET("", h.ListQuestions)
		questions.POST("", h.CreateQuestion)
		questions.POST("/bulk/:survey_id", h.BulkCreateQuestions)
		questions.GET("/survey/:survey_id/ordered", h.OrderedQuestions)
		questions.GET("/:id", h.GetQuestion)
		questions.PUT("/:id", h.UpdateQuestion)
		questions.DELETE("/:id", h.DeleteQuestion)
		questions.POST("/:id/validate-response", h.ValidateQuestionResponse)
	}

	contacts := secured.Group("/contacts")
	{
		contacts.GET("", h.ListContacts)
		contacts.POST("", h.CreateContact)
		contacts.POST("/upload-csv/:survey_id", h.UploadContactsCSV)
		contacts.GET("/survey/:survey_id/stats", h.ContactStats)
		contacts.GET("/survey/:survey_id/pending", h.PendingContacts)
		contacts.GET("/:id", h.GetContact)
		contacts.PUT("/:id", h.UpdateContact)
		contacts.DELETE("/:id", h.DeleteContact)
		contacts.POST("/:id/schedule", h.ScheduleContact)
		contacts.POST("/:id/call-result", h.RecordCallResult)
		contacts.POST("/:id/complete", h.CompleteContact)
		contacts.POST("/:id/fail", h.FailContact)
		contacts.POST("/:id/call", h.StartCall)
	}

	calls := secured.Group("/call-logs")
	{
		calls.GET("", h.ListCallLogs)
		calls.POST("", h.CreateCallLog)
		calls.GET("/survey/:survey_id/stats", h.CallStats)
		calls.GET("/contact/:contact_id/calls", h.ContactCalls)
		calls.GET("/:id", h.GetCallLog)
		calls.PUT("/:id", h.UpdateCallLog)
		calls.DELETE("/:id", h.DeleteCallLog)
		calls.POST("/:id/update-status", h.UpdateCallStatus)
	}

	responses := secured.Group("/responses")
	{
		responses.GET("", h.ListResponses)
		responses.POST("", h.CreateResponse)
		responses.GET("/survey/:survey_id/summary", h.ResponseSummary)
		responses.GET("/contact/:contact_id/responses", h.ContactResponses)
		responses.GET("/:id", h.GetResponse)
		responses.PUT("/:id", h.UpdateResponse)
		responses.DELETE("/:id", h.DeleteResponse)
		responses.POST("/:id/process", h.ProcessResponse)
		responses.POST("/:id/clarification", h.AddClarification)
		responses.POST("/:id/transcription", h.SetTranscription)
	}

	analytics := secured.Group("/analytics")
	{
		analytics.GET("/dashboard", h.Dashboard)
		analytics.GET("/survey/:survey_id", h.SurveyAnalytics)
		analytics.GET("/trends", h.Trends)
		analytics.GET("/language-distribution", h.LanguageDistribution)
		analytics.GET("/ai-insights", h.AIInsights)
	}
}
