package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/persona-chat/internal/auth"
	"github.com/suPer8Hu/persona-chat/internal/common"
	"github.com/suPer8Hu/persona-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/persona-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Keys *auth.KeyChecker
	// JWTSecret signs bearer tokens; empty disables them.
	JWTSecret string
	Log       *zap.Logger
}

func NewRouter(h *handlers.Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.Recovery(cfg.Log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", h.Health)

	api := r.Group("/")
	api.Use(middleware.AuthRequired(cfg.Keys, cfg.JWTSecret))

	// chat sessions
	api.POST("/start-chat", h.StartChat)
	api.POST("/chat", h.Chat)
	api.POST("/resume-chat", h.ResumeChat)
	api.POST("/end-chat", h.EndChat)
	api.POST("/end-all-chats", h.EndAllChats)
	api.POST("/get-chat-history", h.ChatHistory)
	api.POST("/get-active-sessions", h.ActiveSessions)
	api.POST("/get-next-questions", h.NextQuestions)

	// students and grounding
	api.POST("/get-student-profiles", h.StudentProfiles)
	api.POST("/refresh-grounding", h.RefreshGrounding)
	api.POST("/translate", h.Translate)
	return r
}
