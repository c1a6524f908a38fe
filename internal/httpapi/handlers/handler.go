package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/persona-chat/internal/chat"
	"github.com/suPer8Hu/persona-chat/internal/common"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
	"github.com/suPer8Hu/persona-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/persona-chat/internal/students"
	"go.uber.org/zap"
)

// GroundingCache is the part of the grounding loader the API can bust.
type GroundingCache interface {
	Evict(student string) error
	Load(ctx context.Context, student string) (*grounding.Index, error)
}

type Handler struct {
	ChatSvc      *chat.Service
	Suggestions  *chat.Suggestions
	Students     *students.Repo
	Grounding    GroundingCache
	Translator   chat.Translator
	ProfileCount int
	Log          *zap.Logger
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, "ok", true, nil)
}

// fail maps a domain error onto the API status codes. Internal detail goes to
// the log only.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput),
		errors.Is(err, students.ErrInvalidProfile):
		common.Fail(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, chat.ErrDuplicateSession):
		common.Fail(c, http.StatusUnprocessableEntity, "an active chat session already exists for this student")
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, "chat session not found")
	case errors.Is(err, chat.ErrSessionEnded):
		common.Fail(c, http.StatusNotFound, "chat session has ended")
	case errors.Is(err, students.ErrStudentNotFound):
		common.Fail(c, http.StatusNotFound, "student not found")
	case errors.Is(err, grounding.ErrGroundingUnavailable):
		common.Fail(c, http.StatusNotFound, "student knowledge is not available")
	default:
		h.Log.Error("http: "+op+" failed",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		common.Fail(c, http.StatusInternalServerError, common.GenericFailure)
	}
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		common.Fail(c, http.StatusUnprocessableEntity, "invalid json")
		return false
	}
	return true
}
