package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/persona-chat/internal/chat"
	"github.com/suPer8Hu/persona-chat/internal/common"
)

type startChatReq struct {
	UserEmail      string `json:"user_email"`
	UserFirstName  string `json:"user_first_name"`
	UserLastName   string `json:"user_last_name"`
	LoginSessionID string `json:"login_session_id"`
	ChatSessionID  string `json:"chat_session_id"`
	StudentName    string `json:"student_name"`
}

type sessionRef struct {
	UserEmail      string `json:"user_email"`
	LoginSessionID string `json:"login_session_id"`
	ChatSessionID  string `json:"chat_session_id"`
	StudentName    string `json:"student_name"`
}

type loginRef struct {
	UserEmail      string `json:"user_email"`
	LoginSessionID string `json:"login_session_id"`
}

type chatReq struct {
	UserEmail         string `json:"user_email"`
	UserFullName      string `json:"user_full_name"`
	LoginSessionID    string `json:"login_session_id"`
	ChatSessionID     string `json:"chat_session_id"`
	StudentName       string `json:"student_name"`
	Question          string `json:"question"`
	LocalizedQuestion string `json:"localized_question"`
	InputSource       string `json:"input_source"`
	// older clients send instructor_name instead of user_full_name
	InstructorName string `json:"instructor_name"`
}

func (r chatReq) instructor() string {
	if r.UserFullName != "" {
		return r.UserFullName
	}
	return r.InstructorName
}

type historyItem struct {
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	LocalizedContent string    `json:"localized_content,omitempty"`
	InputSource      string    `json:"input_source"`
	CreatedAt        time.Time `json:"created_at"`
}

func toHistory(msgs []chat.Message) []historyItem {
	out := make([]historyItem, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyItem{
			Role:             m.Role,
			Content:          m.Text,
			LocalizedContent: m.LocalizedText,
			InputSource:      m.InputSource,
			CreatedAt:        m.CreatedAt,
		})
	}
	return out
}

func (h *Handler) StartChat(c *gin.Context) {
	var req startChatReq
	if !h.bind(c, &req) {
		return
	}
	sess, opener, err := h.ChatSvc.Start(c.Request.Context(), chat.StartInput{
		UserEmail:      req.UserEmail,
		UserFirstName:  req.UserFirstName,
		UserLastName:   req.UserLastName,
		LoginSessionID: req.LoginSessionID,
		ChatSessionID:  req.ChatSessionID,
		StudentName:    req.StudentName,
	})
	if err != nil {
		h.fail(c, "start chat", err)
		return
	}
	common.OK(c, "chat session started", true, gin.H{
		"global_session_id":       sess.GlobalSessionID,
		"message_count":           sess.MessageCount,
		"first_assistant_message": opener.Text,
	})
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if !h.bind(c, &req) {
		return
	}
	res, err := h.ChatSvc.HandleTurn(c.Request.Context(), chat.TurnInput{
		UserEmail:         req.UserEmail,
		LoginSessionID:    req.LoginSessionID,
		ChatSessionID:     req.ChatSessionID,
		StudentName:       req.StudentName,
		Question:          req.Question,
		LocalizedQuestion: req.LocalizedQuestion,
		InputSource:       req.InputSource,
		InstructorName:    req.instructor(),
	})
	if err != nil {
		h.fail(c, "chat turn", err)
		return
	}
	common.OK(c, "response generated", true, gin.H{
		"answer":           res.Assistant.Text,
		"localized_answer": res.Assistant.LocalizedText,
		"reply_kind":       res.Reply.Kind,
		"message_count":    res.Session.MessageCount,
	})
}

func (h *Handler) ResumeChat(c *gin.Context) {
	var req sessionRef
	if !h.bind(c, &req) {
		return
	}
	sess, err := h.ChatSvc.Resume(c.Request.Context(), chat.ResumeInput{
		UserEmail:      req.UserEmail,
		LoginSessionID: req.LoginSessionID,
		ChatSessionID:  req.ChatSessionID,
		StudentName:    req.StudentName,
	})
	if err != nil {
		h.fail(c, "resume chat", err)
		return
	}
	common.OK(c, "chat session resumed", true, sess)
}

func (h *Handler) EndChat(c *gin.Context) {
	var req sessionRef
	if !h.bind(c, &req) {
		return
	}
	if err := h.ChatSvc.End(c.Request.Context(), req.UserEmail, req.LoginSessionID, req.ChatSessionID); err != nil {
		h.fail(c, "end chat", err)
		return
	}
	common.OK(c, "chat session ended", true, nil)
}

func (h *Handler) EndAllChats(c *gin.Context) {
	var req loginRef
	if !h.bind(c, &req) {
		return
	}
	n, err := h.ChatSvc.EndAll(c.Request.Context(), req.UserEmail, req.LoginSessionID)
	if err != nil {
		h.fail(c, "end all chats", err)
		return
	}
	common.OK(c, "chat sessions ended", n > 0, gin.H{"count": n})
}

func (h *Handler) ChatHistory(c *gin.Context) {
	var req sessionRef
	if !h.bind(c, &req) {
		return
	}
	msgs, err := h.ChatSvc.History(c.Request.Context(), req.UserEmail, req.LoginSessionID, req.ChatSessionID)
	if err != nil {
		h.fail(c, "chat history", err)
		return
	}
	common.OK(c, "chat history retrieved", len(msgs) > 0, toHistory(msgs))
}

func (h *Handler) ActiveSessions(c *gin.Context) {
	var req loginRef
	if !h.bind(c, &req) {
		return
	}
	sessions, err := h.ChatSvc.ActiveSessions(c.Request.Context(), req.UserEmail, req.LoginSessionID)
	if err != nil {
		h.fail(c, "active sessions", err)
		return
	}
	common.OK(c, "active sessions retrieved", len(sessions) > 0, sessions)
}

func (h *Handler) NextQuestions(c *gin.Context) {
	var req sessionRef
	if !h.bind(c, &req) {
		return
	}
	qs, err := h.Suggestions.Next(c.Request.Context(), req.UserEmail, req.LoginSessionID, req.ChatSessionID)
	if err != nil {
		h.fail(c, "next questions", err)
		return
	}
	if qs == nil {
		qs = []string{}
	}
	common.OK(c, "next questions generated", len(qs) > 0, qs)
}
