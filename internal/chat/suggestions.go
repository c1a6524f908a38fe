package chat

import (
	"context"

	"github.com/suPer8Hu/persona-chat/internal/ai"
	"go.uber.org/zap"
)

type Suggester interface {
	Suggest(ctx context.Context, transcript []ai.Message, studentName string, count int) ([]string, error)
}

// SuggestionCache holds the last computed list per session, tagged with the
// message count it was computed at.
type SuggestionCache interface {
	GetSuggestions(ctx context.Context, globalSessionID string, messageCount int) ([]string, bool, error)
	SetSuggestions(ctx context.Context, globalSessionID string, messageCount int, questions []string) error
}

type Suggestions struct {
	svc       *Service
	suggester Suggester
	cache     SuggestionCache
	count     int
	log       *zap.Logger
}

func NewSuggestions(svc *Service, suggester Suggester, cache SuggestionCache, count int, log *zap.Logger) *Suggestions {
	if count <= 0 {
		count = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Suggestions{svc: svc, suggester: suggester, cache: cache, count: count, log: log}
}

// Refresh computes and caches suggestions for the session's current state.
// The worker calls it for every published job.
func (s *Suggestions) Refresh(ctx context.Context, globalSessionID string) ([]string, error) {
	sess, transcript, err := s.svc.Transcript(ctx, globalSessionID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if qs, ok, err := s.cache.GetSuggestions(ctx, globalSessionID, sess.MessageCount); err == nil && ok {
			return qs, nil
		}
	}

	qs, err := s.suggester.Suggest(ctx, transcript, sess.StudentName, s.count)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(qs) > 0 {
		if err := s.cache.SetSuggestions(ctx, globalSessionID, sess.MessageCount, qs); err != nil {
			s.log.Warn("chat: cache suggestions failed", zap.String("global_session_id", globalSessionID), zap.Error(err))
		}
	}
	return qs, nil
}

// Next serves cached suggestions when they match the session's message count
// and computes them otherwise.
func (s *Suggestions) Next(ctx context.Context, userEmail, loginSessionID, chatSessionID string) ([]string, error) {
	if err := requireFields("login_session_id", loginSessionID, "chat_session_id", chatSessionID); err != nil {
		return nil, err
	}
	sess, err := s.svc.Session(ctx, userEmail, loginSessionID, chatSessionID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		qs, ok, err := s.cache.GetSuggestions(ctx, sess.GlobalSessionID, sess.MessageCount)
		if err != nil {
			s.log.Warn("chat: read suggestion cache failed", zap.Error(err))
		} else if ok {
			return qs, nil
		}
	}
	return s.Refresh(ctx, sess.GlobalSessionID)
}
