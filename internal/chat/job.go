package chat

import (
	"time"

	"github.com/suPer8Hu/persona-chat/internal/common"
)

// SuggestionJob asks the worker to refresh next-question suggestions for a
// session at a given message count.
type SuggestionJob struct {
	ID              string    `json:"job_id"`
	GlobalSessionID string    `json:"global_session_id"`
	StudentName     string    `json:"student_name"`
	MessageCount    int       `json:"message_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewSuggestionJob(s *Session) (SuggestionJob, error) {
	id, err := common.NewULID()
	if err != nil {
		return SuggestionJob{}, err
	}
	return SuggestionJob{
		ID:              id,
		GlobalSessionID: s.GlobalSessionID,
		StudentName:     s.StudentName,
		MessageCount:    s.MessageCount,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// ExportJob asks the worker to write the transcript file for every session
// of one login.
type ExportJob struct {
	ID             string    `json:"job_id"`
	UserEmail      string    `json:"user_email"`
	LoginSessionID string    `json:"login_session_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewExportJob(userEmail, loginSessionID string) (ExportJob, error) {
	id, err := common.NewULID()
	if err != nil {
		return ExportJob{}, err
	}
	return ExportJob{
		ID:             id,
		UserEmail:      userEmail,
		LoginSessionID: loginSessionID,
		CreatedAt:      time.Now().UTC(),
	}, nil
}
