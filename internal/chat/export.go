package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/suPer8Hu/persona-chat/internal/persona"
	"go.uber.org/zap"
)

// TranscriptStore is where finished transcripts land.
type TranscriptStore interface {
	Put(ctx context.Context, key string, data []byte) error
}

type Transcript struct {
	UserEmail      string              `json:"user_email"`
	UserFullName   string              `json:"user_full_name"`
	LoginSessionID string              `json:"login_session_id"`
	ExportedAt     time.Time           `json:"exported_at"`
	Sessions       []TranscriptSession `json:"sessions"`
}

type TranscriptSession struct {
	GlobalSessionID string              `json:"global_session_id"`
	ChatSessionID   string              `json:"chat_session_id"`
	StudentName     string              `json:"student_name"`
	Status          SessionStatus       `json:"status"`
	MessageCount    int                 `json:"message_count"`
	StartedAt       time.Time           `json:"started_at"`
	LastUpdatedAt   time.Time           `json:"last_updated_at"`
	Messages        []TranscriptMessage `json:"messages"`
}

type TranscriptMessage struct {
	CreatedAt        time.Time `json:"created_at"`
	Role             string    `json:"role"`
	Content          string    `json:"content"`
	LocalizedContent string    `json:"localized_content,omitempty"`
	InputSource      string    `json:"input_source"`
}

type Exporter struct {
	repo   *Repo
	store  TranscriptStore
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

func NewExporter(repo *Repo, store TranscriptStore, prefix string, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		repo:   repo,
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TranscriptKey places one login's transcript under
// prefix/email/yyyy/Month/dd/login.json, dated by the export time.
func TranscriptKey(prefix, userEmail, loginSessionID string, at time.Time) string {
	at = at.UTC()
	return path.Join(
		strings.Trim(prefix, "/"),
		userEmail,
		fmt.Sprintf("%04d", at.Year()),
		at.Month().String(),
		fmt.Sprintf("%02d", at.Day()),
		loginSessionID+".json",
	)
}

// Export writes every session of a login, ended or not, to one transcript
// object and returns its key. A login with no sessions writes nothing and
// returns an empty key. The opener pair is left out of each session.
func (e *Exporter) Export(ctx context.Context, userEmail, loginSessionID string) (string, error) {
	if err := requireFields("user_email", userEmail, "login_session_id", loginSessionID); err != nil {
		return "", err
	}
	sessions, err := e.repo.ListLoginSessions(ctx, userEmail, loginSessionID)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		e.log.Info("export: no sessions",
			zap.String("user_email", userEmail),
			zap.String("login_session_id", loginSessionID),
		)
		return "", nil
	}

	now := e.now()
	doc := Transcript{
		UserEmail:      userEmail,
		LoginSessionID: loginSessionID,
		ExportedAt:     now,
		Sessions:       make([]TranscriptSession, 0, len(sessions)),
	}
	for _, sess := range sessions {
		if doc.UserFullName == "" {
			doc.UserFullName = sess.UserFullName
		}
		msgs, err := e.repo.ListMessages(ctx, sess.GlobalSessionID)
		if err != nil {
			return "", err
		}
		ts := TranscriptSession{
			GlobalSessionID: sess.GlobalSessionID,
			ChatSessionID:   sess.ChatSessionID,
			StudentName:     persona.DisplayName(sess.StudentName),
			Status:          sess.Status,
			MessageCount:    sess.MessageCount,
			StartedAt:       sess.StartedAt,
			LastUpdatedAt:   sess.LastUpdatedAt,
			Messages:        make([]TranscriptMessage, 0, len(msgs)),
		}
		for _, m := range msgs {
			if isOpener(m) {
				continue
			}
			ts.Messages = append(ts.Messages, TranscriptMessage{
				CreatedAt:        m.CreatedAt,
				Role:             m.Role,
				Content:          m.Text,
				LocalizedContent: m.LocalizedText,
				InputSource:      m.InputSource,
			})
		}
		doc.Sessions = append(doc.Sessions, ts)
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	key := TranscriptKey(e.prefix, userEmail, loginSessionID, now)
	if err := e.store.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("put transcript %s: %w", key, err)
	}
	e.log.Info("export: transcript written",
		zap.String("key", key),
		zap.Int("sessions", len(doc.Sessions)),
	)
	return key, nil
}
