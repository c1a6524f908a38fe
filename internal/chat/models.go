package chat

import "time"

type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusEnded  SessionStatus = "ended"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Session struct {
	ID              uint64        `gorm:"primaryKey;autoIncrement" json:"-"`
	GlobalSessionID string        `gorm:"type:varchar(255);uniqueIndex;not null" json:"global_session_id"`
	LoginSessionID  string        `gorm:"type:varchar(128);not null;index:idx_chat_sess_user_login,priority:2" json:"login_session_id"`
	ChatSessionID   string        `gorm:"type:varchar(128);not null" json:"chat_session_id"`
	UserEmail       string        `gorm:"type:varchar(255);not null;index:idx_chat_sess_user_login,priority:1" json:"user_email"`
	UserFullName    string        `gorm:"type:varchar(255)" json:"user_full_name"`
	StudentName     string        `gorm:"type:varchar(128);not null;index" json:"student_name"`
	Status          SessionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	MessageCount    int           `gorm:"not null;default:0" json:"message_count"`
	StartedAt       time.Time     `json:"started_at"`
	LastUpdatedAt   time.Time     `json:"last_updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	GlobalSessionID  string    `gorm:"type:varchar(255);not null;index:uniq_chat_msg_stamp,unique,priority:1" json:"global_session_id"`
	MessageTimestamp string    `gorm:"type:varchar(64);not null;index:uniq_chat_msg_stamp,unique,priority:2" json:"message_timestamp"`
	Role             string    `gorm:"type:varchar(16);not null" json:"role"`
	Text             string    `gorm:"type:text;not null" json:"text"`
	LocalizedText    string    `gorm:"type:text" json:"localized_text,omitempty"`
	InputSource      string    `gorm:"type:varchar(32);not null" json:"input_source"`
	CreatedAt        time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// GlobalSessionID joins the login and chat ids.
func GlobalSessionID(loginSessionID, chatSessionID string) string {
	return loginSessionID + "#" + chatSessionID
}
