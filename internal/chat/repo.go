package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateSessionWithSeed writes the session row and its opener messages in one
// transaction.
func (r *Repo) CreateSessionWithSeed(ctx context.Context, s *Session, seed []Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateSession
			}
			return err
		}
		if len(seed) == 0 {
			return nil
		}
		return tx.Create(&seed).Error
	})
}

func (r *Repo) GetSession(ctx context.Context, globalSessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("global_session_id = ?", globalSessionID).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindActive returns the active session for the (user, login, student) tuple,
// or nil when there is none.
func (r *Repo) FindActive(ctx context.Context, userEmail, loginSessionID, studentName string) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("user_email = ? AND login_session_id = ? AND student_name = ? AND status = ?",
			userEmail, loginSessionID, studentName, StatusActive).
		Order("id ASC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListMessages returns the whole session in message_timestamp ASC order.
func (r *Repo) ListMessages(ctx context.Context, globalSessionID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("global_session_id = ?", globalSessionID).
		Order("message_timestamp ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// AppendTurn stores both halves of a turn and bumps message_count by two,
// provided the count still equals expectedCount.
func (r *Repo) AppendTurn(ctx context.Context, globalSessionID string, expectedCount int, user, assistant *Message, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Session{}).
			Where("global_session_id = ? AND message_count = ?", globalSessionID, expectedCount).
			Updates(map[string]any{
				"message_count":   gorm.Expr("message_count + ?", 2),
				"last_updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentTurn
		}

		if err := tx.Create([]*Message{user, assistant}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConcurrentTurn
			}
			return err
		}
		return nil
	})
}

// EndSession marks an active session owned by userEmail as ended. It reports
// whether a row changed.
func (r *Repo) EndSession(ctx context.Context, globalSessionID, userEmail string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("global_session_id = ? AND user_email = ? AND status = ?", globalSessionID, userEmail, StatusActive).
		Updates(map[string]any{
			"status":          StatusEnded,
			"last_updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// EndAllActive ends every active session of one login.
func (r *Repo) EndAllActive(ctx context.Context, userEmail, loginSessionID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("user_email = ? AND login_session_id = ? AND status = ?", userEmail, loginSessionID, StatusActive).
		Updates(map[string]any{
			"status":          StatusEnded,
			"last_updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *Repo) Reactivate(ctx context.Context, globalSessionID string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("global_session_id = ?", globalSessionID).
		Updates(map[string]any{
			"status":          StatusActive,
			"last_updated_at": now,
		}).Error
}

func (r *Repo) ListActiveSessions(ctx context.Context, userEmail, loginSessionID string) ([]Session, error) {
	var out []Session
	if err := r.db.WithContext(ctx).
		Where("user_email = ? AND login_session_id = ? AND status = ?", userEmail, loginSessionID, StatusActive).
		Order("started_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListLoginSessions returns every session of one login, ended ones included.
func (r *Repo) ListLoginSessions(ctx context.Context, userEmail, loginSessionID string) ([]Session, error) {
	var out []Session
	if err := r.db.WithContext(ctx).
		Where("user_email = ? AND login_session_id = ?", userEmail, loginSessionID).
		Order("started_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
