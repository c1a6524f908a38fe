package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/persona-chat/internal/ai"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
	"github.com/suPer8Hu/persona-chat/internal/persona"
	"go.uber.org/zap"
)

type GroundingLoader interface {
	Load(ctx context.Context, student string) (*grounding.Index, error)
}

type Reformulator interface {
	Reformulate(ctx context.Context, question string, history []ai.Message) (string, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, student, query string) ([]grounding.Passage, error)
}

type Generator interface {
	Generate(ctx context.Context, in persona.GenerateInput) (persona.Reply, error)
}

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

type JobPublisher interface {
	PublishSuggestionJob(ctx context.Context, job SuggestionJob) error
}

type ExportPublisher interface {
	PublishExportJob(ctx context.Context, job ExportJob) error
}

type Deps struct {
	Repo         *Repo
	Grounding    GroundingLoader
	Reformulator Reformulator
	Retriever    Retriever
	Generator    Generator
	Locker       Locker

	// optional
	Translator Translator
	Publisher  JobPublisher
	Exports    ExportPublisher
	Log        *zap.Logger
	Now        func() time.Time
}

type Options struct {
	OrganizationName  string
	ContextWindowSize int
	PrimaryLanguage   string
	SecondaryLanguage string
	// TranslateMessages fills localized_text for both halves of a turn.
	TranslateMessages bool
}

type Service struct {
	repo         *Repo
	grounding    GroundingLoader
	reformulator Reformulator
	retriever    Retriever
	generator    Generator
	locker       Locker
	translator   Translator
	publisher    JobPublisher
	exports      ExportPublisher
	log          *zap.Logger
	now          func() time.Time
	opts         Options
}

func NewService(d Deps, opts Options) *Service {
	if opts.ContextWindowSize <= 0 || opts.ContextWindowSize > 100 {
		opts.ContextWindowSize = 20
	}
	if d.Locker == nil {
		d.Locker = NewKeyedMutex()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:         d.Repo,
		grounding:    d.Grounding,
		reformulator: d.Reformulator,
		retriever:    d.Retriever,
		generator:    d.Generator,
		locker:       d.Locker,
		translator:   d.Translator,
		publisher:    d.Publisher,
		exports:      d.Exports,
		log:          d.Log,
		now:          d.Now,
		opts:         opts,
	}
}

type StartInput struct {
	UserEmail      string
	UserFirstName  string
	UserLastName   string
	LoginSessionID string
	ChatSessionID  string
	StudentName    string
}

func (in StartInput) instructorName() string {
	return strings.TrimSpace(strings.TrimSpace(in.UserFirstName) + " " + strings.TrimSpace(in.UserLastName))
}

func requireFields(kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if strings.TrimSpace(kv[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, kv[i])
		}
	}
	return nil
}

func tupleKey(userEmail, loginSessionID, studentName string) string {
	return "tuple:" + userEmail + "|" + loginSessionID + "|" + studentName
}

// Start opens a session and writes the seeded opener pair. The persona's
// opener is returned as the first message to show.
func (s *Service) Start(ctx context.Context, in StartInput) (*Session, *Message, error) {
	if err := requireFields(
		"user_email", in.UserEmail,
		"user_first_name", in.UserFirstName,
		"login_session_id", in.LoginSessionID,
		"chat_session_id", in.ChatSessionID,
		"student_name", in.StudentName,
	); err != nil {
		return nil, nil, err
	}

	unlock, err := s.locker.Lock(ctx, tupleKey(in.UserEmail, in.LoginSessionID, in.StudentName))
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	active, err := s.repo.FindActive(ctx, in.UserEmail, in.LoginSessionID, in.StudentName)
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrDuplicateSession, active.GlobalSessionID)
	}

	gid := GlobalSessionID(in.LoginSessionID, in.ChatSessionID)
	if _, err := s.repo.GetSession(ctx, gid); err == nil {
		return nil, nil, fmt.Errorf("%w: %s exists", ErrDuplicateSession, gid)
	} else if !errors.Is(err, ErrSessionNotFound) {
		return nil, nil, err
	}

	if _, err := s.grounding.Load(ctx, in.StudentName); err != nil {
		return nil, nil, err
	}

	now := s.now()
	seed := seedMessages(gid, in.StudentName, in.instructorName(), s.opts.OrganizationName, now)
	sess := &Session{
		GlobalSessionID: gid,
		LoginSessionID:  in.LoginSessionID,
		ChatSessionID:   in.ChatSessionID,
		UserEmail:       in.UserEmail,
		UserFullName:    in.instructorName(),
		StudentName:     in.StudentName,
		Status:          StatusActive,
		MessageCount:    len(seed),
		StartedAt:       now,
		LastUpdatedAt:   now,
	}
	if err := s.repo.CreateSessionWithSeed(ctx, sess, seed); err != nil {
		return nil, nil, err
	}

	s.log.Info("chat: session started",
		zap.String("global_session_id", gid),
		zap.String("student", in.StudentName),
	)
	s.publishSuggestionJob(ctx, sess)
	return sess, &seed[1], nil
}

type ResumeInput struct {
	UserEmail      string
	LoginSessionID string
	ChatSessionID  string
	StudentName    string
}

// Resume re-opens an existing session without writing messages. An ended
// session is reactivated unless another one for the same tuple is active.
func (s *Service) Resume(ctx context.Context, in ResumeInput) (*Session, error) {
	if err := requireFields(
		"user_email", in.UserEmail,
		"login_session_id", in.LoginSessionID,
		"chat_session_id", in.ChatSessionID,
	); err != nil {
		return nil, err
	}

	gid := GlobalSessionID(in.LoginSessionID, in.ChatSessionID)
	sess, err := s.repo.GetSession(ctx, gid)
	if err != nil {
		return nil, err
	}
	if sess.UserEmail != in.UserEmail || (in.StudentName != "" && sess.StudentName != in.StudentName) {
		return nil, ErrSessionNotFound
	}

	if _, err := s.grounding.Load(ctx, sess.StudentName); err != nil {
		return nil, err
	}

	if sess.Status == StatusActive {
		return sess, nil
	}

	unlock, err := s.locker.Lock(ctx, tupleKey(sess.UserEmail, sess.LoginSessionID, sess.StudentName))
	if err != nil {
		return nil, err
	}
	defer unlock()

	active, err := s.repo.FindActive(ctx, sess.UserEmail, sess.LoginSessionID, sess.StudentName)
	if err != nil {
		return nil, err
	}
	if active != nil && active.GlobalSessionID != gid {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, active.GlobalSessionID)
	}

	now := s.now()
	if err := s.repo.Reactivate(ctx, gid, now); err != nil {
		return nil, err
	}
	sess.Status = StatusActive
	sess.LastUpdatedAt = now
	s.log.Info("chat: session resumed", zap.String("global_session_id", gid))
	return sess, nil
}

// End is idempotent: unknown, foreign and already-ended sessions are a no-op.
func (s *Service) End(ctx context.Context, userEmail, loginSessionID, chatSessionID string) error {
	if err := requireFields(
		"user_email", userEmail,
		"login_session_id", loginSessionID,
		"chat_session_id", chatSessionID,
	); err != nil {
		return err
	}
	gid := GlobalSessionID(loginSessionID, chatSessionID)
	changed, err := s.repo.EndSession(ctx, gid, userEmail, s.now())
	if err != nil {
		return err
	}
	if changed {
		s.log.Info("chat: session ended", zap.String("global_session_id", gid))
		s.publishExportJob(ctx, userEmail, loginSessionID)
	}
	return nil
}

// EndAll ends every active session of a login and returns how many it ended.
func (s *Service) EndAll(ctx context.Context, userEmail, loginSessionID string) (int, error) {
	if err := requireFields("user_email", userEmail, "login_session_id", loginSessionID); err != nil {
		return 0, err
	}
	n, err := s.repo.EndAllActive(ctx, userEmail, loginSessionID, s.now())
	if err != nil {
		return 0, err
	}
	s.log.Info("chat: sessions ended",
		zap.String("user_email", userEmail),
		zap.String("login_session_id", loginSessionID),
		zap.Int64("count", n),
	)
	if n > 0 {
		s.publishExportJob(ctx, userEmail, loginSessionID)
	}
	return int(n), nil
}

type TurnInput struct {
	UserEmail      string
	LoginSessionID string
	ChatSessionID  string
	Question       string
	// LocalizedQuestion is the secondary-language original, stored only.
	LocalizedQuestion string
	InputSource       string
	InstructorName    string
	// StudentName, when set, must match the session's student.
	StudentName string
}

type TurnResult struct {
	Session   *Session
	Reply     persona.Reply
	User      *Message
	Assistant *Message
}

// HandleTurn runs reformulate, retrieve and generate for one instructor
// utterance and stores both halves of the turn. Turns on one session are
// serialized.
func (s *Service) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if err := requireFields(
		"login_session_id", in.LoginSessionID,
		"chat_session_id", in.ChatSessionID,
		"question", in.Question,
	); err != nil {
		return nil, err
	}
	source, err := ParseInputSource(in.InputSource)
	if err != nil {
		return nil, err
	}

	gid := GlobalSessionID(in.LoginSessionID, in.ChatSessionID)
	unlock, err := s.locker.Lock(ctx, "turn:"+gid)
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.repo.GetSession(ctx, gid)
	if err != nil {
		return nil, err
	}
	if in.UserEmail != "" && sess.UserEmail != in.UserEmail {
		return nil, ErrSessionNotFound
	}
	if name := strings.TrimSpace(in.StudentName); name != "" && name != sess.StudentName {
		return nil, fmt.Errorf("%w: %s is not talking to %s", ErrSessionNotFound, gid, name)
	}
	if sess.Status != StatusActive {
		return nil, ErrSessionEnded
	}

	msgs, err := s.repo.ListMessages(ctx, gid)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrHistoryUnavailable, gid)
	}
	history := contextWindow(msgs, s.opts.ContextWindowSize)

	standalone, err := s.reformulator.Reformulate(ctx, in.Question, history)
	if err != nil {
		return nil, err
	}

	passages, err := s.retriever.Retrieve(ctx, sess.StudentName, standalone)
	if err != nil {
		return nil, err
	}

	instructor := strings.TrimSpace(in.InstructorName)
	if instructor == "" {
		instructor = sess.UserFullName
	}
	reply, err := s.generator.Generate(ctx, persona.GenerateInput{
		Question:       standalone,
		Passages:       passages,
		History:        history,
		StudentName:    sess.StudentName,
		InstructorName: instructor,
	})
	if err != nil {
		return nil, err
	}

	userLocalized := strings.TrimSpace(in.LocalizedQuestion)
	replyLocalized := ""
	if s.opts.TranslateMessages && s.translator != nil {
		if userLocalized == "" {
			userLocalized = s.translate(ctx, in.Question)
		}
		replyLocalized = s.translate(ctx, reply.Text)
	}

	userAt, assistantAt := nextTurnTimes(s.now(), msgs[len(msgs)-1].MessageTimestamp)
	userMsg := &Message{
		GlobalSessionID:  gid,
		MessageTimestamp: Stamp(userAt, RoleUser),
		Role:             RoleUser,
		Text:             in.Question,
		LocalizedText:    userLocalized,
		InputSource:      string(source),
		CreatedAt:        userAt,
	}
	assistantMsg := &Message{
		GlobalSessionID:  gid,
		MessageTimestamp: Stamp(assistantAt, RoleAssistant),
		Role:             RoleAssistant,
		Text:             reply.Text,
		LocalizedText:    replyLocalized,
		InputSource:      string(source),
		CreatedAt:        assistantAt,
	}
	if err := s.repo.AppendTurn(ctx, gid, sess.MessageCount, userMsg, assistantMsg, assistantAt); err != nil {
		return nil, err
	}
	sess.MessageCount += 2
	sess.LastUpdatedAt = assistantAt

	s.log.Info("chat: turn stored",
		zap.String("global_session_id", gid),
		zap.String("reply_kind", string(reply.Kind)),
		zap.Int("passages", len(passages)),
		zap.Int("message_count", sess.MessageCount),
	)
	s.publishSuggestionJob(ctx, sess)

	return &TurnResult{Session: sess, Reply: reply, User: userMsg, Assistant: assistantMsg}, nil
}

func (s *Service) translate(ctx context.Context, text string) string {
	out, err := s.translator.Translate(ctx, text, s.opts.PrimaryLanguage, s.opts.SecondaryLanguage)
	if err != nil {
		s.log.Warn("chat: translation failed", zap.Error(err))
		return ""
	}
	return out
}

func (s *Service) publishSuggestionJob(ctx context.Context, sess *Session) {
	if s.publisher == nil {
		return
	}
	job, err := NewSuggestionJob(sess)
	if err == nil {
		err = s.publisher.PublishSuggestionJob(ctx, job)
	}
	if err != nil {
		s.log.Warn("chat: publish suggestion job failed",
			zap.String("global_session_id", sess.GlobalSessionID),
			zap.Error(err),
		)
	}
}

func (s *Service) publishExportJob(ctx context.Context, userEmail, loginSessionID string) {
	if s.exports == nil {
		return
	}
	job, err := NewExportJob(userEmail, loginSessionID)
	if err == nil {
		err = s.exports.PublishExportJob(ctx, job)
	}
	if err != nil {
		s.log.Warn("chat: publish export job failed",
			zap.String("user_email", userEmail),
			zap.String("login_session_id", loginSessionID),
			zap.Error(err),
		)
	}
}

// contextWindow drops the opener pair and keeps the last size messages.
func contextWindow(msgs []Message, size int) []ai.Message {
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		if isOpener(m) || strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, ai.Message{Role: m.Role, Content: m.Text})
	}
	if len(out) > size {
		out = out[len(out)-size:]
	}
	return out
}

// History is the instructor-facing transcript: openers and empty messages
// are left out.
func (s *Service) History(ctx context.Context, userEmail, loginSessionID, chatSessionID string) ([]Message, error) {
	if err := requireFields("login_session_id", loginSessionID, "chat_session_id", chatSessionID); err != nil {
		return nil, err
	}
	gid := GlobalSessionID(loginSessionID, chatSessionID)
	sess, err := s.repo.GetSession(ctx, gid)
	if err != nil {
		return nil, err
	}
	if userEmail != "" && sess.UserEmail != userEmail {
		return nil, ErrSessionNotFound
	}

	msgs, err := s.repo.ListMessages(ctx, gid)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if isOpener(m) || strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Transcript is the full conversation, openers included, as model messages.
func (s *Service) Transcript(ctx context.Context, globalSessionID string) (*Session, []ai.Message, error) {
	sess, err := s.repo.GetSession(ctx, globalSessionID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, globalSessionID)
	if err != nil {
		return nil, nil, err
	}
	out := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ai.Message{Role: m.Role, Content: m.Text})
	}
	return sess, out, nil
}

func (s *Service) ActiveSessions(ctx context.Context, userEmail, loginSessionID string) ([]Session, error) {
	if err := requireFields("user_email", userEmail, "login_session_id", loginSessionID); err != nil {
		return nil, err
	}
	return s.repo.ListActiveSessions(ctx, userEmail, loginSessionID)
}

// Session returns one session, checking ownership when userEmail is set.
func (s *Service) Session(ctx context.Context, userEmail, loginSessionID, chatSessionID string) (*Session, error) {
	sess, err := s.repo.GetSession(ctx, GlobalSessionID(loginSessionID, chatSessionID))
	if err != nil {
		return nil, err
	}
	if userEmail != "" && sess.UserEmail != userEmail {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}
