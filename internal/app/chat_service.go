package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"lexibot/internal/ai"
	"lexibot/internal/classifier"
	"lexibot/internal/model"
	"lexibot/internal/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
)

// UnknownOutcome is the prediction recorded when neither the classifier nor
// the generation fallback produced a usable label.
const UnknownOutcome = "Unknown"

// AsyncMessagePublisher hands a message to the persistence queue.
type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

// HistoryCache is the session-history read cache with its dirty-marker
// protocol: writers mark a session dirty before invalidating so a concurrent
// reader cannot re-populate the cache with a stale snapshot.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

// OutcomePredictor is the optional local classifier. A nil predictor or any
// prediction error routes the outcome through the generation service instead.
type OutcomePredictor interface {
	Predict(text string) (classifier.Prediction, error)
}

// ChatService owns sessions and the message log, and drives the per-query
// answer pipeline: classify, retrieve, synthesize, persist.
type ChatService struct {
	sessionRepo  *repository.SessionRepository
	messageRepo  *repository.MessageRepository
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	answers      *AnswerService
	predictor    OutcomePredictor
	llm          LLMClient
	chatCfg      ai.ChatConfig
	maxContext   int
	log          *zap.Logger
}

func NewChatService(
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	answers *AnswerService,
	predictor OutcomePredictor,
	llm LLMClient,
	chatCfg ai.ChatConfig,
	maxContext int,
	log *zap.Logger,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		answers:      answers,
		predictor:    predictor,
		llm:          llm,
		chatCfg:      chatCfg,
		maxContext:   maxContext,
		log:          log,
	}
}

type CreateSessionInput struct {
	UserID uint
	Title  string
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.Session, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Chat " + time.Now().Format("2006-01-02 15:04")
	}

	session := &model.Session{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

// RenameSession reports false when the (session, user) pair does not match;
// another tenant's session is never touched.
func (s *ChatService) RenameSession(userID, sessionID uint, title string) (bool, error) {
	title = strings.TrimSpace(title)
	if userID == 0 || sessionID == 0 || title == "" {
		return false, ErrInvalidInput
	}
	return s.sessionRepo.RenameByIDAndUserID(sessionID, userID, title)
}

// DeleteSession cascades to the session's messages and is idempotent:
// deleting an already deleted session reports false, not an error.
func (s *ChatService) DeleteSession(userID, sessionID uint) (bool, error) {
	if userID == 0 || sessionID == 0 {
		return false, ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	if err := s.messageRepo.DeleteBySessionID(sessionID); err != nil {
		return false, err
	}
	deleted, err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID)
	if err != nil {
		return false, err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(context.Background(), sessionID)
	}
	return deleted, nil
}

type SendMessageInput struct {
	UserID    uint
	SessionID uint // 0 = create a session on demand
	Content   string
	Language  string
}

type SendMessageResult struct {
	Session          *model.Session  `json:"session"`
	Messages         []model.Message `json:"messages"`
	Answer           *Answer         `json:"answer"`
	Prediction       string          `json:"prediction"`
	Confidence       float32         `json:"confidence"`
	Grounded         bool            `json:"grounded"`
	HistoryPersisted bool            `json:"history_persisted"`
}

// SendMessage runs one full query pipeline. Loss of grounding (embedding or
// store failure) degrades to an ungrounded answer; loss of history
// persistence degrades to a warning flag; only a generation failure aborts.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, err := s.resolveSession(input.UserID, input.SessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.messageRepo.ListRecentBySessionID(session.ID, input.UserID, s.maxContext)
	if err != nil {
		s.log.Warn("load history failed, continuing without context", zap.Error(err))
		history = nil
	}

	userMessage := model.Message{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now(),
	}
	userPersisted := s.appendMessage(ctx, &userMessage)

	prediction := s.PredictOutcome(ctx, content)

	retrieved := s.answers.Retrieve(ctx, content, input.UserID, 0)

	answer, err := s.answers.Synthesize(ctx, content, retrieved, history, input.Language)
	if err != nil {
		return nil, err
	}

	assistantMessage := model.Message{
		SessionID:  session.ID,
		UserID:     input.UserID,
		Role:       "assistant",
		Content:    answer.Text,
		Prediction: prediction.Label,
		CreatedAt:  time.Now(),
	}
	assistantPersisted := s.appendMessage(ctx, &assistantMessage)

	return &SendMessageResult{
		Session:          session,
		Messages:         []model.Message{userMessage, assistantMessage},
		Answer:           answer,
		Prediction:       prediction.Label,
		Confidence:       prediction.Confidence,
		Grounded:         len(retrieved) > 0,
		HistoryPersisted: userPersisted && assistantPersisted,
	}, nil
}

// resolveSession loads the caller's session, creating one on demand when no
// session id was supplied.
func (s *ChatService) resolveSession(userID, sessionID uint) (*model.Session, error) {
	if sessionID == 0 {
		return s.CreateSession(CreateSessionInput{UserID: userID})
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// appendMessage seals the content hash and persists the message, preferring
// the async queue and falling back to a direct write. Persistence failure is
// never fatal to the conversation; the caller just reports degraded history.
func (s *ChatService) appendMessage(ctx context.Context, msg *model.Message) bool {
	msg.SealContent()

	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, msg.SessionID)
		_ = s.historyCache.DeleteHistory(ctx, msg.SessionID)
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, *msg)
		if err == nil {
			return true
		}
		s.log.Warn("publish message failed, writing directly", zap.Error(err))
	}

	if err := s.messageRepo.Create(msg); err != nil {
		s.log.Warn("persist message failed, history degraded",
			zap.Uint("session_id", msg.SessionID), zap.Error(err))
		return false
	}
	return true
}

// PredictOutcome classifies the case facts locally when the classifier is
// available, otherwise asks the generation service for a label. It never
// fails the chat turn.
func (s *ChatService) PredictOutcome(ctx context.Context, caseFacts string) classifier.Prediction {
	if s.predictor != nil {
		pred, err := s.predictor.Predict(caseFacts)
		if err == nil {
			return pred
		}
		s.log.Warn("classifier unavailable, falling back to generation", zap.Error(err))
	}

	messages := []ai.ChatMessage{
		{
			Role: "system",
			Content: "Label the likely outcome of the described legal case. " +
				"Reply with exactly one word: Favorable, Unfavorable, or Neutral.",
		},
		{Role: "user", Content: caseFacts},
	}
	out, err := s.llm.Complete(ctx, s.chatCfg, messages)
	if err != nil {
		s.log.Warn("outcome fallback failed", zap.Error(err))
		return classifier.Prediction{Label: UnknownOutcome}
	}
	return classifier.Prediction{Label: normalizeOutcomeLabel(out)}
}

// normalizeOutcomeLabel maps a fallback reply onto one of the known labels.
// Matching is per token so "unfavorable" never reads as "favorable", and a
// negated mention ("not favorable") does not count as that label.
func normalizeOutcomeLabel(raw string) string {
	tokens := strings.Fields(strings.ToLower(raw))
	trim := func(s string) string { return strings.Trim(s, `.,!?:;"'()`) }

	for i, tok := range tokens {
		var label string
		switch trim(tok) {
		case "favorable":
			label = "Favorable"
		case "unfavorable":
			label = "Unfavorable"
		case "neutral":
			label = "Neutral"
		default:
			continue
		}
		if i > 0 {
			switch trim(tokens[i-1]) {
			case "not", "never", "hardly":
				continue
			}
		}
		return label
	}
	return UnknownOutcome
}

func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, userID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

// AuditSessionIntegrity recomputes every stored content hash for a session
// and returns the ids of messages whose content no longer matches.
func (s *ChatService) AuditSessionIntegrity(ctx context.Context, userID, sessionID uint) ([]uint, error) {
	messages, err := s.messageRepo.ListBySessionID(sessionID, userID, 0)
	if err != nil {
		return nil, err
	}
	var tampered []uint
	for i := range messages {
		if !messages[i].VerifyIntegrity() {
			tampered = append(tampered, messages[i].ID)
		}
	}
	return tampered, nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
