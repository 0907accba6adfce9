package usecase

import (
	"context"
	"errors"

	"online-booking-backend/internal/converter"
	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/domain/entity"
	"online-booking-backend/internal/domain/repository"
	"online-booking-backend/internal/gateway/ai"
	"online-booking-backend/internal/service"
	"online-booking-backend/pkg/idgen"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrChatSessionNotFound = errors.New("chat session not found")
	ErrChatSessionNotOwned = errors.New("chat session does not belong to this user")
	ErrChatSessionClosed   = errors.New("chat session is closed")
)

// fallbackReply is returned to the customer when the AI backend is down so
// the session never dead-ends.
const fallbackReply = "Our support assistant is temporarily unavailable. Your message has been recorded; please try again in a few minutes."

type ChatUsecase interface {
	StartSession(ctx context.Context, userID uuid.UUID) (*dto.ChatSessionResponse, error)
	SendMessage(ctx context.Context, userID uuid.UUID, reportID string, req *dto.SendChatMessageRequest) (*dto.ChatReplyResponse, error)
	GetHistory(ctx context.Context, userID uuid.UUID, roleID int, reportID string) (*dto.ChatHistoryResponse, error)
	ListSessions(ctx context.Context, userID uuid.UUID) (*dto.ChatSessionListResponse, error)
	CloseSession(ctx context.Context, userID uuid.UUID, roleID int, reportID string) (*dto.ChatSessionResponse, error)
	EscalateSession(ctx context.Context, userID uuid.UUID, roleID int, reportID string) (*dto.ChatSessionResponse, error)
}

type chatUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	sessionRepo  repository.ChatSessionRepository
	messageRepo  repository.ChatMessageRepository
	auditService service.AuditService
	aiClient     *ai.Client
	idGenerator  *idgen.Generator
}

func NewChatUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	sessionRepo repository.ChatSessionRepository,
	messageRepo repository.ChatMessageRepository,
	auditService service.AuditService,
	aiClient *ai.Client,
	idGenerator *idgen.Generator,
) ChatUsecase {
	return &chatUsecase{
		db:           db,
		log:          log,
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		auditService: auditService,
		aiClient:     aiClient,
		idGenerator:  idGenerator,
	}
}

// StartSession opens a new support conversation under a fresh report ID.
func (u *chatUsecase) StartSession(ctx context.Context, userID uuid.UUID) (*dto.ChatSessionResponse, error) {
	reportID, err := idgen.Unique(u.idGenerator.ReportID, func(candidate string) (bool, error) {
		return u.sessionRepo.ExistsByReportID(u.db.WithContext(ctx), candidate)
	})
	if err != nil {
		u.log.Warnf("Failed to generate report ID: %+v", err)
		return nil, err
	}

	session := &entity.ChatSession{
		ReportID: reportID,
		UserID:   userID,
		Status:   entity.ChatStatusActive,
	}

	if err := u.sessionRepo.Create(u.db.WithContext(ctx), session); err != nil {
		u.log.Warnf("Failed to create chat session: %+v", err)
		return nil, err
	}

	return converter.ChatSessionToResponse(session), nil
}

// SendMessage stores the customer's message, asks the AI backend for a reply
// and stores that too. A backend outage degrades to a canned reply instead of
// failing the request.
func (u *chatUsecase) SendMessage(ctx context.Context, userID uuid.UUID, reportID string, req *dto.SendChatMessageRequest) (*dto.ChatReplyResponse, error) {
	session, err := u.findOwnedSession(ctx, userID, 0, reportID)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, ErrChatSessionClosed
	}

	userMessage := &entity.ChatMessage{
		SessionID:  session.ID,
		SenderType: entity.SenderTypeUser,
		Content:    req.Message,
	}
	if err := u.messageRepo.Create(u.db.WithContext(ctx), userMessage); err != nil {
		u.log.Warnf("Failed to store chat message: %+v", err)
		return nil, err
	}

	replyText, err := u.aiClient.Reply(ctx, req.Message, session.ReportID)
	if err != nil {
		if !errors.Is(err, ai.ErrBackendUnavailable) {
			return nil, err
		}
		u.log.Warnf("AI backend unavailable for session %s, using fallback reply", session.ReportID)
		replyText = fallbackReply
	}

	aiMessage := &entity.ChatMessage{
		SessionID:  session.ID,
		SenderType: entity.SenderTypeAI,
		Content:    replyText,
	}
	if err := u.messageRepo.Create(u.db.WithContext(ctx), aiMessage); err != nil {
		u.log.Warnf("Failed to store AI reply: %+v", err)
		return nil, err
	}

	return &dto.ChatReplyResponse{
		Session: *converter.ChatSessionToResponse(session),
		Reply:   *converter.ChatMessageToResponse(aiMessage),
	}, nil
}

func (u *chatUsecase) GetHistory(ctx context.Context, userID uuid.UUID, roleID int, reportID string) (*dto.ChatHistoryResponse, error) {
	session, err := u.findOwnedSession(ctx, userID, roleID, reportID)
	if err != nil {
		return nil, err
	}

	messages, err := u.messageRepo.FindBySessionID(u.db.WithContext(ctx), session.ID)
	if err != nil {
		u.log.Warnf("Failed to load chat history for %s: %+v", reportID, err)
		return nil, err
	}

	return &dto.ChatHistoryResponse{
		Session:  *converter.ChatSessionToResponse(session),
		Messages: converter.ChatMessagesToResponses(messages),
	}, nil
}

func (u *chatUsecase) ListSessions(ctx context.Context, userID uuid.UUID) (*dto.ChatSessionListResponse, error) {
	sessions, err := u.sessionRepo.FindByUserID(u.db.WithContext(ctx), userID)
	if err != nil {
		u.log.Warnf("Failed to list chat sessions: %+v", err)
		return nil, err
	}

	return &dto.ChatSessionListResponse{
		Sessions: converter.ChatSessionsToResponses(sessions),
		Total:    len(sessions),
	}, nil
}

func (u *chatUsecase) CloseSession(ctx context.Context, userID uuid.UUID, roleID int, reportID string) (*dto.ChatSessionResponse, error) {
	session, err := u.findOwnedSession(ctx, userID, roleID, reportID)
	if err != nil {
		return nil, err
	}

	session.Close()
	if err := u.sessionRepo.Update(u.db.WithContext(ctx), session); err != nil {
		u.log.Warnf("Failed to close chat session %s: %+v", reportID, err)
		return nil, err
	}

	return converter.ChatSessionToResponse(session), nil
}

// EscalateSession hands the conversation to a human agent and records the
// handover in the audit trail.
func (u *chatUsecase) EscalateSession(ctx context.Context, userID uuid.UUID, roleID int, reportID string) (*dto.ChatSessionResponse, error) {
	session, err := u.findOwnedSession(ctx, userID, roleID, reportID)
	if err != nil {
		return nil, err
	}
	if session.Status == entity.ChatStatusClosed {
		return nil, ErrChatSessionClosed
	}

	session.Escalate()

	tx := u.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if err := u.sessionRepo.Update(tx, session); err != nil {
		u.log.Warnf("Failed to escalate chat session %s: %+v", reportID, err)
		return nil, err
	}

	metadata := entity.JSON{"report_id": session.ReportID}
	if err := u.auditService.Record(tx, &userID, entity.AuditActionChatEscalate, metadata); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, err
	}

	return converter.ChatSessionToResponse(session), nil
}

// findOwnedSession loads a session by report ID and enforces ownership.
// Admins can read any session (support agents work from report IDs).
func (u *chatUsecase) findOwnedSession(ctx context.Context, userID uuid.UUID, roleID int, reportID string) (*entity.ChatSession, error) {
	session, err := u.sessionRepo.FindByReportID(u.db.WithContext(ctx), reportID)
	if err != nil {
		u.log.Warnf("Failed to find chat session %s: %+v", reportID, err)
		return nil, err
	}
	if session == nil {
		return nil, ErrChatSessionNotFound
	}
	if session.UserID != userID && roleID != entity.RoleIDAdmin {
		return nil, ErrChatSessionNotOwned
	}
	return session, nil
}
