package converter

import (
	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/domain/entity"
)

// ChatSessionToResponse converts a ChatSession entity to ChatSessionResponse DTO
func ChatSessionToResponse(session *entity.ChatSession) *dto.ChatSessionResponse {
	if session == nil {
		return nil
	}

	return &dto.ChatSessionResponse{
		ID:        session.ID,
		ReportID:  session.ReportID,
		Status:    string(session.Status),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

// ChatSessionsToResponses converts a slice of ChatSession entities to response DTOs
func ChatSessionsToResponses(sessions []entity.ChatSession) []dto.ChatSessionResponse {
	responses := make([]dto.ChatSessionResponse, len(sessions))
	for i := range sessions {
		responses[i] = *ChatSessionToResponse(&sessions[i])
	}
	return responses
}

// ChatMessageToResponse converts a ChatMessage entity to ChatMessageResponse DTO
func ChatMessageToResponse(message *entity.ChatMessage) *dto.ChatMessageResponse {
	if message == nil {
		return nil
	}

	return &dto.ChatMessageResponse{
		ID:         message.ID,
		SenderType: string(message.SenderType),
		Content:    message.Content,
		CreatedAt:  message.CreatedAt,
	}
}

// ChatMessagesToResponses converts a slice of ChatMessage entities to response DTOs
func ChatMessagesToResponses(messages []entity.ChatMessage) []dto.ChatMessageResponse {
	responses := make([]dto.ChatMessageResponse, len(messages))
	for i := range messages {
		responses[i] = *ChatMessageToResponse(&messages[i])
	}
	return responses
}
