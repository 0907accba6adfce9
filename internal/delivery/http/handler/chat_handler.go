package handler

import (
	"encoding/json"
	"net/http"

	"online-booking-backend/internal/delivery/dto"
	"online-booking-backend/internal/delivery/http/middleware"
	"online-booking-backend/internal/usecase"
	"online-booking-backend/pkg/response"
	"online-booking-backend/pkg/validator"

	"github.com/gorilla/mux"
)

type ChatHandler struct {
	chatUsecase usecase.ChatUsecase
	validator   *validator.CustomValidator
}

func NewChatHandler(chatUsecase usecase.ChatUsecase, validator *validator.CustomValidator) *ChatHandler {
	return &ChatHandler{
		chatUsecase: chatUsecase,
		validator:   validator,
	}
}

// StartSession opens a new support chat session
// @Summary Start a support chat session
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Success 201 {object} response.Response
// @Router /chat/sessions [post]
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	session, err := h.chatUsecase.StartSession(r.Context(), userID)
	if err != nil {
		response.InternalServerError(w, "Failed to start chat session")
		return
	}

	response.Success(w, http.StatusCreated, "Chat session started", session)
}

// SendMessage sends a message and returns the assistant's reply
// @Summary Send a chat message
// @Tags Chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param reportId path string true "Report ID"
// @Param request body dto.SendChatMessageRequest true "Message"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /chat/sessions/{reportId}/messages [post]
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	var req dto.SendChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	reply, err := h.chatUsecase.SendMessage(r.Context(), userID, mux.Vars(r)["reportId"], &req)
	if err != nil {
		h.respondChatError(w, err, "Failed to send message")
		return
	}

	response.Success(w, http.StatusOK, "Message sent", reply)
}

// GetHistory returns a session with all its messages
// @Summary Get chat history
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param reportId path string true "Report ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /chat/sessions/{reportId} [get]
func (h *ChatHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}
	roleID, _ := middleware.GetRoleIDFromContext(r.Context())

	history, err := h.chatUsecase.GetHistory(r.Context(), userID, roleID, mux.Vars(r)["reportId"])
	if err != nil {
		h.respondChatError(w, err, "Failed to get chat history")
		return
	}

	response.Success(w, http.StatusOK, "Chat history retrieved", history)
}

// ListSessions returns the caller's chat sessions
// @Summary List chat sessions
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /chat/sessions [get]
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}

	sessions, err := h.chatUsecase.ListSessions(r.Context(), userID)
	if err != nil {
		response.InternalServerError(w, "Failed to list chat sessions")
		return
	}

	response.Success(w, http.StatusOK, "Chat sessions retrieved", sessions)
}

// CloseSession closes a chat session
// @Summary Close a chat session
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param reportId path string true "Report ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /chat/sessions/{reportId}/close [post]
func (h *ChatHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}
	roleID, _ := middleware.GetRoleIDFromContext(r.Context())

	session, err := h.chatUsecase.CloseSession(r.Context(), userID, roleID, mux.Vars(r)["reportId"])
	if err != nil {
		h.respondChatError(w, err, "Failed to close chat session")
		return
	}

	response.Success(w, http.StatusOK, "Chat session closed", session)
}

// EscalateSession hands the session to a human agent
// @Summary Escalate a chat session
// @Tags Chat
// @Security BearerAuth
// @Produce json
// @Param reportId path string true "Report ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /chat/sessions/{reportId}/escalate [post]
func (h *ChatHandler) EscalateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Invalid token")
		return
	}
	roleID, _ := middleware.GetRoleIDFromContext(r.Context())

	session, err := h.chatUsecase.EscalateSession(r.Context(), userID, roleID, mux.Vars(r)["reportId"])
	if err != nil {
		h.respondChatError(w, err, "Failed to escalate chat session")
		return
	}

	response.Success(w, http.StatusOK, "Chat session escalated", session)
}

func (h *ChatHandler) respondChatError(w http.ResponseWriter, err error, fallbackMessage string) {
	switch err {
	case usecase.ErrChatSessionNotFound:
		response.NotFound(w, "Chat session not found")
	case usecase.ErrChatSessionNotOwned:
		response.Forbidden(w, "Chat session does not belong to this user")
	case usecase.ErrChatSessionClosed:
		response.Error(w, http.StatusUnprocessableEntity, "Chat session is closed", nil)
	default:
		response.InternalServerError(w, fallbackMessage)
	}
}
