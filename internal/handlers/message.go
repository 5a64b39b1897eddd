package handlers

import (
	"net/http"

	"timelock-backend/internal/middleware"
	"timelock-backend/internal/models"
	"timelock-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MessageHandler handles sealed message HTTP requests
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// CreateMessageBody is the body of POST /messages
type CreateMessageBody struct {
	Content    string `json:"content"`
	UnlockDate string `json:"unlock_date"`
}

// TodayResponse wraps the optional message due today
type TodayResponse struct {
	Message *models.Message `json:"message"`
}

// DatesResponse lists unlock dates already used towards the partner
type DatesResponse struct {
	Dates []models.Date `json:"dates"`
}

// CreateMessage handles POST /api/v1/messages
func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CreateMessageBody
	if !decodeJSON(w, r, &req) {
		return
	}
	unlockDate, err := models.ParseDate(req.UnlockDate)
	if err != nil {
		respondError(w, "unlock_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	msg, err := h.messageService.SendToPartner(ctx, userID, req.Content, unlockDate)
	if err != nil {
		respondServiceError(w, err, logFor(err).
			Str("user_id", userID).
			Str("unlock_date", req.UnlockDate), "Failed to create message")
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// GetMessages handles GET /api/v1/messages
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	views, err := h.messageService.GetUserMessages(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get messages")
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// GetTodaysMessage handles GET /api/v1/messages/today
func (h *MessageHandler) GetTodaysMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	msg, err := h.messageService.GetTodaysMessage(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get todays message")
		return
	}
	respondJSON(w, http.StatusOK, TodayResponse{Message: msg})
}

// GetMessageDates handles GET /api/v1/messages/dates
func (h *MessageHandler) GetMessageDates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	dates, err := h.messageService.GetPartnerMessageDates(ctx, userID)
	if err != nil {
		respondServiceError(w, err, logFor(err).Str("user_id", userID), "Failed to get message dates")
		return
	}
	respondJSON(w, http.StatusOK, DatesResponse{Dates: dates})
}

// GetMessage handles GET /api/v1/messages/{id}
func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	messageID := chi.URLParam(r, "id")

	view, err := h.messageService.GetMessage(ctx, userID, messageID)
	if err != nil {
		respondServiceError(w, err, logFor(err).
			Str("user_id", userID).
			Str("message_id", messageID), "Failed to get message")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// OpenMessage handles POST /api/v1/messages/{id}/open
func (h *MessageHandler) OpenMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	messageID := chi.URLParam(r, "id")

	msg, err := h.messageService.MarkAsOpened(ctx, userID, messageID)
	if err != nil {
		respondServiceError(w, err, logFor(err).
			Str("user_id", userID).
			Str("message_id", messageID), "Failed to open message")
		return
	}
	respondJSON(w, http.StatusOK, msg)
}
