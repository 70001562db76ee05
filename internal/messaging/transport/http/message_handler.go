package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ghostcrm/messaging/internal/messaging/app"
	"github.com/ghostcrm/messaging/internal/messaging/middleware"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// MessageHandler exposes outbound dispatch and the org-scoped message views.
type MessageHandler struct {
	dispatcher *app.Dispatcher
	messages   repository.MessageRepository
	db         repository.Querier
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(
	dispatcher *app.Dispatcher,
	messages repository.MessageRepository,
	db repository.Querier,
	validate *validator.Validate,
	logger *slog.Logger,
) *MessageHandler {
	return &MessageHandler{
		dispatcher: dispatcher,
		messages:   messages,
		db:         db,
		validate:   validate,
		logger:     logger.With("handler", "message"),
	}
}

// RegisterRoutes registers message routes with the given router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages/send", h.handleSendMessage)
	r.Get("/messages", h.handleListMessages)
	r.Get("/messages/{messageID}", h.handleGetMessage)
}

func (h *MessageHandler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "send request failed validation", "error", err)
		writeErrorCode(w, http.StatusBadRequest, "missing_fields")
		return
	}

	result, err := h.dispatcher.SendMessage(ctx, app.SendInput{
		OrgID:  membership.OrgID,
		UserID: membership.UserID,
		To:     req.To,
		From:   req.From,
		Body:   req.Body,
	})
	if err != nil {
		status, code := statusForError(err)
		if status >= 500 {
			logger.ErrorContext(ctx, "dispatch failed", "error", err)
		}
		writeJSON(w, status, SendMessageResponse{OK: false, Error: code})
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{
		OK:         true,
		MessageID:  result.MessageID,
		ProviderID: result.ProviderMessageID,
	})
}

func (h *MessageHandler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.messages.ListByOrg(ctx, h.db, membership.OrgID, limit)
	if err != nil {
		handleDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *MessageHandler) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	membership, ok := middleware.MembershipFromContext(ctx)
	if !ok {
		writeErrorCode(w, http.StatusForbidden, "no_membership")
		return
	}

	messageID := chi.URLParam(r, "messageID")
	msg, err := h.messages.GetByID(ctx, h.db, membership.OrgID, messageID)
	if err != nil {
		handleDomainError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
