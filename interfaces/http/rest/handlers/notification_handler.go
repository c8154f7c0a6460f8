package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pulse-backend/application/ports"
	"pulse-backend/domain/notification"
	"pulse-backend/pkg/auth"
	"pulse-backend/pkg/common"
	"pulse-backend/pkg/utils"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	store  ports.NotificationStore
	logger *zap.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(store ports.NotificationStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		store:  store,
		logger: logger,
	}
}

// MarkAllReadRequest represents the optional filter for read-all
type MarkAllReadRequest struct {
	Type       string `json:"type,omitempty"`
	BeforeDate string `json:"beforeDate,omitempty"`
}

// BatchOperationRequest represents the request body for batch operations
type BatchOperationRequest struct {
	Operation       string   `json:"operation" validate:"required,oneof=mark-read delete archive"`
	NotificationIDs []string `json:"notificationIds" validate:"required,min=1,max=100,dive,min=1"`
}

// List handles GET /notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	params := common.ExtractCursorParams(r)
	query := notification.Query{
		UserID: userCtx.UserID,
		Limit:  params.Limit,
		Cursor: params.Cursor,
		Type:   notification.Type(r.URL.Query().Get("type")),
		Status: notification.Status(r.URL.Query().Get("status")),
	}

	page, err := h.store.GetNotifications(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to list notifications",
			zap.String("userID", userCtx.UserID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondWithMeta(w, http.StatusOK, map[string]interface{}{
		"notifications": page.Items,
		"unreadCount":   page.UnreadCount,
	}, &common.MetaInfo{
		RequestID:  common.ExtractRequestID(r),
		Pagination: common.BuildPaginationMeta(params.Limit, page.NextCursor),
	})
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	count, err := h.store.GetUnreadCount(r.Context(), userCtx.UserID)
	if err != nil {
		h.logger.Error("Failed to count unread notifications",
			zap.String("userID", userCtx.UserID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"unreadCount": count,
	})
}

// MarkRead handles POST /notifications/{notificationID}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	updated, err := h.store.MarkAsRead(r.Context(), userCtx.UserID, notificationID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, updated)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req MarkAllReadRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	filter := notification.MarkAllFilter{
		Type: notification.Type(req.Type),
	}
	if req.BeforeDate != "" {
		before, err := time.Parse(time.RFC3339, req.BeforeDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "beforeDate must be RFC3339")
			return
		}
		filter.BeforeDate = &before
	}

	marked, err := h.store.MarkAllAsRead(r.Context(), userCtx.UserID, filter)
	if err != nil {
		h.logger.Error("Failed to mark all notifications read",
			zap.String("userID", userCtx.UserID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"marked": marked,
	})
}

// Delete handles DELETE /notifications/{notificationID}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if err := h.store.DeleteNotification(r.Context(), userCtx.UserID, notificationID); err != nil {
		common.RespondAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Batch handles POST /notifications/batch
func (h *NotificationHandler) Batch(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req BatchOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	result, err := h.store.BatchOperation(r.Context(), userCtx.UserID, notification.BatchOp(req.Operation), req.NotificationIDs)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

func (h *NotificationHandler) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
