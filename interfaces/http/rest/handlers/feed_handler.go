package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pulse-backend/application/ports"
	"pulse-backend/domain/feed"
	"pulse-backend/pkg/auth"
	"pulse-backend/pkg/common"
	"pulse-backend/pkg/utils"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	store  ports.FeedStore
	logger *zap.Logger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(store ports.FeedStore, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		store:  store,
		logger: logger,
	}
}

// MarkReadRequest represents the request body for marking feed items read
type MarkReadRequest struct {
	PostIDs []string `json:"postIds" validate:"required,min=1,max=100,dive,min=1"`
}

// GetFeed handles GET /feed
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	params := common.ExtractCursorParams(r)
	page, err := h.store.GetMaterializedFeedItems(r.Context(), feed.Query{
		UserID: userCtx.UserID,
		Limit:  params.Limit,
		Cursor: params.Cursor,
	})
	if err != nil {
		h.logger.Error("Failed to load feed",
			zap.String("userID", userCtx.UserID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondWithMeta(w, http.StatusOK, page.Items, &common.MetaInfo{
		RequestID:  common.ExtractRequestID(r),
		Pagination: common.BuildPaginationMeta(params.Limit, page.NextCursor),
	})
}

// MarkRead handles POST /feed/mark-read
func (h *FeedHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	marked, err := h.store.MarkFeedItemsAsRead(r.Context(), userCtx.UserID, req.PostIDs)
	if err != nil {
		h.logger.Error("Failed to mark feed items read",
			zap.String("userID", userCtx.UserID),
			zap.Int("count", len(req.PostIDs)),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"marked": marked,
	})
}

// RemoveAuthor handles DELETE /feed/authors/{authorID}. It clears one
// author's posts out of the caller's feed, typically after an unfollow.
func (h *FeedHandler) RemoveAuthor(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	authorID := chi.URLParam(r, "authorID")
	if !feed.ValidIdentifier(authorID) {
		h.respondError(w, http.StatusBadRequest, "Invalid author ID")
		return
	}

	deleted, err := h.store.DeleteFeedItemsForUser(r.Context(), userCtx.UserID, authorID)
	if err != nil {
		h.logger.Error("Failed to remove author from feed",
			zap.String("userID", userCtx.UserID),
			zap.String("authorID", authorID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	})
}

func (h *FeedHandler) respondError(w http.ResponseWriter, status int, message string) {
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
