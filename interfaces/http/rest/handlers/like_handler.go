package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pulse-backend/application/ports"
	"pulse-backend/pkg/auth"
	"pulse-backend/pkg/common"
	"pulse-backend/pkg/utils"
)

// LikeHandler handles like-related HTTP requests
type LikeHandler struct {
	store  ports.LikeStore
	logger *zap.Logger
}

// NewLikeHandler creates a new like handler
func NewLikeHandler(store ports.LikeStore, logger *zap.Logger) *LikeHandler {
	return &LikeHandler{
		store:  store,
		logger: logger,
	}
}

// BatchStatusRequest represents the request body for bulk like lookups
type BatchStatusRequest struct {
	PostIDs []string `json:"postIds" validate:"required,min=1,max=100,dive,min=1"`
}

// Like handles POST /posts/{postID}/like
func (h *LikeHandler) Like(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID := chi.URLParam(r, "postID")
	status, err := h.store.LikePost(r.Context(), userCtx.UserID, postID)
	if err != nil {
		h.logger.Error("Failed to like post",
			zap.String("userID", userCtx.UserID),
			zap.String("postID", postID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, status)
}

// Unlike handles DELETE /posts/{postID}/like
func (h *LikeHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID := chi.URLParam(r, "postID")
	status, err := h.store.UnlikePost(r.Context(), userCtx.UserID, postID)
	if err != nil {
		h.logger.Error("Failed to unlike post",
			zap.String("userID", userCtx.UserID),
			zap.String("postID", postID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, status)
}

// Status handles GET /posts/{postID}/like
func (h *LikeHandler) Status(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID := chi.URLParam(r, "postID")
	status, err := h.store.GetPostLikeStatus(r.Context(), userCtx.UserID, postID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, status)
}

// BatchStatus handles POST /posts/likes/batch
func (h *LikeHandler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req BatchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	statuses, err := h.store.GetLikeStatusesByPostIDs(r.Context(), userCtx.UserID, req.PostIDs)
	if err != nil {
		h.logger.Error("Failed to load like statuses",
			zap.String("userID", userCtx.UserID),
			zap.Int("count", len(req.PostIDs)),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, statuses)
}

func (h *LikeHandler) respondError(w http.ResponseWriter, status int, message string) {
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
