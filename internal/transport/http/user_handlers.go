package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/service/friends"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	store   store.Store
	friends *friends.Service
	hub     *core.Hub
	log     *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, svc *friends.Service, hub *core.Hub, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store:   st,
		friends: svc,
		hub:     hub,
		log:     logger,
	}
}

// Me returns the authenticated user.
// GET /api/users/me
func (h *UserHandlers) Me(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	user, err := h.store.GetUserByID(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	user.Status = store.UserStatusOffline
	if h.hub.IsOnline(uid) {
		user.Status = store.UserStatusOnline
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

// SearchUsers handles searching for users by username or email.
// GET /api/users/search?query=...
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		query = c.Query("q")
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query is required"})
		return
	}

	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	users, err := h.friends.Search(c.Request.Context(), uid, trimmed)
	if err != nil {
		h.log.Error().Err(err).Str("query", trimmed).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userToResponse(u))
	}
	c.JSON(http.StatusOK, resp)
}
