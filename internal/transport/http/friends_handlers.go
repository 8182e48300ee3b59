package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/proto"
	"github.com/vovakirdan/ichat-server/internal/service/friends"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// FriendsHandlers provides HTTP handlers for friend management endpoints.
type FriendsHandlers struct {
	service *friends.Service
	log     *zerolog.Logger
}

// NewFriendsHandlers creates a new friends handlers instance.
func NewFriendsHandlers(svc *friends.Service, logger *zerolog.Logger) *FriendsHandlers {
	return &FriendsHandlers{
		service: svc,
		log:     logger,
	}
}

// SendFriendRequestRequest represents the request body for sending a friend request.
type SendFriendRequestRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// RespondFriendRequestRequest represents the body for accepting or rejecting a request.
type RespondFriendRequestRequest struct {
	RequestID int64 `json:"request_id" binding:"required,gt=0"`
	Accept    *bool `json:"accept" binding:"required"`
}

// FriendRequestResponse represents a friend request in API responses.
type FriendRequestResponse struct {
	ID         int64         `json:"id"`
	FromUserID int64         `json:"from_user_id"`
	ToUserID   int64         `json:"to_user_id"`
	Status     string        `json:"status"`
	CreatedAt  string        `json:"created_at"`
	From       *UserResponse `json:"from,omitempty"`
}

func friendRequestToResponse(r *store.FriendRequest, from *store.User) FriendRequestResponse {
	resp := FriendRequestResponse{
		ID:         r.ID,
		FromUserID: r.FromUserID,
		ToUserID:   r.ToUserID,
		Status:     string(r.Status),
		CreatedAt:  proto.FormatTime(r.CreatedAt),
	}
	if from != nil {
		u := userToResponse(from)
		resp.From = &u
	}
	return resp
}

// SendRequest handles sending a friend request.
// POST /api/users/friend-request
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send friend request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	fr, err := h.service.SendRequest(c.Request.Context(), uid, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, friends.ErrCannotFriendSelf):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot send friend request to yourself"})
		case errors.Is(err, friends.ErrAlreadyFriends):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "already friends"})
		case errors.Is(err, friends.ErrRequestAlreadyExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "friend request already exists"})
		case errors.Is(err, friends.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Int64("from_user_id", uid).Int64("to_user_id", req.UserID).Msg("failed to send friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("from_user_id", uid).Int64("to_user_id", req.UserID).Msg("friend request sent")
	c.JSON(http.StatusCreated, friendRequestToResponse(fr, nil))
}

// ListPendingRequests handles listing incoming pending friend requests.
// GET /api/users/friend-requests
func (h *FriendsHandlers) ListPendingRequests(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	pending, err := h.service.ListPendingRequests(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list friend requests")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]FriendRequestResponse, 0, len(pending))
	for _, p := range pending {
		resp = append(resp, friendRequestToResponse(p.Request, p.From))
	}
	c.JSON(http.StatusOK, resp)
}

// Respond handles accepting or rejecting a friend request.
// POST /api/users/friend-request/respond
func (h *FriendsHandlers) Respond(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req RespondFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid respond friend request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.service.Respond(c.Request.Context(), uid, req.RequestID, *req.Accept); err != nil {
		switch {
		case errors.Is(err, friends.ErrRequestNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "friend request not found"})
		case errors.Is(err, friends.ErrRequestHandled):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "friend request already handled"})
		default:
			h.log.Error().Err(err).Int64("user_id", uid).Int64("request_id", req.RequestID).Msg("failed to respond to friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	status := store.FriendRequestRejected
	if *req.Accept {
		status = store.FriendRequestAccepted
	}
	h.log.Info().Int64("user_id", uid).Int64("request_id", req.RequestID).Str("status", string(status)).Msg("friend request answered")
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// ListFriends handles listing friends with live presence.
// GET /api/users/friends
func (h *FriendsHandlers) ListFriends(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	list, err := h.service.ListFriends(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list friends")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]UserResponse, 0, len(list))
	for _, u := range list {
		resp = append(resp, userToResponse(u))
	}
	c.JSON(http.StatusOK, resp)
}
