package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/proto"
	"github.com/vovakirdan/ichat-server/internal/store"
)

const maxHistoryLimit = 200

// MessageHandlers serves conversation history and read state.
type MessageHandlers struct {
	store        store.Store
	historyLimit int
	log          *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(st store.Store, historyLimit int, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		store:        st,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// MarkReadRequest lists messages to flag as read.
type MarkReadRequest struct {
	MessageIDs []int64 `json:"message_ids" binding:"required,min=1,dive,gt=0"`
}

// History returns the conversation with a friend, oldest first.
// GET /api/messages/history/:userId?limit=&before=
func (h *MessageHandlers) History(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	peerID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || peerID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var cursor *store.HistoryCursor
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		cursor = &store.HistoryCursor{Before: t}
		if rawID := c.Query("before_id"); rawID != "" {
			id, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before_id"})
				return
			}
			cursor.BeforeID = id
		}
	}

	ctx := c.Request.Context()
	friends, err := h.store.IsFriend(ctx, uid, peerID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to check friendship")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !friends {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: core.ErrNotFriends.Error()})
		return
	}

	msgs, err := h.store.ListConversation(ctx, uid, peerID, limit, cursor)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]proto.MessagePayload, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messagePayload(core.MessageFromStore(m)))
	}
	c.JSON(http.StatusOK, resp)
}

// MarkRead flags messages addressed to the caller as read.
// POST /api/messages/mark-read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid mark read request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	n, err := h.store.MarkRead(c.Request.Context(), uid, req.MessageIDs)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to mark messages read")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// UnreadCount returns how many messages addressed to the caller are unread.
// GET /api/messages/unread-count
func (h *MessageHandlers) UnreadCount(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	n, err := h.store.CountUnread(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to count unread messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
