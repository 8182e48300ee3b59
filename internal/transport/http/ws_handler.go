package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/config"
	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	hub    *core.Hub
	cfg    *config.Config
	mapper *inboundMapper
	log    *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		cfg:    cfg,
		mapper: newInboundMapper(cfg.MaxContentLength),
		log:    logger,
	}
}

// extractToken reads the credential from the Authorization header or the token query parameter.
func extractToken(r *stdhttp.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(h.cfg.ClientBuffer)
	sess, err := h.hub.Connect(ctx, extractToken(r), client)
	if err != nil {
		h.rejectConn(ctx, conn, err)
		return
	}
	teardownCtx := context.WithoutCancel(ctx)
	defer h.hub.Disconnect(teardownCtx, sess)

	logger := h.log.With().
		Int64("user_id", sess.UserID()).
		Str("client_id", client.ID).
		Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.hub.Serve(ctx, sess)
	}()

	err = <-errCh

	// Kicked: release the session first so a waiting reconnect is not held up
	// by the close handshake, then tell the peer why.
	if reason := client.KickReason(); reason != "" {
		logger.Info().Str("reason", reason).Msg("ws connection kicked")
		h.hub.Disconnect(teardownCtx, sess)
		status := websocket.StatusPolicyViolation
		if reason == core.KickShutdown {
			status = websocket.StatusGoingAway
		}
		conn.Close(status, reason)
		cancel()
		<-errCh
		<-errCh
		return
	}

	cancel()
	<-errCh
	<-errCh
	h.hub.Disconnect(teardownCtx, sess)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) rejectConn(ctx context.Context, conn *websocket.Conn, err error) {
	var ae *core.AuthError
	if errors.As(err, &ae) {
		h.log.Info().Str("kind", ae.Kind.String()).Msg("ws authentication failed")
		_ = wsjson.Write(ctx, conn, errorFrame(&proto.Error{
			Code:    core.ErrCodeUnauthorized,
			Message: "authentication failed",
		}))
		conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	h.log.Error().Err(err).Msg("ws admission failed")
	_ = wsjson.Write(ctx, conn, errorFrame(&proto.Error{
		Code:    core.ErrCodeInternal,
		Message: "internal error",
	}))
	conn.Close(websocket.StatusInternalError, "internal error")
}

// pushError queues an error frame for the client.
func pushError(client *core.Client, code, msg string) {
	client.Push(&core.Event{Kind: core.EventError, Error: &core.CoreError{Code: code, Message: msg}})
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			pushError(client, core.ErrCodeRateLimited, "too many messages")
			continue
		}

		var inbound proto.Inbound
		if typ != websocket.MessageText {
			pushError(client, core.ErrCodeBadRequest, "text frames only")
			continue
		}
		if err := json.Unmarshal(data, &inbound); err != nil {
			logger.Debug().Err(err).Msg("malformed ws frame")
			pushError(client, core.ErrCodeBadRequest, "malformed frame")
			continue
		}

		cmd, perr := h.mapper.toCommand(inbound)
		if perr != nil {
			pushError(client, perr.Code, perr.Message)
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Kicked():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event := <-client.Events:
			if event == nil {
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-client.Kicked():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
