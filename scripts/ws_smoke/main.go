package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	logpkg "github.com/vovakirdan/ichat-server/internal/log"
	"github.com/vovakirdan/ichat-server/internal/proto"
)

type options struct {
	addr     string
	user     string
	password string
	to       int64
	text     string
	timeout  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "http://localhost:8080", "server base URL")
	flag.StringVar(&opts.user, "user", "tester", "username to log in with")
	flag.StringVar(&opts.password, "password", "password123", "password")
	flag.Int64Var(&opts.to, "to", 0, "friend id to message; 0 only listens")
	flag.StringVar(&opts.text, "text", "hello from smoke test", "message text to send")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	logger := logpkg.New("debug", "console")
	if err := run(opts); err != nil {
		logger.Error().Err(err).Msg("ws_smoke failed")
		os.Exit(1)
	}
}

func run(opts options) error {
	logger := logpkg.New("debug", "console")

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	token, err := login(ctx, opts)
	if err != nil {
		return err
	}

	wsURL := strings.Replace(opts.addr, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if opts.to > 0 {
		data, err := json.Marshal(proto.SendMessageData{To: opts.to, Content: opts.text})
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Event: proto.InboundSendMessage, Data: data}); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	for {
		var frame proto.Inbound
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if opts.to == 0 && ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		logger.Info().Str("event", frame.Event).RawJSON("data", frame.Data).Msg("received")

		switch frame.Event {
		case "message_sent":
			return nil
		case proto.OutboundError:
			return fmt.Errorf("server error: %s", frame.Data)
		}
	}
}

func login(ctx context.Context, opts options) (string, error) {
	body, err := json.Marshal(map[string]string{"username": opts.user, "password": opts.password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.addr+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: unexpected status %s", resp.Status)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return out.Token, nil
}
