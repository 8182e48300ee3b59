package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	stdhttp "net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ichat-server/internal/config"
	"github.com/vovakirdan/ichat-server/internal/store"
	"github.com/vovakirdan/ichat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/ichat-server/internal/transport/http"
)

func TestGracefulShutdownPersistsOffline(t *testing.T) {
	req := require.New(t)

	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "ichat.db")
	cfg.MetricsEnabled = false
	cfg.ShutdownTimeout = 2 * time.Second
	logger := zerolog.Nop()

	a, err := New(&cfg, &logger)
	req.NoError(err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- a.Serve(ctx, ln) }()

	body, err := json.Marshal(transporthttp.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	req.NoError(err)
	resp, err := stdhttp.Post(base+"/api/auth/register", "application/json", bytes.NewReader(body))
	req.NoError(err)
	var auth transporthttp.AuthResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&auth))
	resp.Body.Close()
	req.Equal(stdhttp.StatusCreated, resp.StatusCode)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, "ws://"+ln.Addr().String()+"/ws?token="+auth.Token, nil)
	req.NoError(err)
	defer conn.CloseNow()

	req.Eventually(func() bool { return a.hub.OnlineCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	user, err := a.store.GetUserByID(context.Background(), auth.User.ID)
	req.NoError(err)
	req.Equal(store.UserStatusOnline, user.Status)

	cancel()
	select {
	case err := <-served:
		req.NoError(err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	reopened, err := sqlite.New(cfg.DatabasePath)
	req.NoError(err)
	defer reopened.Close()

	user, err = reopened.GetUserByID(context.Background(), auth.User.ID)
	req.NoError(err)
	req.Equal(store.UserStatusOffline, user.Status)
}
