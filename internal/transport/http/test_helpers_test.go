package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/auth"
	"github.com/vovakirdan/ichat-server/internal/config"
	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/store/sqlite"
)

type testServer struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
	cfg   *config.Config
}

type testUser struct {
	ID    int64
	Name  string
	Token string
}

func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := createTestStore(t)

	cfg := config.Default()
	cfg.EvictionTimeout = time.Second
	cfg.RateLimitPerMinute = 0
	for _, fn := range mutate {
		fn(&cfg)
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)
	logger := zerolog.Nop()

	hub := core.NewHub(core.Options{
		Verifier:        auth.NewVerifier(jwtConfig, st),
		Store:           st,
		EvictionTimeout: cfg.EvictionTimeout,
		Logger:          logger,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(NewRouter(hub, authService, st, &cfg, &logger, nil))
	t.Cleanup(ts.Close)
	t.Cleanup(cancel)

	return &testServer{ts: ts, hub: hub, store: st, cfg: &cfg}
}

// doJSON performs a request and decodes the JSON response into out when non-nil.
func (s *testServer) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := stdhttp.NewRequest(method, s.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) register(t *testing.T, username string) testUser {
	t.Helper()

	var resp AuthResponse
	status := s.doJSON(t, stdhttp.MethodPost, "/api/auth/register", "", RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	}, &resp)
	if status != stdhttp.StatusCreated {
		t.Fatalf("register %s: status %d", username, status)
	}
	return testUser{ID: resp.User.ID, Name: username, Token: resp.Token}
}

// befriend makes a and b friends through the REST API.
func (s *testServer) befriend(t *testing.T, a, b testUser) {
	t.Helper()

	var fr FriendRequestResponse
	if status := s.doJSON(t, stdhttp.MethodPost, "/api/users/friend-request", a.Token,
		SendFriendRequestRequest{UserID: b.ID}, &fr); status != stdhttp.StatusCreated {
		t.Fatalf("send friend request: status %d", status)
	}

	accept := true
	if status := s.doJSON(t, stdhttp.MethodPost, "/api/users/friend-request/respond", b.Token,
		RespondFriendRequestRequest{RequestID: fr.ID, Accept: &accept}, nil); status != stdhttp.StatusOK {
		t.Fatalf("accept friend request: status %d", status)
	}
}

func (s *testServer) wsURL() string {
	return strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws"
}

func (s *testServer) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, s.wsURL(), &websocket.DialOptions{
		HTTPHeader: stdhttp.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readUntil reads frames until one named event arrives and decodes its data into out.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, out any) {
	t.Helper()

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event != event {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(f.Data, out); err != nil {
				t.Fatalf("decode %s: %v", event, err)
			}
		}
		return
	}
}

// waitOnline polls until the hub reports n sessions.
func (s *testServer) waitOnline(t *testing.T, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.hub.OnlineCount() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d online sessions, got %d", n, s.hub.OnlineCount())
}
