package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/auth"
	"github.com/vovakirdan/ichat-server/internal/config"
	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/service/friends"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// NewServer builds the HTTP server with REST, websocket and operational routes.
// metricsHandler is mounted at /metrics when non-nil.
func NewServer(
	hub *core.Hub,
	authService *auth.Service,
	st store.Store,
	cfg *config.Config,
	logger *zerolog.Logger,
	metricsHandler stdhttp.Handler,
) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, authService, st, cfg, logger, metricsHandler),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter mounts /ws on a plain mux and everything else on a gin engine.
// The websocket handler hijacks the connection after writing the upgrade
// response, which gin's response writer refuses.
func NewRouter(
	hub *core.Hub,
	authService *auth.Service,
	st store.Store,
	cfg *config.Config,
	logger *zerolog.Logger,
	metricsHandler stdhttp.Handler,
) *stdhttp.ServeMux {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	friendsService := friends.New(st, hub, logger.With().Str("component", "friends").Logger())

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, friendsService, hub, logger)
	friendsHandlers := NewFriendsHandlers(friendsService, logger)
	messageHandlers := NewMessageHandlers(st, cfg.HistoryLimit, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"status": "ok", "online": hub.OnlineCount()})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", apiHandlers.Register)
		authGroup.POST("/login", apiHandlers.Login)
	}

	protected := router.Group("/api")
	protected.Use(AuthMiddleware(authService, logger))
	{
		protected.GET("/users/me", userHandlers.Me)
		protected.GET("/users/search", userHandlers.SearchUsers)
		protected.POST("/users/friend-request", friendsHandlers.SendRequest)
		protected.GET("/users/friend-requests", friendsHandlers.ListPendingRequests)
		protected.POST("/users/friend-request/respond", friendsHandlers.Respond)
		protected.GET("/users/friends", friendsHandlers.ListFriends)

		protected.GET("/messages/history/:userId", messageHandlers.History)
		protected.POST("/messages/mark-read", messageHandlers.MarkRead)
		protected.GET("/messages/unread-count", messageHandlers.UnreadCount)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, cfg, logger))
	mux.Handle("/", router)
	return mux
}
