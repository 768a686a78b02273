package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/config"
	"github.com/mentormesh/mentormesh/internal/httpapi/handlers"
	"github.com/mentormesh/mentormesh/internal/httpapi/middleware"
	"github.com/mentormesh/mentormesh/internal/notify"
	"github.com/mentormesh/mentormesh/internal/store/redisstore"
	"github.com/mentormesh/mentormesh/internal/ws"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, hub *ws.Hub, dispatcher *notify.Dispatcher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, hub, dispatcher)

	r.GET("/ping", h.Ping)

	// captcha + registration + auth
	r.POST("/captcha", h.SendCaptcha)
	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)
	r.GET("/users/:id", h.GetUserByID)

	// realtime channel (token in query, auth handled inside)
	r.GET("/ws/messages", h.HandleWS)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// connections
	authGroup.POST("/connections/request", h.RequestConnection)
	authGroup.PUT("/connections/:id/accept", h.AcceptConnection)
	authGroup.PUT("/connections/:id/reject", h.RejectConnection)
	authGroup.GET("/connections", h.ListConnections)
	authGroup.GET("/connections/pending", h.ListPendingConnections)
	authGroup.GET("/connections/status/:userId", h.GetConnectionStatus)

	// conversations + messages
	authGroup.POST("/messages/conversations", h.CreateConversation)
	authGroup.GET("/messages/conversations", h.ListConversations)
	authGroup.GET("/messages/conversations/:id", h.ListMessages)
	authGroup.POST("/messages/conversations/:id/messages", h.SendMessage)
	authGroup.PUT("/messages/conversations/:id/archive", h.ArchiveConversation)
	authGroup.PUT("/messages/conversations/:id/block", h.BlockConversation)
	authGroup.PUT("/messages/conversations/:id/unblock", h.UnblockConversation)
	authGroup.PUT("/messages/conversations/:id/read", h.MarkConversationRead)
	authGroup.PUT("/messages/:id", h.EditMessage)
	authGroup.DELETE("/messages/:id", h.DeleteMessage)

	// sessions
	authGroup.POST("/sessions", h.CreateSession)
	authGroup.GET("/sessions", h.ListSessions)
	authGroup.GET("/sessions/upcoming/count", h.CountUpcomingSessions)
	authGroup.GET("/sessions/:id", h.GetSession)
	authGroup.PUT("/sessions/:id/status", h.UpdateSessionStatus)
	authGroup.POST("/sessions/:id/feedback", h.AddSessionFeedback)

	return r
}
