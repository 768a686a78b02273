package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/config"
	"github.com/mentormesh/mentormesh/internal/connection"
	"github.com/mentormesh/mentormesh/internal/email"
	"github.com/mentormesh/mentormesh/internal/httpapi/middleware"
	"github.com/mentormesh/mentormesh/internal/messaging"
	"github.com/mentormesh/mentormesh/internal/notify"
	"github.com/mentormesh/mentormesh/internal/session"
	"github.com/mentormesh/mentormesh/internal/store/redisstore"
	"github.com/mentormesh/mentormesh/internal/ws"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	Hub         *ws.Hub
	SMTPSetting email.SMTPConfig

	Connections *connection.Service
	Messaging   *messaging.Service
	Sessions    *session.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, hub *ws.Hub, dispatcher *notify.Dispatcher) *Handler {
	connSvc := connection.NewService(connection.NewRepo(db), hub, dispatcher, cfg.FrontendURL)
	msgSvc := messaging.NewService(messaging.NewRepo(db), hub, connSvc)
	sessSvc := session.NewService(session.NewRepo(db), hub, dispatcher, connSvc, cfg.FrontendURL)

	return &Handler{
		DB:    db,
		Cfg:   cfg,
		Redis: rds,
		Hub:   hub,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
		Connections: connSvc,
		Messaging:   msgSvc,
		Sessions:    sessSvc,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// failDomain maps the domain error taxonomy onto the response envelope.
func failDomain(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40400, err.Error())
	case errors.Is(err, common.ErrForbidden):
		common.Fail(c, http.StatusForbidden, 40300, err.Error())
	case errors.Is(err, common.ErrConflict):
		common.Fail(c, http.StatusConflict, 40900, err.Error())
	case errors.Is(err, common.ErrInvalidArgument):
		common.Fail(c, http.StatusBadRequest, 40000, err.Error())
	case errors.Is(err, common.ErrInvalidTransition):
		common.Fail(c, http.StatusBadRequest, 40001, err.Error())
	default:
		log.Printf("unclassified error path=%s err=%v", c.FullPath(), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
