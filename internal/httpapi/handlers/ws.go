package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mentormesh/mentormesh/internal/auth"
	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/ws"
)

// clientEvent is what clients send upstream. Everything a client can push
// is advisory (typing, presence) or a room join; state changes go through
// the REST surface.
type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleWS upgrades the connection and joins the caller to their own room.
// Browser websockets cannot set Authorization headers, so the token rides
// in the query string.
func (h *Handler) HandleWS(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		common.Fail(c, http.StatusUnauthorized, 40100, "missing token")
		return
	}

	userID, err := auth.ParseJWT(tokenStr, h.Cfg.JWTSecret)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
		return
	}

	opts := &websocket.AcceptOptions{}
	// Dev only: frontend dev servers run on a different origin.
	if h.Cfg.WSInsecureSkipVerify {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		return // Accept already wrote the error response
	}

	client := h.Hub.AddClient(userID, conn)
	defer h.Hub.RemoveClient(client)

	if h.Redis != nil {
		_ = h.Redis.SetOnline(c.Request.Context(), userID, true)
		defer func() {
			_ = h.Redis.SetOnline(context.Background(), userID, false)
		}()
	}

	h.readLoop(c.Request.Context(), conn, userID)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, userID uint64) {
	for {
		var ev clientEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return
		}

		switch ev.Type {
		case "joinRoom":
			// Rooms are keyed by the authenticated user id and joined on
			// connect; a join for any other room is ignored.

		case "typing":
			var t struct {
				To             uint64 `json:"to"`
				ConversationID uint64 `json:"conversation_id"`
			}
			if err := json.Unmarshal(ev.Data, &t); err != nil || t.To == 0 {
				continue
			}
			h.Hub.Publish(t.To, ws.Event{
				Type: ws.EventTyping,
				Data: map[string]any{
					"from":            userID,
					"conversation_id": t.ConversationID,
				},
			})

		case "setOnlineStatus":
			var online bool
			if err := json.Unmarshal(ev.Data, &online); err != nil {
				continue
			}
			if h.Redis != nil {
				if err := h.Redis.SetOnline(ctx, userID, online); err != nil {
					log.Printf("presence update failed user=%d err=%v", userID, err)
				}
			}

		default:
			// unknown client events are dropped
		}
	}
}
