package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/connection"
)

type requestConnectionReq struct {
	RecipientID uint64 `json:"recipient_id" binding:"required"`
}

func (h *Handler) RequestConnection(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req requestConnectionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conn, err := h.Connections.Request(c.Request.Context(), uid, req.RecipientID)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, conn)
}

func (h *Handler) AcceptConnection(c *gin.Context) {
	h.resolveConnection(c, connection.StatusAccepted)
}

func (h *Handler) RejectConnection(c *gin.Context) {
	h.resolveConnection(c, connection.StatusRejected)
}

func (h *Handler) resolveConnection(c *gin.Context, decision connection.Status) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid connection id")
		return
	}

	conn, err := h.Connections.Resolve(c.Request.Context(), id, uid, decision)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, conn)
}

// ListConnections returns the de-duplicated counterpart users across the
// caller's accepted connections.
func (h *Handler) ListConnections(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	users, err := h.Connections.ListAccepted(c.Request.Context(), uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, users)
}

func (h *Handler) ListPendingConnections(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	pending, err := h.Connections.ListPending(c.Request.Context(), uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, pending)
}

func (h *Handler) GetConnectionStatus(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	otherID, ok := idParam(c, "userId")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	status, err := h.Connections.Status(c.Request.Context(), uid, otherID)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, gin.H{"status": status})
}
