package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/session"
)

func (h *Handler) CreateSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req session.ProposeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sess, err := h.Sessions.Propose(c.Request.Context(), uid, req)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, sess)
}

type updateSessionStatusReq struct {
	Status session.Status `json:"status" binding:"required"`
}

func (h *Handler) UpdateSessionStatus(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid session id")
		return
	}

	var req updateSessionStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sess, err := h.Sessions.SetStatus(c.Request.Context(), id, uid, req.Status)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, sess)
}

// ListSessions serves ?filter=all|pending|accepted|history|upcoming.
func (h *Handler) ListSessions(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	views, err := h.Sessions.ListFor(c.Request.Context(), uid, session.Filter(c.Query("filter")))
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, views)
}

func (h *Handler) CountUpcomingSessions(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	count, err := h.Sessions.CountUpcoming(c.Request.Context(), uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, gin.H{"count": count})
}

func (h *Handler) GetSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid session id")
		return
	}

	view, err := h.Sessions.Get(c.Request.Context(), id, uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, view)
}

type feedbackReq struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

func (h *Handler) AddSessionFeedback(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid session id")
		return
	}

	var req feedbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	sess, err := h.Sessions.AddFeedback(c.Request.Context(), id, uid, req.Rating, req.Comment)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, sess)
}
