package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/messaging"
)

type createConversationReq struct {
	ParticipantID uint64 `json:"participant_id" binding:"required"`
}

// CreateConversation is idempotent: repeated calls for the same counterpart
// return the same conversation.
func (h *Handler) CreateConversation(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conv, err := h.Messaging.GetOrCreate(c.Request.Context(), uid, req.ParticipantID)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, conv)
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	previews, err := h.Messaging.ListConversationsFor(c.Request.Context(), uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, previews)
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	convID, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
		return
	}

	msgs, err := h.Messaging.ListForConversation(c.Request.Context(), convID, uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, msgs)
}

type sendMessageReq struct {
	Content     string                      `json:"content"`
	Type        string                      `json:"type"`
	ReplyToID   *uint64                     `json:"reply_to_id"`
	Attachments []messaging.AttachmentInput `json:"attachments"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	convID, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.Messaging.Send(c.Request.Context(), convID, uid, req.Content, req.Type, req.Attachments, req.ReplyToID)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, msg)
}

type editMessageReq struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) EditMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	msgID, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid message id")
		return
	}

	var req editMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	msg, err := h.Messaging.Edit(c.Request.Context(), msgID, uid, req.Content)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	msgID, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid message id")
		return
	}

	if err := h.Messaging.SoftDelete(c.Request.Context(), msgID, uid); err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, gin.H{"deleted": true})
}

func (h *Handler) ArchiveConversation(c *gin.Context) {
	h.flagConversation(c, h.Messaging.Archive)
}

func (h *Handler) BlockConversation(c *gin.Context) {
	h.flagConversation(c, h.Messaging.Block)
}

func (h *Handler) UnblockConversation(c *gin.Context) {
	h.flagConversation(c, h.Messaging.Unblock)
}

func (h *Handler) flagConversation(c *gin.Context, op func(ctx context.Context, conversationID, actingUserID uint64) (*messaging.Conversation, error)) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	convID, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
		return
	}

	conv, err := op(c.Request.Context(), convID, uid)
	if err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, conv)
}

func (h *Handler) MarkConversationRead(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	convID, ok := idParam(c, "id")
	if !ok {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid conversation id")
		return
	}

	if err := h.Messaging.MarkRead(c.Request.Context(), convID, uid); err != nil {
		failDomain(c, err)
		return
	}
	common.OK(c, gin.H{"read": true})
}
