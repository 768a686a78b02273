package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/common"
	"github.com/mentormesh/mentormesh/internal/ws"
)

const (
	MaxAttachments    = 5
	MaxAttachmentSize = 10 << 20 // 10MB per file
)

type Fanout interface {
	Publish(userID uint64, ev ws.Event)
}

// ConnectionChecker gates conversation creation on an accepted connection.
// Satisfied by *connection.Service.
type ConnectionChecker interface {
	Connected(ctx context.Context, a, b uint64) (bool, error)
}

type Service struct {
	repo        *Repo
	fanout      Fanout
	connections ConnectionChecker
}

func NewService(repo *Repo, fanout Fanout, connections ConnectionChecker) *Service {
	return &Service{repo: repo, fanout: fanout, connections: connections}
}

type AttachmentInput struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// GetOrCreate returns the conversation for the pair, creating it on first
// use. Requires an accepted connection between the two users.
func (s *Service) GetOrCreate(ctx context.Context, userID, otherUserID uint64) (*Conversation, error) {
	if userID == otherUserID {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", common.ErrInvalidArgument)
	}

	if _, err := s.repo.GetUser(ctx, otherUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: participant", common.ErrNotFound)
		}
		return nil, err
	}

	connected, err := s.connections.Connected(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, fmt.Errorf("%w: users are not connected", common.ErrForbidden)
	}

	conv, _, err := s.repo.GetOrCreateConversation(ctx, userID, otherUserID)
	return conv, err
}

// Send persists a message, updates the conversation bookkeeping and pushes
// the resolved message to the recipient's room.
func (s *Service) Send(ctx context.Context, conversationID, senderID uint64, content, msgType string, attachments []AttachmentInput, replyToID *uint64) (*MessageView, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation", common.ErrNotFound)
		}
		return nil, err
	}
	if !conv.IsParticipant(senderID) {
		return nil, fmt.Errorf("%w: not a participant", common.ErrForbidden)
	}

	if msgType == "" {
		msgType = TypeText
	}
	switch msgType {
	case TypeText, TypeImage, TypeFile:
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", common.ErrInvalidArgument, msgType)
	}

	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, fmt.Errorf("%w: empty message", common.ErrInvalidArgument)
	}
	if len(attachments) > MaxAttachments {
		return nil, fmt.Errorf("%w: at most %d attachments", common.ErrInvalidArgument, MaxAttachments)
	}
	for _, a := range attachments {
		if a.Size > MaxAttachmentSize {
			return nil, fmt.Errorf("%w: attachment %q exceeds 10MB", common.ErrInvalidArgument, a.Name)
		}
	}

	if replyToID != nil {
		target, err := s.repo.GetMessage(ctx, *replyToID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: reply target", common.ErrNotFound)
			}
			return nil, err
		}
		if target.ConversationID != conversationID {
			return nil, fmt.Errorf("%w: reply target belongs to another conversation", common.ErrInvalidArgument)
		}
	}

	recipientID := conv.OtherParticipant(senderID)

	msg := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Content:        content,
		Type:           msgType,
		ReplyToID:      replyToID,
	}
	for _, a := range attachments {
		msg.Attachments = append(msg.Attachments, Attachment{
			URL:  a.URL,
			Type: a.Type,
			Name: a.Name,
			Size: a.Size,
		})
	}

	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLastMessage(ctx, conversationID, msg.ID); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementUnread(ctx, conversationID, recipientID); err != nil {
		return nil, err
	}

	view, err := s.resolveMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(recipientID, ws.Event{Type: ws.EventNewMessage, Data: view})

	return view, nil
}

// Edit replaces the content of the sender's own message and stamps EditedAt.
// CreatedAt is untouched. A soft-deleted message is gone for everyone,
// including its sender: editing it would resurrect the content.
func (s *Service) Edit(ctx context.Context, messageID, actingUserID uint64, newContent string) (*MessageView, error) {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message", common.ErrNotFound)
		}
		return nil, err
	}
	if msg.Deleted {
		return nil, fmt.Errorf("%w: message", common.ErrNotFound)
	}
	if msg.SenderID != actingUserID {
		return nil, fmt.Errorf("%w: only the sender can edit a message", common.ErrForbidden)
	}
	if strings.TrimSpace(newContent) == "" {
		return nil, fmt.Errorf("%w: empty content", common.ErrInvalidArgument)
	}

	now := time.Now()
	if err := s.repo.UpdateMessageContent(ctx, messageID, newContent, now); err != nil {
		return nil, err
	}
	msg.Content = newContent
	msg.EditedAt = &now

	view, err := s.resolveMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.fanout.Publish(msg.RecipientID, ws.Event{Type: ws.EventMessageEdited, Data: view})

	return view, nil
}

// SoftDelete marks the sender's own message deleted. The event carries only
// the id, never the content.
func (s *Service) SoftDelete(ctx context.Context, messageID, actingUserID uint64) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: message", common.ErrNotFound)
		}
		return err
	}
	if msg.SenderID != actingUserID {
		return fmt.Errorf("%w: only the sender can delete a message", common.ErrForbidden)
	}

	if err := s.repo.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}

	s.fanout.Publish(msg.RecipientID, ws.Event{
		Type: ws.EventMessageDeleted,
		Data: map[string]any{"id": messageID},
	})

	return nil
}

// ListForConversation returns the visible messages oldest first, resolved
// with participant summaries and reply previews.
func (s *Service) ListForConversation(ctx context.Context, conversationID, requestingUserID uint64) ([]MessageView, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation", common.ErrNotFound)
		}
		return nil, err
	}
	if !conv.IsParticipant(requestingUserID) {
		return nil, fmt.Errorf("%w: not a participant", common.ErrForbidden)
	}

	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userIDs := make([]uint64, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		userIDs = append(userIDs, p.UserID)
	}
	users, err := s.repo.GetUsers(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	replyIDs := make([]uint64, 0)
	for _, m := range msgs {
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}
	replies, err := s.repo.GetMessages(ctx, replyIDs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		v := MessageView{Message: m}
		if u, ok := users[m.SenderID]; ok {
			v.Sender = u.Summary()
		}
		if u, ok := users[m.RecipientID]; ok {
			v.Recipient = u.Summary()
		}
		if m.ReplyToID != nil {
			if target, ok := replies[*m.ReplyToID]; ok {
				v.ReplyTo = replyPreview(&target)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// ListConversationsFor aggregates the caller's inbox: counterpart summary,
// last message and unread count per conversation, most recent first.
func (s *Service) ListConversationsFor(ctx context.Context, userID uint64) ([]ConversationPreview, error) {
	convs, err := s.repo.ListConversationsFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	counterpartIDs := make([]uint64, 0, len(convs))
	lastMsgIDs := make([]uint64, 0, len(convs))
	for _, c := range convs {
		if other := c.OtherParticipant(userID); other != 0 {
			counterpartIDs = append(counterpartIDs, other)
		}
		if c.LastMessageID != nil {
			lastMsgIDs = append(lastMsgIDs, *c.LastMessageID)
		}
	}

	users, err := s.repo.GetUsers(ctx, counterpartIDs)
	if err != nil {
		return nil, err
	}
	lastMsgs, err := s.repo.GetMessages(ctx, lastMsgIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationPreview, 0, len(convs))
	for _, c := range convs {
		p := ConversationPreview{
			ConversationID: c.ID,
			Archived:       c.Archived,
			Blocked:        c.Blocked,
			UpdatedAt:      c.UpdatedAt,
		}
		if u, ok := users[c.OtherParticipant(userID)]; ok {
			p.Counterpart = u.Summary()
		}
		if c.LastMessageID != nil {
			if m, ok := lastMsgs[*c.LastMessageID]; ok && !m.Deleted {
				p.LastMessage = &m
			}
		}
		for _, part := range c.Participants {
			if part.UserID == userID {
				p.UnreadCount = part.UnreadCount
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// MarkRead zeroes the caller's unread counter.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID uint64) error {
	if _, err := s.participantGate(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.repo.ResetUnread(ctx, conversationID, userID)
}

func (s *Service) Archive(ctx context.Context, conversationID, actingUserID uint64) (*Conversation, error) {
	return s.setFlag(ctx, conversationID, actingUserID, "archived", true)
}

func (s *Service) Block(ctx context.Context, conversationID, actingUserID uint64) (*Conversation, error) {
	return s.setFlag(ctx, conversationID, actingUserID, "blocked", true)
}

func (s *Service) Unblock(ctx context.Context, conversationID, actingUserID uint64) (*Conversation, error) {
	return s.setFlag(ctx, conversationID, actingUserID, "blocked", false)
}

// IsParticipant is the authorization gate used by the route layer.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID uint64) (bool, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: conversation", common.ErrNotFound)
		}
		return false, err
	}
	return conv.IsParticipant(userID), nil
}

func (s *Service) setFlag(ctx context.Context, conversationID, actingUserID uint64, column string, value bool) (*Conversation, error) {
	conv, err := s.participantGate(ctx, conversationID, actingUserID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetFlag(ctx, conversationID, column, value); err != nil {
		return nil, err
	}
	switch column {
	case "archived":
		conv.Archived = value
	case "blocked":
		conv.Blocked = value
	}
	return conv, nil
}

func (s *Service) participantGate(ctx context.Context, conversationID, userID uint64) (*Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation", common.ErrNotFound)
		}
		return nil, err
	}
	if !conv.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant", common.ErrForbidden)
	}
	return conv, nil
}

func (s *Service) resolveMessage(ctx context.Context, m *Message) (*MessageView, error) {
	users, err := s.repo.GetUsers(ctx, []uint64{m.SenderID, m.RecipientID})
	if err != nil {
		return nil, err
	}

	v := &MessageView{Message: *m}
	if u, ok := users[m.SenderID]; ok {
		v.Sender = u.Summary()
	}
	if u, ok := users[m.RecipientID]; ok {
		v.Recipient = u.Summary()
	}
	if m.ReplyToID != nil {
		if target, err := s.repo.GetMessage(ctx, *m.ReplyToID); err == nil {
			v.ReplyTo = replyPreview(target)
		}
	}
	return v, nil
}

func replyPreview(m *Message) *ReplyPreview {
	p := &ReplyPreview{
		ID:       m.ID,
		SenderID: m.SenderID,
		Deleted:  m.Deleted,
	}
	if !m.Deleted {
		p.Content = m.Content
	}
	return p
}
