package messaging

import (
	"time"

	"github.com/mentormesh/mentormesh/internal/connection"
	"github.com/mentormesh/mentormesh/internal/models"
)

// Conversation is the persistent two-party chat thread. Like connections,
// the unique PairKey is what makes creation idempotent under concurrency.
type Conversation struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	PairKey       string    `gorm:"size:48;uniqueIndex;not null" json:"-"`
	LastMessageID *uint64   `gorm:"index" json:"last_message_id"`
	Archived      bool      `gorm:"not null;default:false" json:"archived"`
	Blocked       bool      `gorm:"not null;default:false" json:"blocked"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants"`
}

func (Conversation) TableName() string { return "conversations" }

// Participant carries the per-user unread counter for one conversation.
type Participant struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID uint64    `gorm:"not null;index:uniq_conv_participant,unique,priority:1" json:"conversation_id"`
	UserID         uint64    `gorm:"not null;index:uniq_conv_participant,unique,priority:2;index" json:"user_id"`
	UnreadCount    int       `gorm:"not null;default:0" json:"unread_count"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Participant) TableName() string { return "conversation_participants" }

const (
	TypeText  = "text"
	TypeImage = "image"
	TypeFile  = "file"
)

type Message struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64     `gorm:"index;not null" json:"conversation_id"`
	SenderID       uint64     `gorm:"index;not null" json:"sender_id"`
	RecipientID    uint64     `gorm:"index;not null" json:"recipient_id"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	Type           string     `gorm:"type:varchar(16);not null;default:text" json:"type"`
	ReplyToID      *uint64    `gorm:"index" json:"reply_to_id"`
	EditedAt       *time.Time `json:"edited_at"`
	Deleted        bool       `gorm:"not null;default:false;index" json:"deleted"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`

	Attachments []Attachment `gorm:"foreignKey:MessageID" json:"attachments"`
}

func (Message) TableName() string { return "messages" }

// Attachment is a pre-uploaded file descriptor; upload handling lives
// outside this service.
type Attachment struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID uint64 `gorm:"index;not null" json:"-"`
	URL       string `gorm:"size:255;not null" json:"url"`
	Type      string `gorm:"size:128" json:"type"`
	Name      string `gorm:"size:255" json:"name"`
	Size      int64  `json:"size"`
}

func (Attachment) TableName() string { return "message_attachments" }

// PairKey reuses the connection package's canonical unordered-pair key so
// both tables agree on pair identity.
func PairKey(a, b uint64) string { return connection.PairKey(a, b) }

func (c *Conversation) IsParticipant(userID uint64) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the counterpart of userID, or 0 when userID is
// not in the conversation.
func (c *Conversation) OtherParticipant(userID uint64) uint64 {
	var other uint64
	found := false
	for _, p := range c.Participants {
		if p.UserID == userID {
			found = true
		} else {
			other = p.UserID
		}
	}
	if !found {
		return 0
	}
	return other
}

// ReplyPreview is the embedded summary of a reply target.
type ReplyPreview struct {
	ID       uint64 `json:"id"`
	SenderID uint64 `json:"sender_id"`
	Content  string `json:"content"`
	Deleted  bool   `json:"deleted"`
}

// MessageView is the resolved message shape returned by list/send and pushed
// over the socket.
type MessageView struct {
	Message
	Sender    models.Summary `json:"sender"`
	Recipient models.Summary `json:"recipient"`
	ReplyTo   *ReplyPreview  `json:"reply_to,omitempty"`
}

// ConversationPreview is one row of the caller's inbox listing.
type ConversationPreview struct {
	ConversationID uint64         `json:"conversation_id"`
	Counterpart    models.Summary `json:"counterpart"`
	LastMessage    *Message       `json:"last_message"`
	UnreadCount    int            `json:"unread_count"`
	Archived       bool           `json:"archived"`
	Blocked        bool           `json:"blocked"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
