package session

import (
	"time"

	"github.com/mentormesh/mentormesh/internal/models"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

const (
	TypeOneOnOne = "one-on-one"
	TypeGroup    = "group"
)

const (
	MinDuration = 30  // minutes
	MaxDuration = 180 // minutes
)

// Session is a proposed scheduled meeting between two connected users. The
// room token is allocated once at creation and never changes.
type Session struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	InitiatorID uint64    `gorm:"index;not null" json:"initiator_id"`
	RecipientID uint64    `gorm:"index;not null" json:"recipient_id"`
	Date        time.Time `gorm:"index;not null" json:"date"`
	Duration    int       `gorm:"not null" json:"duration"`
	Topic       string    `gorm:"size:190;not null" json:"topic"`
	Type        string    `gorm:"type:varchar(16);not null" json:"type"`
	Status      Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	Notes       string    `gorm:"type:text" json:"notes"`
	Description string    `gorm:"type:text" json:"description"`
	RoomToken   string    `gorm:"size:26;uniqueIndex;not null" json:"room_token"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Feedback []Feedback `gorm:"foreignKey:SessionID" json:"feedback"`
}

func (Session) TableName() string { return "sessions" }

type Feedback struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID uint64    `gorm:"index;not null" json:"-"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func (Feedback) TableName() string { return "session_feedback" }

func (s *Session) IsParticipant(userID uint64) bool {
	return userID == s.InitiatorID || userID == s.RecipientID
}

func (s *Session) OtherParticipant(userID uint64) uint64 {
	switch userID {
	case s.InitiatorID:
		return s.RecipientID
	case s.RecipientID:
		return s.InitiatorID
	}
	return 0
}

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// predecessor maps each reachable target status to the single status it may
// be entered from. pending has no entry: nothing transitions back into it.
var predecessor = map[Status]Status{
	StatusAccepted:  StatusPending,
	StatusRejected:  StatusPending,
	StatusCancelled: StatusAccepted,
	StatusCompleted: StatusAccepted,
}

// View is a session resolved with both participants' summaries.
type View struct {
	Session
	Initiator models.Summary `json:"initiator"`
	Recipient models.Summary `json:"recipient"`
}

type Filter string

const (
	FilterAll      Filter = "all"
	FilterPending  Filter = "pending"
	FilterAccepted Filter = "accepted"
	FilterHistory  Filter = "history"
	FilterUpcoming Filter = "upcoming"
)
