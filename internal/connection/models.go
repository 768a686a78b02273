package connection

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Connection is the mutual-consent relationship between two users. The
// unique index on PairKey is what enforces at-most-one connection per
// unordered pair; the application check alone would leave a race window.
type Connection struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RequesterID uint64    `gorm:"index;not null" json:"requester_id"`
	RecipientID uint64    `gorm:"index;not null" json:"recipient_id"`
	PairKey     string    `gorm:"size:48;uniqueIndex;not null" json:"-"`
	Status      Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Connection) TableName() string { return "connections" }

// PairKey canonicalizes an unordered user pair so that (a,b) and (b,a)
// collide on the same unique index entry.
func PairKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// OtherParticipant returns the counterpart of userID, or 0 if userID is not
// part of the connection.
func (c *Connection) OtherParticipant(userID uint64) uint64 {
	switch userID {
	case c.RequesterID:
		return c.RecipientID
	case c.RecipientID:
		return c.RequesterID
	}
	return 0
}
