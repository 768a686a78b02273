package messaging

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// GetOrCreateConversation is the idempotent pair lookup/insert. The unique
// pair-key index decides races: the loser of a concurrent create re-reads
// and both callers converge on the same row.
func (r *Repo) GetOrCreateConversation(ctx context.Context, a, b uint64) (conv *Conversation, created bool, err error) {
	key := PairKey(a, b)

	existing, err := r.getConversationByPairKey(ctx, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	fresh := &Conversation{PairKey: key}
	insertErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fresh).Error; err != nil {
			return err
		}
		parts := []Participant{
			{ConversationID: fresh.ID, UserID: a},
			{ConversationID: fresh.ID, UserID: b},
		}
		return tx.Create(&parts).Error
	})
	if insertErr == nil {
		conv, err := r.GetConversation(ctx, fresh.ID)
		return conv, true, err
	}

	// Lost the race on the unique pair key: somebody else created it.
	existing, getErr := r.getConversationByPairKey(ctx, key)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, insertErr
	}
	return nil, false, getErr
}

func (r *Repo) getConversationByPairKey(ctx context.Context, key string) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).Preload("Participants").
		Where("pair_key = ?", key).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetConversation(ctx context.Context, id uint64) (*Conversation, error) {
	var c Conversation
	err := r.db.WithContext(ctx).Preload("Participants").First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) UpdateLastMessage(ctx context.Context, conversationID, messageID uint64) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"last_message_id": messageID,
			"updated_at":      time.Now(),
		}).Error
}

// IncrementUnread bumps the counter atomically in SQL; read-modify-write in
// the application would drop increments under concurrent sends.
func (r *Repo) IncrementUnread(ctx context.Context, conversationID, userID uint64) error {
	return r.db.WithContext(ctx).Model(&Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

func (r *Repo) ResetUnread(ctx context.Context, conversationID, userID uint64) error {
	return r.db.WithContext(ctx).Model(&Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("unread_count", 0).Error
}

func (r *Repo) SetFlag(ctx context.Context, conversationID uint64, column string, value bool) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update(column, value).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) GetMessage(ctx context.Context, id uint64) (*Message, error) {
	var m Message
	err := r.db.WithContext(ctx).Preload("Attachments").First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repo) UpdateMessageContent(ctx context.Context, id uint64, content string, editedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"content":   content,
			"edited_at": editedAt,
		}).Error
}

// SoftDeleteMessage flips the flag; the row stays so the id remains valid
// for event correlation.
func (r *Repo) SoftDeleteMessage(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("deleted", true).Error
}

// ListMessages returns non-deleted messages oldest first.
func (r *Repo) ListMessages(ctx context.Context, conversationID uint64) ([]Message, error) {
	var msgs []Message
	err := r.db.WithContext(ctx).Preload("Attachments").
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) ListConversationsFor(ctx context.Context, userID uint64) ([]Conversation, error) {
	var parts []Participant
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&parts).Error; err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.ConversationID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var convs []Conversation
	err := r.db.WithContext(ctx).Preload("Participants").
		Where("id IN ?", ids).
		Order("updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *Repo) GetMessages(ctx context.Context, ids []uint64) (map[uint64]Message, error) {
	out := make(map[uint64]Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).Preload("Attachments").Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}

func (r *Repo) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) GetUsers(ctx context.Context, ids []uint64) (map[uint64]models.User, error) {
	out := make(map[uint64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
