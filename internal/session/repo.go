package session

import (
	"context"
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

func (r *Repo) Create(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).Preload("Feedback").First(&s, id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TransitionCAS moves a session from exactly `from` to `to`. Concurrent
// conflicting transitions race on the status predicate; the loser sees
// RowsAffected == 0 and must re-read to classify the failure.
func (r *Repo) TransitionCAS(ctx context.Context, id uint64, from, to Status) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) AppendFeedback(ctx context.Context, f *Feedback) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *Repo) ListFor(ctx context.Context, userID uint64, f Filter, now time.Time) ([]Session, error) {
	q := r.db.WithContext(ctx).Preload("Feedback").
		Where("initiator_id = ? OR recipient_id = ?", userID, userID)

	switch f {
	case FilterPending:
		q = q.Where("status = ? AND date >= ?", StatusPending, now).Order("date ASC")
	case FilterAccepted, FilterUpcoming:
		q = q.Where("status = ? AND date >= ?", StatusAccepted, now).Order("date ASC")
	case FilterHistory:
		q = q.Where("status IN ?", []Status{StatusCompleted, StatusCancelled, StatusRejected}).Order("date DESC")
	default:
		q = q.Order("date DESC")
	}

	var sessions []Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *Repo) CountUpcoming(ctx context.Context, userID uint64, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Session{}).
		Where("(initiator_id = ? OR recipient_id = ?) AND status = ? AND date >= ?",
			userID, userID, StatusAccepted, now).
		Count(&count).Error
	return count, err
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
