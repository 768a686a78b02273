package connection

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mentormesh/mentormesh/internal/models"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateIfAbsent inserts c and reports whether the insert won. When the pair
// key already exists the racing/earlier connection is returned instead, so
// exactly one connection per pair survives concurrent requests from both
// sides.
func (r *Repo) CreateIfAbsent(ctx context.Context, c *Connection) (created bool, existing *Connection, err error) {
	insertErr := r.db.WithContext(ctx).Create(c).Error
	if insertErr == nil {
		return true, nil, nil
	}

	var found Connection
	getErr := r.db.WithContext(ctx).Where("pair_key = ?", c.PairKey).First(&found).Error
	if getErr == nil {
		return false, &found, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return false, nil, insertErr
	}
	return false, nil, getErr
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Connection, error) {
	var c Connection
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetByPair(ctx context.Context, a, b uint64) (*Connection, error) {
	var c Connection
	if err := r.db.WithContext(ctx).Where("pair_key = ?", PairKey(a, b)).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ResolveCAS flips a pending connection to its terminal status. The status
// predicate in the WHERE clause makes concurrent resolutions race safely:
// only one writer sees RowsAffected == 1.
func (r *Repo) ResolveCAS(ctx context.Context, id uint64, to Status) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Connection{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) ListAccepted(ctx context.Context, userID uint64) ([]Connection, error) {
	var conns []Connection
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? OR recipient_id = ?) AND status = ?", userID, userID, StatusAccepted).
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *Repo) ListPendingForRecipient(ctx context.Context, userID uint64) ([]Connection, error) {
	var conns []Connection
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", userID, StatusPending).
		Order("created_at ASC").
		Find(&conns).Error
	if err != nil {
		return nil, err
	}
	return conns, nil
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
