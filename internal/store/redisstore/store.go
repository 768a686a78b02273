package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

const captchaTTL = 10 * time.Minute

func captchaKey(email string) string { return "captcha:" + email }

func (s *Store) SetCaptcha(ctx context.Context, email, code string) error {
	return s.rdb.Set(ctx, captchaKey(email), code, captchaTTL).Err()
}

func (s *Store) GetCaptcha(ctx context.Context, email string) (string, error) {
	return s.rdb.Get(ctx, captchaKey(email)).Result()
}

func (s *Store) DeleteCaptcha(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, captchaKey(email)).Err()
}

// Presence is advisory only. The TTL means a crashed client reads as offline
// after a minute; no business operation consults these keys.
const presenceTTL = 60 * time.Second

func presenceKey(userID uint64) string {
	return "presence:" + strconv.FormatUint(userID, 10)
}

func (s *Store) SetOnline(ctx context.Context, userID uint64, online bool) error {
	if !online {
		return s.rdb.Del(ctx, presenceKey(userID)).Err()
	}
	return s.rdb.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
}

func (s *Store) IsOnline(ctx context.Context, userID uint64) (bool, error) {
	n, err := s.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
