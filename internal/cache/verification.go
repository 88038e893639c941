package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerificationStore holds one-time email verification codes. Keys are scoped
// per user, so a reissue overwrites the previous code.
type VerificationStore interface {
	Set(ctx context.Context, userID int64, code string, ttl time.Duration) error
	// Get returns ("", nil) when no live code exists for the user.
	Get(ctx context.Context, userID int64) (string, error)
	Del(ctx context.Context, userID int64) error
}

type verificationStore struct {
	client *redis.Client
}

func NewVerificationStore(client *redis.Client) VerificationStore {
	return &verificationStore{client: client}
}

func (s *verificationStore) Set(ctx context.Context, userID int64, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(userID), code, ttl).Err()
}

func (s *verificationStore) Get(ctx context.Context, userID int64) (string, error) {
	code, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *verificationStore) Del(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}

func (s *verificationStore) key(userID int64) string {
	return fmt.Sprintf("verification:%d", userID)
}
