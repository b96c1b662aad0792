package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const currentSessionKey = "wallet:session:current"

// Store persists the single active wallet session so it survives process
// restarts.
type Store interface {
	Save(ctx context.Context, sess *Session, ttl time.Duration) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

type redisStore struct {
	client *redis.Client
}

// NewRedisStore builds a redis-backed session store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, currentSessionKey, payload, ttl).Err()
}

func (s *redisStore) Load(ctx context.Context) (*Session, error) {
	payload, err := s.client.Get(ctx, currentSessionKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, currentSessionKey).Err()
}
