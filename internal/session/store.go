package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

// Record is what the server remembers about an issued session. Role is
// a cached copy from issue time; the authentication middleware re-reads
// the account and revokes the session when the stored role drifts.
type Record struct {
	SessionID  string     `json:"session_id"`
	AccountID  int64      `json:"account_id"`
	TelegramID int64      `json:"telegram_id"`
	Role       model.Role `json:"role"`
	IssuedAt   time.Time  `json:"issued_at"`
}

// Store persists session records keyed by token hash.
type Store interface {
	Put(ctx context.Context, tokenHash string, rec Record) error
	Get(ctx context.Context, tokenHash string) (Record, error)
	Delete(ctx context.Context, tokenHash string) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(tokenHash string) string {
	return "session:" + tokenHash
}

func (s *RedisStore) Put(ctx context.Context, tokenHash string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// Sessions live until revoked; no TTL.
	if err := s.client.Set(ctx, sessionKey(tokenHash), payload, 0).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, tokenHash string) (Record, error) {
	payload, err := s.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, model.ErrUnauthenticated
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode session: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, sessionKey(tokenHash)).Err()
}
