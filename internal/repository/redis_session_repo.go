package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/quora/internal/model"
)

const (
	sessionKeyPrefix      = "quora:session:"
	userSessionsKeyPrefix = "quora:user_sessions:"
)

// redisSession はRedisに保存するセッションのJSON表現。
type redisSession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Token     string     `json:"token"`
	LoginAt   time.Time  `json:"login_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	LogoutAt  *time.Time `json:"logout_at,omitempty"`
}

// RedisSessionRepo はRedisを使用したセッションリポジトリ。
// キーのTTLは有効期限までの残り時間に保持期間を加えた値とし、
// 期限切れ直後のトークンもSignedOutとして判定できるようにする。
type RedisSessionRepo struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

// NewRedisSessionRepo はRedisSessionRepoを生成する。
func NewRedisSessionRepo(client *redis.Client, retention time.Duration) (*RedisSessionRepo, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisSessionRepo{
		client:    client,
		retention: retention,
		now:       time.Now,
	}, nil
}

// Create はセッションを作成する。
func (r *RedisSessionRepo) Create(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(redisSession{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		LoginAt:   session.LoginAt,
		ExpiresAt: session.ExpiresAt,
		LogoutAt:  session.LogoutAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := session.ExpiresAt.Sub(r.now()) + r.retention
	if ttl <= 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.Token, data, ttl)
	pipe.SAdd(ctx, userSessionsKeyPrefix+session.UserID, session.Token)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByToken はトークンでセッションを取得する。見つからない場合はnilを返す。
func (r *RedisSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &model.Session{
		ID:        rs.ID,
		UserID:    rs.UserID,
		Token:     rs.Token,
		LoginAt:   rs.LoginAt,
		ExpiresAt: rs.ExpiresAt,
		LogoutAt:  rs.LogoutAt,
	}, nil
}

// MarkLoggedOut はセッションのログアウト日時を設定する。TTLは維持する。
func (r *RedisSessionRepo) MarkLoggedOut(ctx context.Context, token string, at time.Time) error {
	session, err := r.FindByToken(ctx, token)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	session.LogoutAt = &at

	data, err := json.Marshal(redisSession{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		LoginAt:   session.LoginAt,
		ExpiresAt: session.ExpiresAt,
		LogoutAt:  session.LogoutAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+token, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark session logged out: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *RedisSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	setKey := userSessionsKeyPrefix + userID
	tokens, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKeyPrefix+token)
	}
	keys = append(keys, setKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredBefore はRedisのTTLで失効が管理されるため何もしない。
func (r *RedisSessionRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// compile-time interface check
var _ SessionRepository = (*RedisSessionRepo)(nil)
