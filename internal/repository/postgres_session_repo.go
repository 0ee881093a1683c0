package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/quora/internal/model"
)

// PostgresSessionRepo はPostgreSQLのuser_authテーブルを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO user_auth (id, user_id, access_token, login_at, expires_at, logout_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.Token, session.LoginAt, session.ExpiresAt, session.LogoutAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByToken はトークンでセッションを取得する。見つからない場合はnilを返す。
// 期限切れ・ログアウト済みのレコードも返す。
func (r *PostgresSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	session := &model.Session{}
	var logoutAt sql.NullTime
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, user_id, access_token, login_at, expires_at, logout_at
		 FROM user_auth
		 WHERE access_token = $1`,
		token,
	).Scan(&session.ID, &session.UserID, &session.Token, &session.LoginAt, &session.ExpiresAt, &logoutAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if logoutAt.Valid {
		t := logoutAt.Time
		session.LogoutAt = &t
	}

	return session, nil
}

// MarkLoggedOut はセッションのログアウト日時を設定する。
func (r *PostgresSessionRepo) MarkLoggedOut(ctx context.Context, token string, at time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE user_auth SET logout_at = $2 WHERE access_token = $1`,
		token, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark session logged out: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM user_auth WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredBefore は有効期限またはサインアウト時刻が指定時刻より前のセッションを削除する。
func (r *PostgresSessionRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM user_auth WHERE expires_at < $1 OR logout_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
