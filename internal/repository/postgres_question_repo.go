package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/quora/internal/model"
)

// PostgresQuestionRepo はPostgreSQLを使用した質問リポジトリ。
type PostgresQuestionRepo struct {
	db *sql.DB
}

// NewPostgresQuestionRepo はPostgresQuestionRepoを生成する。
func NewPostgresQuestionRepo(db *sql.DB) *PostgresQuestionRepo {
	return &PostgresQuestionRepo{db: db}
}

// FindByID は指定IDの質問を取得する。見つからない場合はnilを返す。
func (r *PostgresQuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	if !isUUID(id) {
		return nil, nil
	}
	q := &model.Question{}
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, content, user_id, created_at FROM questions WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.Content, &q.UserID, &q.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find question: %w", err)
	}
	return q, nil
}

// Create は質問を作成する。
func (r *PostgresQuestionRepo) Create(ctx context.Context, q *model.Question) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO questions (id, content, user_id, created_at) VALUES ($1, $2, $3, $4)`,
		q.ID, q.Content, q.UserID, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// ListAll は全質問を作成日時の昇順で返す。
func (r *PostgresQuestionRepo) ListAll(ctx context.Context) ([]*model.Question, error) {
	return r.list(ctx,
		`SELECT id, content, user_id, created_at FROM questions ORDER BY created_at, id`,
	)
}

// ListByUserID は指定ユーザーの質問を作成日時の昇順で返す。
func (r *PostgresQuestionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Question, error) {
	if !isUUID(userID) {
		return []*model.Question{}, nil
	}
	return r.list(ctx,
		`SELECT id, content, user_id, created_at FROM questions WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
}

func (r *PostgresQuestionRepo) list(ctx context.Context, query string, args ...any) ([]*model.Question, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := make([]*model.Question, 0)
	for rows.Next() {
		q := &model.Question{}
		if err := rows.Scan(&q.ID, &q.Content, &q.UserID, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return questions, nil
}

// UpdateContent は質問本文を更新する。
func (r *PostgresQuestionRepo) UpdateContent(ctx context.Context, id, content string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE questions SET content = $2 WHERE id = $1`,
		id, content,
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの質問を削除する。紐づく回答はCASCADE削除される。
func (r *PostgresQuestionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM questions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

// compile-time interface check
var _ QuestionRepository = (*PostgresQuestionRepo)(nil)
