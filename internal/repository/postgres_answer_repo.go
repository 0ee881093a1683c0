package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/quora/internal/model"
)

// PostgresAnswerRepo はPostgreSQLを使用した回答リポジトリ。
type PostgresAnswerRepo struct {
	db *sql.DB
}

// NewPostgresAnswerRepo はPostgresAnswerRepoを生成する。
func NewPostgresAnswerRepo(db *sql.DB) *PostgresAnswerRepo {
	return &PostgresAnswerRepo{db: db}
}

// FindByID は指定IDの回答を取得する。見つからない場合はnilを返す。
func (r *PostgresAnswerRepo) FindByID(ctx context.Context, id string) (*model.Answer, error) {
	if !isUUID(id) {
		return nil, nil
	}
	a := &model.Answer{}
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, content, user_id, question_id, created_at FROM answers WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Content, &a.UserID, &a.QuestionID, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find answer: %w", err)
	}
	return a, nil
}

// Create は回答を作成する。
func (r *PostgresAnswerRepo) Create(ctx context.Context, a *model.Answer) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO answers (id, content, user_id, question_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Content, a.UserID, a.QuestionID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	return nil
}

// ListByQuestionID は指定質問の回答を質問本文付きで作成日時の昇順に返す。
func (r *PostgresAnswerRepo) ListByQuestionID(ctx context.Context, questionID string) ([]model.AnswerWithQuestion, error) {
	result := make([]model.AnswerWithQuestion, 0)
	if !isUUID(questionID) {
		return result, nil
	}
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT a.id, a.content, a.user_id, a.question_id, a.created_at, q.content
		 FROM answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.question_id = $1
		 ORDER BY a.created_at, a.id`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var aw model.AnswerWithQuestion
		if err := rows.Scan(&aw.ID, &aw.Content, &aw.UserID, &aw.QuestionID, &aw.CreatedAt, &aw.QuestionContent); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		result = append(result, aw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate answers: %w", err)
	}
	return result, nil
}

// UpdateContent は回答本文を更新する。
func (r *PostgresAnswerRepo) UpdateContent(ctx context.Context, id, content string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE answers SET content = $2 WHERE id = $1`,
		id, content,
	)
	if err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの回答を削除する。
func (r *PostgresAnswerRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM answers WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete answer: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AnswerRepository = (*PostgresAnswerRepo)(nil)
