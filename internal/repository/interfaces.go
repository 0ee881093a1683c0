// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/quora/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するセッション、質問、回答はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッション（アクセストークン）の永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByToken はトークンでセッションを取得する。見つからない場合はnilを返す。
	// 期限切れ・ログアウト済みのセッションもそのまま返す。有効性の判定は呼び出し側が行う。
	FindByToken(ctx context.Context, token string) (*model.Session, error)

	// MarkLoggedOut はセッションのログアウト日時を設定する。
	MarkLoggedOut(ctx context.Context, token string, at time.Time) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpiredBefore は有効期限またはサインアウト時刻が指定時刻より前のセッションを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// QuestionRepository は質問データの永続化インターフェース。
type QuestionRepository interface {
	// FindByID は指定IDの質問を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Question, error)

	// Create は質問を作成する。
	Create(ctx context.Context, question *model.Question) error

	// ListAll は全質問を作成日時の昇順で返す。
	ListAll(ctx context.Context) ([]*model.Question, error)

	// ListByUserID は指定ユーザーの質問を作成日時の昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Question, error)

	// UpdateContent は質問本文を更新する。
	UpdateContent(ctx context.Context, id, content string) error

	// DeleteByID は指定IDの質問を削除する。紐づく回答はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// AnswerRepository は回答データの永続化インターフェース。
type AnswerRepository interface {
	// FindByID は指定IDの回答を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Answer, error)

	// Create は回答を作成する。
	Create(ctx context.Context, answer *model.Answer) error

	// ListByQuestionID は指定質問の回答を質問本文付きで作成日時の昇順に返す。
	ListByQuestionID(ctx context.Context, questionID string) ([]model.AnswerWithQuestion, error)

	// UpdateContent は回答本文を更新する。
	UpdateContent(ctx context.Context, id, content string) error

	// DeleteByID は指定IDの回答を削除する。
	DeleteByID(ctx context.Context, id string) error
}

// Transactor は複数のリポジトリ操作を1つのトランザクションで実行する。
// fnに渡されるコンテキストを使ったリポジトリ呼び出しは同一トランザクションに参加する。
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
