// Package memstore はリポジトリのインメモリ実装を提供する。
// STORAGE_DRIVER=memory での起動と、ハンドラの結合テストで使用する。
package memstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/quora/internal/model"
	"github.com/hitoshi/quora/internal/repository"
)

type txKey struct{}

// Store は全エンティティを保持するインメモリデータベース。
// WithinTx の実行中はストア全体を排他ロックし、エラー時はスナップショットに戻す。
type Store struct {
	mu        sync.Mutex
	users     map[string]*model.User
	sessions  map[string]*model.Session // key: token
	questions map[string]*model.Question
	answers   map[string]*model.Answer
}

// New は空のStoreを生成する。
func New() *Store {
	return &Store{
		users:     make(map[string]*model.User),
		sessions:  make(map[string]*model.Session),
		questions: make(map[string]*model.Question),
		answers:   make(map[string]*model.Answer),
	}
}

// Users はUserRepositoryを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Sessions はSessionRepositoryを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// Questions はQuestionRepositoryを返す。
func (s *Store) Questions() *QuestionRepo { return &QuestionRepo{s: s} }

// Answers はAnswerRepositoryを返す。
func (s *Store) Answers() *AnswerRepo { return &AnswerRepo{s: s} }

// lock はトランザクション外であればストアをロックし、解除関数を返す。
func (s *Store) lock(ctx context.Context) func() {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	users     map[string]*model.User
	sessions  map[string]*model.Session
	questions map[string]*model.Question
	answers   map[string]*model.Answer
}

// WithinTx はfnを排他的に実行する。fnがエラーを返した場合は変更を破棄する。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		users:     cloneValues(s.users),
		sessions:  cloneValues(s.sessions),
		questions: cloneValues(s.questions),
		answers:   cloneValues(s.answers),
	}

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.users = snap.users
		s.sessions = snap.sessions
		s.questions = snap.questions
		s.answers = snap.answers
		return err
	}
	return nil
}

// cloneValues はマップとその値を複製する。
func cloneValues[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

// --- UserRepository ---

// UserRepo はインメモリのユーザーリポジトリ。
type UserRepo struct{ s *Store }

// FindByID は指定IDのユーザーを取得する。
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	defer r.s.lock(ctx)()
	if u, ok := r.s.users[id]; ok {
		c := *u
		return &c, nil
	}
	return nil, nil
}

// FindByUsername はユーザー名でユーザーを検索する。
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

// Create はユーザーを作成する。
func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	defer r.s.lock(ctx)()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	c := *user
	r.s.users[user.ID] = &c
	return nil
}

// DeleteByID は指定IDのユーザーと、そのセッション・質問・回答を削除する。
func (r *UserRepo) DeleteByID(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	delete(r.s.users, id)
	maps.DeleteFunc(r.s.sessions, func(_ string, s *model.Session) bool { return s.UserID == id })
	maps.DeleteFunc(r.s.questions, func(_ string, q *model.Question) bool { return q.UserID == id })
	maps.DeleteFunc(r.s.answers, func(_ string, a *model.Answer) bool {
		_, parentAlive := r.s.questions[a.QuestionID]
		return a.UserID == id || !parentAlive
	})
	return nil
}

// --- SessionRepository ---

// SessionRepo はインメモリのセッションリポジトリ。
type SessionRepo struct{ s *Store }

// Create はセッションを作成する。
func (r *SessionRepo) Create(ctx context.Context, session *model.Session) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.sessions[session.Token]; ok {
		return errors.New("session token already exists")
	}
	c := *session
	r.s.sessions[session.Token] = &c
	return nil
}

// FindByToken はトークンでセッションを取得する。
func (r *SessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	defer r.s.lock(ctx)()
	if s, ok := r.s.sessions[token]; ok {
		c := *s
		return &c, nil
	}
	return nil, nil
}

// MarkLoggedOut はセッションのログアウト日時を設定する。
func (r *SessionRepo) MarkLoggedOut(ctx context.Context, token string, at time.Time) error {
	defer r.s.lock(ctx)()
	if s, ok := r.s.sessions[token]; ok {
		t := at
		s.LogoutAt = &t
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *SessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	defer r.s.lock(ctx)()
	maps.DeleteFunc(r.s.sessions, func(_ string, s *model.Session) bool { return s.UserID == userID })
	return nil
}

// DeleteExpiredBefore は有効期限またはサインアウト時刻が指定時刻より前のセッションを削除する。
func (r *SessionRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	maps.DeleteFunc(r.s.sessions, func(_ string, s *model.Session) bool {
		if s.ExpiresAt.Before(before) || (s.LogoutAt != nil && s.LogoutAt.Before(before)) {
			n++
			return true
		}
		return false
	})
	return n, nil
}

// --- QuestionRepository ---

// QuestionRepo はインメモリの質問リポジトリ。
type QuestionRepo struct{ s *Store }

// FindByID は指定IDの質問を取得する。
func (r *QuestionRepo) FindByID(ctx context.Context, id string) (*model.Question, error) {
	defer r.s.lock(ctx)()
	if q, ok := r.s.questions[id]; ok {
		c := *q
		return &c, nil
	}
	return nil, nil
}

// Create は質問を作成する。
func (r *QuestionRepo) Create(ctx context.Context, q *model.Question) error {
	defer r.s.lock(ctx)()
	c := *q
	r.s.questions[q.ID] = &c
	return nil
}

// ListAll は全質問を作成日時の昇順で返す。
func (r *QuestionRepo) ListAll(ctx context.Context) ([]*model.Question, error) {
	defer r.s.lock(ctx)()
	return r.collect(func(*model.Question) bool { return true }), nil
}

// ListByUserID は指定ユーザーの質問を作成日時の昇順で返す。
func (r *QuestionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Question, error) {
	defer r.s.lock(ctx)()
	return r.collect(func(q *model.Question) bool { return q.UserID == userID }), nil
}

func (r *QuestionRepo) collect(match func(*model.Question) bool) []*model.Question {
	out := make([]*model.Question, 0)
	for _, q := range r.s.questions {
		if match(q) {
			c := *q
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateContent は質問本文を更新する。
func (r *QuestionRepo) UpdateContent(ctx context.Context, id, content string) error {
	defer r.s.lock(ctx)()
	if q, ok := r.s.questions[id]; ok {
		q.Content = content
	}
	return nil
}

// DeleteByID は指定IDの質問と、その回答を削除する。
func (r *QuestionRepo) DeleteByID(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	delete(r.s.questions, id)
	maps.DeleteFunc(r.s.answers, func(_ string, a *model.Answer) bool { return a.QuestionID == id })
	return nil
}

// --- AnswerRepository ---

// AnswerRepo はインメモリの回答リポジトリ。
type AnswerRepo struct{ s *Store }

// FindByID は指定IDの回答を取得する。
func (r *AnswerRepo) FindByID(ctx context.Context, id string) (*model.Answer, error) {
	defer r.s.lock(ctx)()
	if a, ok := r.s.answers[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, nil
}

// Create は回答を作成する。親質問が存在しない場合はエラーを返す。
func (r *AnswerRepo) Create(ctx context.Context, a *model.Answer) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.questions[a.QuestionID]; !ok {
		return fmt.Errorf("question not found: %s", a.QuestionID)
	}
	c := *a
	r.s.answers[a.ID] = &c
	return nil
}

// ListByQuestionID は指定質問の回答を質問本文付きで作成日時の昇順に返す。
func (r *AnswerRepo) ListByQuestionID(ctx context.Context, questionID string) ([]model.AnswerWithQuestion, error) {
	defer r.s.lock(ctx)()
	out := make([]model.AnswerWithQuestion, 0)
	q, ok := r.s.questions[questionID]
	if !ok {
		return out, nil
	}
	for _, a := range r.s.answers {
		if a.QuestionID == questionID {
			out = append(out, model.AnswerWithQuestion{Answer: *a, QuestionContent: q.Content})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateContent は回答本文を更新する。
func (r *AnswerRepo) UpdateContent(ctx context.Context, id, content string) error {
	defer r.s.lock(ctx)()
	if a, ok := r.s.answers[id]; ok {
		a.Content = content
	}
	return nil
}

// DeleteByID は指定IDの回答を削除する。
func (r *AnswerRepo) DeleteByID(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	delete(r.s.answers, id)
	return nil
}

// Ensure interfaces are met.
var (
	_ repository.Transactor         = (*Store)(nil)
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.SessionRepository  = (*SessionRepo)(nil)
	_ repository.QuestionRepository = (*QuestionRepo)(nil)
	_ repository.AnswerRepository   = (*AnswerRepo)(nil)
)
