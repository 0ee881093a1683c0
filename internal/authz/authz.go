// Package authz はアクセストークンの検証とコンテンツ所有者の権限判定を提供する。
// HTTPには依存せず、判定結果は*model.APIErrorとして返す。
package authz

import (
	"context"
	"fmt"

	"github.com/hitoshi/quora/internal/common/clock"
	"github.com/hitoshi/quora/internal/model"
)

// SessionFinder はトークンからセッションを検索する。
// 見つからない場合は nil, nil を返す。
type SessionFinder interface {
	FindByToken(ctx context.Context, token string) (*model.Session, error)
}

// UserFinder はIDからユーザーを検索する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// QuestionFinder はIDから質問を検索する。
type QuestionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Question, error)
}

// AnswerFinder はIDから回答を検索する。
type AnswerFinder interface {
	FindByID(ctx context.Context, id string) (*model.Answer, error)
}

// Principal は有効なセッションから解決された操作主体。
type Principal struct {
	Session *model.Session
	User    *model.User
}

// UserID は操作主体のユーザーIDを返す。
func (p *Principal) UserID() string {
	return p.User.ID
}

// IsAdmin は操作主体が管理者かどうかを返す。
func (p *Principal) IsAdmin() bool {
	return p.User.Role == model.RoleAdmin
}

// Authorizer はリクエストの認可判定を行う。
type Authorizer struct {
	sessions  SessionFinder
	users     UserFinder
	questions QuestionFinder
	answers   AnswerFinder
	clock     clock.Clock
	observe   func(ctx context.Context, p *Principal)
}

// NewAuthorizer はAuthorizerを生成する。
func NewAuthorizer(sessions SessionFinder, users UserFinder, questions QuestionFinder, answers AnswerFinder, clk clock.Clock) *Authorizer {
	return &Authorizer{
		sessions:  sessions,
		users:     users,
		questions: questions,
		answers:   answers,
		clock:     clk,
	}
}

// OnAuthenticated は操作主体の解決に成功するたびに呼ばれる関数を登録する。
// リクエストログへのユーザーID付与に使う。
func (a *Authorizer) OnAuthenticated(fn func(ctx context.Context, p *Principal)) {
	a.observe = fn
}

// Authenticate はトークンに対応するセッションを返す。
// セッションが存在しない場合はNotSignedInを返す。有効性は判定しない。
func (a *Authorizer) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, model.NewNotSignedInError()
	}
	session, err := a.sessions.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewNotSignedInError()
	}
	return session, nil
}

// RequireActiveSession はトークンが有効なセッションを指していることを確認し、操作主体を返す。
// ログアウト済み、または有効期限が現在時刻以前のセッションはSignedOutとなる。
// actionはSignedOut時のメッセージに付加する案内文。
func (a *Authorizer) RequireActiveSession(ctx context.Context, token, action string) (*Principal, error) {
	session, err := a.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !session.IsActive(a.clock.Now()) {
		return nil, model.NewSignedOutError(action)
	}

	user, err := a.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	// ユーザー削除とセッション削除の間に残ったトークン
	if user == nil {
		return nil, model.NewNotSignedInError()
	}

	p := &Principal{Session: session, User: user}
	if a.observe != nil {
		a.observe(ctx, p)
	}
	return p, nil
}

// ResolveQuestion はIDから質問を取得する。存在しない場合はInvalidQuestionを返す。
// notFoundMessageは操作ごとのエラーメッセージ。
func (a *Authorizer) ResolveQuestion(ctx context.Context, id, notFoundMessage string) (*model.Question, error) {
	q, err := a.questions.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("質問の取得に失敗しました: %w", err)
	}
	if q == nil {
		return nil, model.NewInvalidQuestionError(notFoundMessage)
	}
	return q, nil
}

// ResolveAnswer はIDから回答を取得する。存在しない場合はAnswerNotFoundを返す。
func (a *Authorizer) ResolveAnswer(ctx context.Context, id string) (*model.Answer, error) {
	ans, err := a.answers.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("回答の取得に失敗しました: %w", err)
	}
	if ans == nil {
		return nil, model.NewAnswerNotFoundError()
	}
	return ans, nil
}

// RequireOwner は操作主体がコンテンツの所有者であることを確認する。
// 管理者であっても所有者でなければForbiddenとなる。
func RequireOwner(p *Principal, ownerID, denial string) error {
	if p.UserID() != ownerID {
		return model.NewForbiddenError(denial)
	}
	return nil
}

// RequireOwnerOrAdmin は操作主体がコンテンツの所有者または管理者であることを確認する。
func RequireOwnerOrAdmin(p *Principal, ownerID, denial string) error {
	if p.UserID() == ownerID || p.IsAdmin() {
		return nil
	}
	return model.NewForbiddenError(denial)
}

// RequireAdmin は操作主体が管理者であることを確認する。
func RequireAdmin(p *Principal, denial string) error {
	if !p.IsAdmin() {
		return model.NewForbiddenError(denial)
	}
	return nil
}
