// Package user はユーザープロフィール参照と管理者によるユーザー削除のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/quora/internal/authz"
	"github.com/hitoshi/quora/internal/model"
	"github.com/hitoshi/quora/internal/repository"
)

// Service はユーザー管理のサービス層。
type Service struct {
	tx          repository.Transactor
	authz       *authz.Authorizer
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	tx repository.Transactor,
	az *authz.Authorizer,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
) *Service {
	return &Service{
		tx:          tx,
		authz:       az,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
	}
}

// Profile は指定ユーザーのプロフィールを返す。
func (s *Service) Profile(ctx context.Context, token, userID string) (*model.User, error) {
	if _, err := s.authz.RequireActiveSession(ctx, token, authz.ActionGetUserProfile); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(authz.UserNotFoundForProfile)
	}
	return user, nil
}

// AdminDelete は管理者が指定ユーザーを削除する。
// ユーザーの削除（CASCADE: user_auth, questions, answers）をコミットした後に
// トランザクション外のセッションストアから残りのセッションを消す。
func (s *Service) AdminDelete(ctx context.Context, token, userID string) (*model.User, error) {
	var deleted *model.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.authz.RequireActiveSession(ctx, token, authz.ActionDeleteUser)
		if err != nil {
			return err
		}
		if err := authz.RequireAdmin(p, authz.DenyDeleteUser); err != nil {
			return err
		}

		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
		}
		if user == nil {
			return model.NewUserNotFoundError(authz.UserNotFoundForDelete)
		}

		slog.Info("deleting user",
			slog.String("user_id", userID),
			slog.String("admin_id", p.UserID()),
		)
		if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
			return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
		}
		deleted = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	// ユーザーが存在しないセッションはNotSignedInとして扱われるため、失敗しても削除結果は変わらない
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		slog.Warn("failed to delete sessions of deleted user",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("user deleted", slog.String("user_id", userID))
	return deleted, nil
}
