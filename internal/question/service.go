// Package question は質問の投稿・参照・編集・削除のドメインロジックを提供する。
package question

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/quora/internal/authz"
	"github.com/hitoshi/quora/internal/common/clock"
	"github.com/hitoshi/quora/internal/model"
	"github.com/hitoshi/quora/internal/repository"
)

// Service は質問管理のサービス層。
// すべての操作でセッションの有効性を先に確認し、次に対象コンテンツ、最後に所有権を判定する。
type Service struct {
	tx        repository.Transactor
	authz     *authz.Authorizer
	questions repository.QuestionRepository
	users     repository.UserRepository
	clock     clock.Clock

	// emptyAsNotFound がtrueの場合、ユーザー別一覧が空であればUserNotFoundを返す。
	// falseの場合は存在しないユーザーのみUserNotFoundとし、質問0件のユーザーには空配列を返す。
	emptyAsNotFound bool
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	tx repository.Transactor,
	az *authz.Authorizer,
	questions repository.QuestionRepository,
	users repository.UserRepository,
	clk clock.Clock,
	emptyAsNotFound bool,
) *Service {
	return &Service{
		tx:              tx,
		authz:           az,
		questions:       questions,
		users:           users,
		clock:           clk,
		emptyAsNotFound: emptyAsNotFound,
	}
}

// Create は質問を投稿する。本文の空チェックはセッション確認の後に行う。
func (s *Service) Create(ctx context.Context, token, content string) (*model.Question, error) {
	var created *model.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.authz.RequireActiveSession(ctx, token, authz.ActionPostQuestion)
		if err != nil {
			return err
		}
		if err := model.RequireContent("content", content); err != nil {
			return err
		}

		q := &model.Question{
			ID:        uuid.New().String(),
			Content:   content,
			UserID:    p.UserID(),
			CreatedAt: s.clock.Now(),
		}
		if err := s.questions.Create(ctx, q); err != nil {
			return fmt.Errorf("質問の作成に失敗しました: %w", err)
		}
		created = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("question created",
		slog.String("question_id", created.ID),
		slog.String("user_id", created.UserID),
	)
	return created, nil
}

// ListAll は全ての質問を返す。
func (s *Service) ListAll(ctx context.Context, token string) ([]*model.Question, error) {
	if _, err := s.authz.RequireActiveSession(ctx, token, authz.ActionGetAllQuestions); err != nil {
		return nil, err
	}

	questions, err := s.questions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("質問一覧の取得に失敗しました: %w", err)
	}
	return questions, nil
}

// ListByUser は指定ユーザーが投稿した質問を返す。
func (s *Service) ListByUser(ctx context.Context, token, userID string) ([]*model.Question, error) {
	if _, err := s.authz.RequireActiveSession(ctx, token, authz.ActionGetUserQuestions); err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの質問一覧の取得に失敗しました: %w", err)
	}
	if len(questions) > 0 {
		return questions, nil
	}

	if s.emptyAsNotFound {
		return nil, model.NewUserNotFoundError(authz.UserNotFoundForQuestions)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(authz.UserNotFoundForQuestions)
	}
	return questions, nil
}

// Edit は質問本文を編集する。所有者のみ実行できる。
func (s *Service) Edit(ctx context.Context, token, questionID, content string) (*model.Question, error) {
	var edited *model.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.authz.RequireActiveSession(ctx, token, authz.ActionEditQuestion)
		if err != nil {
			return err
		}
		q, err := s.authz.ResolveQuestion(ctx, questionID, authz.QuestionNotFound)
		if err != nil {
			return err
		}
		if err := authz.RequireOwner(p, q.UserID, authz.DenyEditQuestion); err != nil {
			return err
		}
		if err := model.RequireContent("content", content); err != nil {
			return err
		}

		if err := s.questions.UpdateContent(ctx, q.ID, content); err != nil {
			return fmt.Errorf("質問の更新に失敗しました: %w", err)
		}
		q.Content = content
		edited = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("question edited", slog.String("question_id", edited.ID))
	return edited, nil
}

// Delete は質問を削除する。所有者または管理者のみ実行できる。
// 質問に紐づく回答も削除される。
func (s *Service) Delete(ctx context.Context, token, questionID string) (*model.Question, error) {
	var deleted *model.Question
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.authz.RequireActiveSession(ctx, token, authz.ActionDeleteQuestion)
		if err != nil {
			return err
		}
		q, err := s.authz.ResolveQuestion(ctx, questionID, authz.QuestionNotFound)
		if err != nil {
			return err
		}
		if err := authz.RequireOwnerOrAdmin(p, q.UserID, authz.DenyDeleteQuestion); err != nil {
			return err
		}

		if err := s.questions.DeleteByID(ctx, q.ID); err != nil {
			return fmt.Errorf("質問の削除に失敗しました: %w", err)
		}
		deleted = q
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("question deleted", slog.String("question_id", deleted.ID))
	return deleted, nil
}
