// Package answer は回答の投稿・参照・編集・削除のドメインロジックを提供する。
package answer

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

// Service は回答管理のサービス層。
type Service struct {
	tx      repository.Transactor
	authz   *authz.Authorizer
	answers repository.AnswerRepository
	clock   clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	tx repository.Transactor,
	az *authz.Authorizer,
	answers repository.AnswerRepository,
	clk clock.Clock,
) *Service {
	return &Service{
		tx:      tx,
		authz:   az,
		answers: answers,
		clock:   clk,
	}
}

// Create は質問に回答を投稿する。
// セッションを確認した後、親質問が存在しなければInvalidQuestionを返し、回答は作成しない。
func (s *Service) Create(ctx context.Context, token, questionID, content string) (*model.Answer, error) {
	var created *model.Answer
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.authz.RequireActiveSession(ctx, token, authz.ActionPostAnswer)
		if err != nil {
			return err
		}
		q, err := s.authz.ResolveQuestion(ctx, questionID, authz.QuestionInvalidForAnswer)
		if err != nil {
			return err
		}
		if err := model.RequireContent("answer", content); err != nil {
			return err
		}

		a := &model.Answer{
			ID:         uuid.New().String(),
			Content:    content,
			UserID:     p.UserID(),
			QuestionID: q.ID,
			CreatedAt:  s.clock.Now(),
		}
		if err := s.answers.Create(ctx, a); err != nil {
			return fmt.Errorf("回答の作成に失敗しました: %w", err)
		}
		created = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("answer created",
		slog.String("answer_id", created.ID),
		slog.String("question_id", created.QuestionID),
		slog.String("user_id", created.UserID),
	)
	return created, nil
}

// Edit は回答本文を編集する。所有者のみ実行できる。
func (s *Service) Edit(ctx context.Context, token, answerID, content string) (*model.Answer, error) {
	var edited *model.Answer
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.authz.RequireActiveSession(ctx, token, authz.ActionEditAnswer)
		if err != nil {
			return err
		}
		a, err := s.authz.ResolveAnswer(ctx, answerID)
		if err != nil {
			return err
		}
		if err := authz.RequireOwner(p, a.UserID, authz.DenyEditAnswer); err != nil {
			return err
		}
		if err := model.RequireContent("content", content); err != nil {
			return err
		}

		if err := s.answers.UpdateContent(ctx, a.ID, content); err != nil {
			return fmt.Errorf("回答の更新に失敗しました: %w", err)
		}
		a.Content = content
		edited = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("answer edited", slog.String("answer_id", edited.ID))
	return edited, nil
}

// Delete は回答を削除する。所有者または管理者のみ実行できる。
func (s *Service) Delete(ctx context.Context, token, answerID string) (*model.Answer, error) {
	var deleted *model.Answer
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.authz.RequireActiveSession(ctx, token, authz.ActionDeleteAnswer)
		if err != nil {
			return err
		}
		a, err := s.authz.ResolveAnswer(ctx, answerID)
		if err != nil {
			return err
		}
		if err := authz.RequireOwnerOrAdmin(p, a.UserID, authz.DenyDeleteAnswer); err != nil {
			return err
		}

		if err := s.answers.DeleteByID(ctx, a.ID); err != nil {
			return fmt.Errorf("回答の削除に失敗しました: %w", err)
		}
		deleted = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("answer deleted", slog.String("answer_id", deleted.ID))
	return deleted, nil
}

// ListByQuestion は質問に対する全回答を返す。
func (s *Service) ListByQuestion(ctx context.Context, token, questionID string) ([]model.AnswerWithQuestion, error) {
	if _, err := s.authz.RequireActiveSession(ctx, token, authz.ActionGetAnswers); err != nil {
		return nil, err
	}
	if _, err := s.authz.ResolveQuestion(ctx, questionID, authz.QuestionNotFoundForList); err != nil {
		return nil, err
	}

	answers, err := s.answers.ListByQuestionID(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("回答一覧の取得に失敗しました: %w", err)
	}
	return answers, nil
}
