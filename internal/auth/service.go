// Package auth はユーザー登録、サインイン、サインアウトとアクセストークンの発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/quora/internal/common/clock"
	"github.com/hitoshi/quora/internal/model"
	"github.com/hitoshi/quora/internal/repository"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// SignupInput はユーザー登録の入力値。
type SignupInput struct {
	Username      string
	Email         string
	Password      string
	FirstName     string
	LastName      string
	Country       string
	AboutMe       string
	DOB           string
	ContactNumber string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	tx          repository.Transactor
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	clock       clock.Clock
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	tx repository.Transactor,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	clk clock.Clock,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		tx:          tx,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		clock:       clk,
		config:      config,
	}
}

// Signup は新規ユーザーを一般ユーザーとして登録する。
// ユーザー名またはメールアドレスが既に使われている場合はSignUpRestrictedを返す。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, model.NewValidationError("userName, emailAddress and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:            uuid.New().String(),
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  string(hash),
		Role:          model.RoleRegular,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Country:       in.Country,
		AboutMe:       in.AboutMe,
		DOB:           in.DOB,
		ContactNumber: in.ContactNumber,
		CreatedAt:     s.clock.Now(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.userRepo.FindByUsername(ctx, in.Username)
		if err != nil {
			return fmt.Errorf("failed to find user by username: %w", err)
		}
		if existing != nil {
			return model.NewUsernameTakenError()
		}

		existing, err = s.userRepo.FindByEmail(ctx, in.Email)
		if err != nil {
			return fmt.Errorf("failed to find user by email: %w", err)
		}
		if existing != nil {
			return model.NewEmailTakenError()
		}

		if err := s.userRepo.Create(ctx, user); err != nil {
			// 同時登録で一意制約に先に到達した場合
			switch {
			case errors.Is(err, repository.ErrDuplicateUsername):
				return model.NewUsernameTakenError()
			case errors.Is(err, repository.ErrDuplicateEmail):
				return model.NewEmailTakenError()
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Signin はユーザー名とパスワードを検証し、新しいセッションを発行する。
func (s *Service) Signin(ctx context.Context, username, password string) (*model.Session, error) {
	var session *model.Session
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.FindByUsername(ctx, username)
		if err != nil {
			return fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return model.NewUsernameNotFoundError()
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			return model.NewPasswordMismatchError()
		}

		session, err = s.createSession(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user signed in", slog.String("user_id", session.UserID))
	return session, nil
}

// Signout はトークンのセッションにログアウト日時を記録する。
// 有効なセッションでない場合はSignOutRestrictedを返す。
func (s *Service) Signout(ctx context.Context, token string) (*model.Session, error) {
	var session *model.Session
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if token == "" {
			return model.NewSignOutRestrictedError()
		}
		found, err := s.sessionRepo.FindByToken(ctx, token)
		if err != nil {
			return fmt.Errorf("failed to find session: %w", err)
		}
		now := s.clock.Now()
		if found == nil || !found.IsActive(now) {
			return model.NewSignOutRestrictedError()
		}

		if err := s.sessionRepo.MarkLoggedOut(ctx, token, now); err != nil {
			return fmt.Errorf("failed to sign out: %w", err)
		}
		found.LogoutAt = &now
		session = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("user signed out", slog.String("user_id", session.UserID))
	return session, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := s.clock.Now()
	session := &model.Session{
		ID:        uuid.New().String(),
		Token:     token,
		UserID:    userID,
		LoginAt:   now,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateToken は暗号的に安全なアクセストークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
