package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, token, userID string) (*model.User, error)
	AdminDelete(ctx context.Context, token, userID string) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	responder
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, rs responder) *UserHandler {
	return &UserHandler{service: service, responder: rs}
}

// userDetailsResponse はユーザープロフィールのレスポンス。パスワードハッシュは含めない。
type userDetailsResponse struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	UserName      string `json:"user_name"`
	EmailAddress  string `json:"email_address"`
	Country       string `json:"country"`
	AboutMe       string `json:"about_me"`
	DOB           string `json:"dob"`
	ContactNumber string `json:"contact_number"`
}

// Profile はユーザープロフィールを返す。
// GET /userprofile/{userId}
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, userDetailsResponse{
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		UserName:      user.Username,
		EmailAddress:  user.Email,
		Country:       user.Country,
		AboutMe:       user.AboutMe,
		DOB:           user.DOB,
		ContactNumber: user.ContactNumber,
	})
}

// AdminDelete は管理者がユーザーを削除する。
// DELETE /admin/user/{userId}
func (h *UserHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.AdminDelete(r.Context(), middleware.TokenFromContext(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("user", "delete")
	middleware.WriteJSON(w, http.StatusOK, statusResponse{ID: user.ID, Status: "USER SUCCESSFULLY DELETED"})
}
