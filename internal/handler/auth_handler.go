package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/quora/internal/auth"
	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
	Signin(ctx context.Context, username, password string) (*model.Session, error)
	Signout(ctx context.Context, token string) (*model.Session, error)
}

// AuthHandler はユーザー登録・サインイン・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	responder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, rs responder) *AuthHandler {
	return &AuthHandler{service: service, responder: rs}
}

// signupRequest はユーザー登録リクエストのボディ。
type signupRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	UserName      string `json:"user_name"`
	EmailAddress  string `json:"email_address"`
	Password      string `json:"password"`
	Country       string `json:"country"`
	AboutMe       string `json:"about_me"`
	DOB           string `json:"dob"`
	ContactNumber string `json:"contact_number"`
}

// Signup は新規ユーザーを登録する。
// POST /user/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeValidationError(w, "request body must be valid JSON")
		return
	}

	user, err := h.service.Signup(r.Context(), auth.SignupInput{
		Username:      req.UserName,
		Email:         req.EmailAddress,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Country:       req.Country,
		AboutMe:       req.AboutMe,
		DOB:           req.DOB,
		ContactNumber: req.ContactNumber,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.metrics.RecordContentMutation("user", "create")
	middleware.WriteJSON(w, http.StatusCreated, statusResponse{ID: user.ID, Status: "USER SUCCESSFULLY REGISTERED"})
}

// Signin はBasic認証の資格情報でサインインし、アクセストークンをaccess-tokenヘッダーで返す。
// POST /user/signin
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		h.writeValidationError(w, "authorization must carry Basic credentials")
		return
	}

	session, err := h.service.Signin(r.Context(), username, password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	middleware.SetUserID(r.Context(), session.UserID)
	w.Header().Set(middleware.AccessTokenHeader, session.Token)
	middleware.WriteJSON(w, http.StatusOK, messageResponse{ID: session.UserID, Message: "SIGNED IN SUCCESSFULLY"})
}

// Signout はアクセストークンのセッションをサインアウトする。
// POST /user/signout
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Signout(r.Context(), middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	middleware.SetUserID(r.Context(), session.UserID)
	middleware.WriteJSON(w, http.StatusOK, messageResponse{ID: session.UserID, Message: "SIGNED OUT SUCCESSFULLY"})
}
