// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// ErrorKind はAPIエラーの抽象的な種別を表す。
// HTTPステータスへの対応付けはハンドラ層のポリシーが決める。
type ErrorKind string

const (
	KindNotSignedIn          ErrorKind = "not_signed_in"
	KindSignedOut            ErrorKind = "signed_out"
	KindInvalidQuestion      ErrorKind = "invalid_question"
	KindAnswerNotFound       ErrorKind = "answer_not_found"
	KindUserNotFound         ErrorKind = "user_not_found"
	KindForbidden            ErrorKind = "forbidden"
	KindSignUpRestricted     ErrorKind = "signup_restricted"
	KindAuthenticationFailed ErrorKind = "authentication_failed"
	KindSignOutRestricted    ErrorKind = "signout_restricted"
	KindValidation           ErrorKind = "validation"
)

// APIError は統一エラーフォーマットを表す。
// クライアントには Code と Message のみを返す。
type APIError struct {
	Kind    ErrorKind // エラー種別
	Code    string    // エラーコード（例: ATHR-001）
	Message string    // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotSignedIn       = "ATHR-001"
	ErrCodeSignedOut         = "ATHR-002"
	ErrCodeForbidden         = "ATHR-003"
	ErrCodeInvalidQuestion   = "QUES-001"
	ErrCodeAnswerNotFound    = "ANS-001"
	ErrCodeUserNotFound      = "USR-001"
	ErrCodeUsernameTaken     = "SGR-001"
	ErrCodeEmailTaken        = "SGR-002"
	ErrCodeUsernameNotFound  = "ATH-001"
	ErrCodePasswordMismatch  = "ATH-002"
	ErrCodeSignOutRestricted = "SGR-001"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewNotSignedInError はトークンに対応するセッションが存在しない場合のエラーを生成する。
func NewNotSignedInError() *APIError {
	return &APIError{
		Kind:    KindNotSignedIn,
		Code:    ErrCodeNotSignedIn,
		Message: "User has not signed in",
	}
}

// NewSignedOutError はセッションがログアウト済みまたは期限切れの場合のエラーを生成する。
// action は操作ごとの案内文（例: "Sign in first to post a question"）。
func NewSignedOutError(action string) *APIError {
	return &APIError{
		Kind:    KindSignedOut,
		Code:    ErrCodeSignedOut,
		Message: "User is signed out." + action,
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Kind:    KindForbidden,
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

// NewInvalidQuestionError は質問が存在しない場合のエラーを生成する。
func NewInvalidQuestionError(message string) *APIError {
	return &APIError{
		Kind:    KindInvalidQuestion,
		Code:    ErrCodeInvalidQuestion,
		Message: message,
	}
}

// NewAnswerNotFoundError は回答が存在しない場合のエラーを生成する。
func NewAnswerNotFoundError() *APIError {
	return &APIError{
		Kind:    KindAnswerNotFound,
		Code:    ErrCodeAnswerNotFound,
		Message: "Entered answer uuid does not exist",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(message string) *APIError {
	return &APIError{
		Kind:    KindUserNotFound,
		Code:    ErrCodeUserNotFound,
		Message: message,
	}
}

// NewUsernameTakenError はユーザー名が既に使われている場合のエラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Kind:    KindSignUpRestricted,
		Code:    ErrCodeUsernameTaken,
		Message: "Try any other Username, this Username has already been taken",
	}
}

// NewEmailTakenError はメールアドレスが既に登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Kind:    KindSignUpRestricted,
		Code:    ErrCodeEmailTaken,
		Message: "This user has already been registered, try with any other emailId",
	}
}

// NewUsernameNotFoundError はサインイン時にユーザー名が存在しない場合のエラーを生成する。
func NewUsernameNotFoundError() *APIError {
	return &APIError{
		Kind:    KindAuthenticationFailed,
		Code:    ErrCodeUsernameNotFound,
		Message: "This username does not exist",
	}
}

// NewPasswordMismatchError はサインイン時にパスワードが一致しない場合のエラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Kind:    KindAuthenticationFailed,
		Code:    ErrCodePasswordMismatch,
		Message: "Password failed",
	}
}

// NewSignOutRestrictedError は有効なセッションなしでサインアウトしようとした場合のエラーを生成する。
func NewSignOutRestrictedError() *APIError {
	return &APIError{
		Kind:    KindSignOutRestricted,
		Code:    ErrCodeSignOutRestricted,
		Message: "User is not Signed in",
	}
}

// NewValidationError はリクエスト内容が不正な場合のエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidRequest,
		Message: message,
	}
}

// RequireContent は本文が空白のみでないことを確認する。
func RequireContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return NewValidationError(field + " must not be empty")
	}
	return nil
}
