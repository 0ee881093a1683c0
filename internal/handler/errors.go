// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/quora/internal/metrics"
	"github.com/hitoshi/quora/internal/middleware"
	"github.com/hitoshi/quora/internal/model"
)

// StatusPolicy はエラー種別からHTTPステータスへの対応付け。
type StatusPolicy struct {
	// AuthFailureStatus は未サインイン・サインアウト済みの場合のステータス（401または403）。
	AuthFailureStatus int
}

// DefaultStatusPolicy は既定のステータスポリシーを返す。
func DefaultStatusPolicy() StatusPolicy {
	return StatusPolicy{AuthFailureStatus: http.StatusUnauthorized}
}

// StatusFor はAPIErrorに対応するHTTPステータスコードを返す。
func (p StatusPolicy) StatusFor(apiErr *model.APIError) int {
	switch apiErr.Kind {
	case model.KindNotSignedIn, model.KindSignedOut:
		if p.AuthFailureStatus == 0 {
			return http.StatusUnauthorized
		}
		return p.AuthFailureStatus
	case model.KindForbidden, model.KindSignOutRestricted:
		return http.StatusForbidden
	case model.KindInvalidQuestion, model.KindAnswerNotFound, model.KindUserNotFound:
		return http.StatusNotFound
	case model.KindSignUpRestricted:
		return http.StatusUnprocessableEntity
	case model.KindAuthenticationFailed:
		return http.StatusUnauthorized
	case model.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// responder はハンドラー共通のレスポンス書き込みを担う。
type responder struct {
	policy  StatusPolicy
	metrics metrics.MetricsCollector
}

func newResponder(policy StatusPolicy, mc metrics.MetricsCollector) responder {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return responder{policy: policy, metrics: mc}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
func (rs responder) handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		if isAuthzFailure(apiErr.Kind) {
			rs.metrics.RecordAuthzFailure(string(apiErr.Kind))
		}
		middleware.WriteErrorResponse(w, rs.policy.StatusFor(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// isAuthzFailure は認可コアが返すエラー種別かを判定する。
func isAuthzFailure(kind model.ErrorKind) bool {
	switch kind {
	case model.KindNotSignedIn, model.KindSignedOut, model.KindForbidden:
		return true
	}
	return false
}

// writeValidationError は400 INVALID_REQUESTを書き込む。
func (rs responder) writeValidationError(w http.ResponseWriter, message string) {
	rs.handleServiceError(w, model.NewValidationError(message))
}

// decodeRequest はリクエストボディをdstにデコードする。
// 不正なボディはゼロ値のまま扱い、本文の検証は認可の後にサービス層で行う。
func decodeRequest(r *http.Request, dst any) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Debug("request body could not be decoded",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

// statusResponse は作成・編集・削除の成功レスポンス。
type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// messageResponse はサインイン・サインアウトの成功レスポンス。
type messageResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
