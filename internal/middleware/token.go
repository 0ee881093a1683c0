// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	basicPrefix         = "Basic "
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// tokenContextKey はリクエストコンテキストにアクセストークンを格納するためのキー。
var tokenContextKey = contextKey("access_token")

// NewTokenMiddleware はAuthorizationヘッダーからアクセストークンを取り出し、
// リクエストコンテキストに注入するミドルウェアを返す。
// "Bearer <token>" 形式とトークンのみの形式の両方を受け付ける。
// トークンの検証はサービス層のauthzが行うため、ここでは拒否しない。
func NewTokenMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r.Header.Get(authorizationHeader))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), token)))
		})
	}
}

// ExtractToken はAuthorizationヘッダー値からトークンを取り出す。
// サインイン用のBasic認証情報はトークンとして扱わない。
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	if hasPrefixFold(header, basicPrefix) {
		return ""
	}
	if hasPrefixFold(header, bearerPrefix) {
		return strings.TrimSpace(header[len(bearerPrefix):])
	}
	return header
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// TokenFromContext はリクエストコンテキストからアクセストークンを取得する。
// トークンが無い場合は空文字を返す。
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// ContextWithToken はコンテキストにアクセストークンを注入する。
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}
