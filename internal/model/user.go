// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限種別を表す。
type Role int

const (
	// RoleRegular は一般ユーザー。
	RoleRegular Role = iota
	// RoleAdmin は管理者。他ユーザーのコンテンツを削除できる。
	RoleAdmin
)

const roleAdminName = "admin"

// ParseRole は永続化された文字列からRoleを復元する。
// 完全一致で "admin" の場合のみ管理者とし、それ以外は一般ユーザーとして扱う。
func ParseRole(s string) Role {
	if s == roleAdminName {
		return RoleAdmin
	}
	return RoleRegular
}

// String は永続化用の文字列表現を返す。
func (r Role) String() string {
	if r == RoleAdmin {
		return roleAdminName
	}
	return "nonadmin"
}

// User はサービス利用ユーザーを表す。
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	Role          Role
	FirstName     string
	LastName      string
	Country       string
	AboutMe       string
	DOB           string
	ContactNumber string
	CreatedAt     time.Time
}

// Session はトークンで識別されるログインセッションを表す。
// LogoutAt が nil かつ ExpiresAt が現在時刻より後の場合のみ有効とみなす。
type Session struct {
	ID        string
	Token     string
	UserID    string
	LoginAt   time.Time
	ExpiresAt time.Time
	LogoutAt  *time.Time
}

// IsActive は指定時刻においてセッションが有効かどうかを返す。
func (s *Session) IsActive(now time.Time) bool {
	return s.LogoutAt == nil && s.ExpiresAt.After(now)
}
