// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は登録済みの主体（ローカルまたは外部IdP連携）を表す。
type Identity struct {
	ID       string
	Username string
	// PasswordHash はローカル登録時のみ設定されるbcryptハッシュ。
	// レスポンスにもログにも出力しない。
	PasswordHash string `json:"-"`
	// FederatedID は "google:<sub>" 形式の外部IdP識別子。ローカルのみの場合は空。
	FederatedID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPassword はローカル認証用のパスワードハッシュを持つかを返す。
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// IsFederated は外部IdPと紐付いているかを返す。
func (i *Identity) IsFederated() bool {
	return i.FederatedID != ""
}

// Session はサーバー側で管理するログインセッションを表す。
type Session struct {
	ID         string // セッショントークン（32バイト乱数の16進表現）
	IdentityID string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsExpired は指定時刻時点でセッションが期限切れかを返す。
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
