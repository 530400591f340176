// Package model はドメインモデルを定義する。
package model

import "time"

// User は永続化されたユーザープロフィールを表す。
// Email, Name, Image はIdPから同期されるフィールド、
// Bio以下はユーザー自身が編集するプロフィール固有のフィールド。
type User struct {
	ID    string
	Email string
	Name  string
	Image string

	Bio              string
	GitHubUsername   string
	TwitterUsername  string
	LinkedInUsername string
	Website          string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileUpdate はプロフィール編集の部分更新を表す。
// nilのフィールドは変更しない。
type ProfileUpdate struct {
	Name             *string
	Bio              *string
	GitHubUsername   *string
	TwitterUsername  *string
	LinkedInUsername *string
	Website          *string
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (u ProfileUpdate) IsEmpty() bool {
	return u.Name == nil && u.Bio == nil && u.GitHubUsername == nil &&
		u.TwitterUsername == nil && u.LinkedInUsername == nil && u.Website == nil
}

// Identity は外部IdP（またはメール/パスワード）とユーザーの紐付け情報を表す。
// (Provider, ProviderUserID) の組はユーザー1人にのみ対応する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Credential はメール/パスワード認証用の資格情報を表す。
type Credential struct {
	Email        string
	UserID       string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
// セッショントークン（署名付き）はIDを参照し、行の削除で失効する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はセッションが指定時刻時点で期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// AuthResult はログイン/サインアップ処理の統一結果フォーマット。
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	UserID  string `json:"userId,omitempty"`
}
