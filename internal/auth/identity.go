package auth

import (
	"strconv"
	"strings"
)

// プロバイダー名。identitiesテーブルのproviderカラムにも使われる。
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
	ProviderGitHub      = "github"
)

// Identity はサインイン時に外部プロバイダー（またはメール/パスワード）が確認した
// ユーザー情報を正規化したもの。ハンドシェイク中のみ存在し、永続化はuserパッケージが行う。
type Identity struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
}

// ProviderProfile はOAuthプロバイダーが返すプロフィールの型付きバリアント。
// GoogleProfileとGitHubProfileのみが実装する。
type ProviderProfile interface {
	// Identity はプロバイダー固有の形式を正規化したIdentityに変換する。
	Identity() Identity
	isProviderProfile()
}

// GoogleProfile はGoogleのuserinfoエンドポイントのレスポンス。
type GoogleProfile struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// Identity はsub→id, picture→avatarの対応でIdentityに変換する。
func (p GoogleProfile) Identity() Identity {
	return Identity{
		Provider:       ProviderGoogle,
		ProviderUserID: p.Sub,
		Email:          p.Email,
		Name:           p.Name,
		AvatarURL:      p.Picture,
	}
}

func (GoogleProfile) isProviderProfile() {}

// GitHubProfile はGitHubの/userエンドポイントのレスポンス。
type GitHubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// Identity は数値IDを文字列化し、nameが空の場合はloginを表示名に使う。
func (p GitHubProfile) Identity() Identity {
	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = p.Login
	}
	var id string
	if p.ID != 0 {
		id = strconv.FormatInt(p.ID, 10)
	}
	return Identity{
		Provider:       ProviderGitHub,
		ProviderUserID: id,
		Email:          p.Email,
		Name:           name,
		AvatarURL:      p.AvatarURL,
	}
}

func (GitHubProfile) isProviderProfile() {}

// NormalizeEmail はメールアドレスの前後の空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// credentialsIdentity はメール/パスワードログイン用のIdentityを生成する。
// 正規化済みメールアドレスをprovider_user_idとして使う。
func credentialsIdentity(email, name string) Identity {
	return Identity{
		Provider:       ProviderCredentials,
		ProviderUserID: email,
		Email:          email,
		Name:           name,
	}
}
