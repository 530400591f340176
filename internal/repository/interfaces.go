// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/learnhub/internal/model"
)

var (
	// ErrIdentityExists は同じ(provider, provider_user_id)のidentityが既に存在する場合に返る。
	// 初回ログインの競合で発生し、呼び出し側は既存identityを再読込して続行する。
	ErrIdentityExists = errors.New("identity already exists")

	// ErrCredentialExists は同じメールアドレスの資格情報が既に存在する場合に返る。
	ErrCredentialExists = errors.New("credential already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identityが既に存在する場合はユーザーも作成せずErrIdentityExistsを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// SyncProviderFields はIdP由来のフィールド（email, name, image）のみを更新する。
	// 空文字列のフィールドは既存値を維持する。ユーザーが存在しない場合はnilを返す。
	SyncProviderFields(ctx context.Context, id, email, name, image string) (*model.User, error)

	// UpdateProfile はプロフィール固有のフィールドを部分更新する。
	// ユーザーが存在しない場合はnilを返す。
	UpdateProfile(ctx context.Context, id string, update model.ProfileUpdate) (*model.User, error)
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// ListProvidersByUserID はユーザーに紐付いたprovider名を昇順・重複なしで返す。
	ListProvidersByUserID(ctx context.Context, userID string) ([]string, error)
}

// CredentialRepository はメール/パスワード資格情報の永続化インターフェース。
type CredentialRepository interface {
	// FindByEmail は正規化済みメールアドレスで資格情報を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Credential, error)

	// CreateWithUser はユーザー、identity、資格情報を同一トランザクションで作成する。
	// メールアドレスが登録済みの場合はErrCredentialExistsを返す。
	CreateWithUser(ctx context.Context, user *model.User, identity *model.Identity, credential *model.Credential) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。存在しない場合もエラーにしない。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProgressRepository はスキル別進捗の永続化インターフェース。
type ProgressRepository interface {
	// ListByUserID はユーザーの進捗をスキル名順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Progress, error)
	// Upsert は(user_id, skill)の進捗を作成または上書きする。
	Upsert(ctx context.Context, progress *model.Progress) (*model.Progress, error)
}
