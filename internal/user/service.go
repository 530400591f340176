// Package user はサインイン済みIdentityとユーザープロフィールの同期、
// およびプロフィール編集のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
)

// maxCreateAttempts は初回ログインの競合時に再読込する回数の上限。
const maxCreateAttempts = 3

// Service はユーザー同期とプロフィール管理のサービス層。
type Service struct {
	users       repository.UserRepository
	identities  repository.IdentityRepository
	credentials repository.CredentialRepository
	sanitizer   security.TextSanitizer
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	identities repository.IdentityRepository,
	credentials repository.CredentialRepository,
	sanitizer security.TextSanitizer,
) *Service {
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	return &Service{
		users:       users,
		identities:  identities,
		credentials: credentials,
		sanitizer:   sanitizer,
		now:         time.Now,
	}
}

// EnsureUser はIdentityに対応するユーザーを返す。
// 未登録ならユーザーとidentityを作成し、登録済みならIdP由来のフィールドのみ更新する。
// bioなどのプロフィール固有フィールドは上書きしない。
// 同じIdentityで同時に呼ばれても作成されるユーザーは1人だけで、全員が同じユーザーを受け取る。
func (s *Service) EnsureUser(ctx context.Context, identity auth.Identity) (*model.User, error) {
	if identity.Provider == "" || identity.ProviderUserID == "" {
		return nil, fmt.Errorf("incomplete identity: provider=%q", identity.Provider)
	}

	for range maxCreateAttempts {
		existing, err := s.identities.FindByProviderAndProviderUserID(ctx, identity.Provider, identity.ProviderUserID)
		if err != nil {
			return nil, model.NewStoreUnavailableError(err)
		}
		if existing != nil {
			return s.syncExisting(ctx, existing.UserID, identity)
		}

		user, ident := s.newRecords(identity)
		err = s.users.CreateWithIdentity(ctx, user, ident)
		if err == nil {
			slog.Info("new user created",
				slog.String("user_id", user.ID),
				slog.String("provider", identity.Provider),
			)
			return user, nil
		}
		if !errors.Is(err, repository.ErrIdentityExists) {
			return nil, model.NewStoreUnavailableError(err)
		}
		// 別のリクエストが先に作成した。再読込して既存ユーザーとして扱う。
		slog.Debug("identity created concurrently, re-reading",
			slog.String("provider", identity.Provider),
		)
	}

	return nil, model.NewStoreUnavailableError(errors.New("identity exists but could not be read"))
}

// syncExisting は既存ユーザーのIdP由来フィールドを同期する。
func (s *Service) syncExisting(ctx context.Context, userID string, identity auth.Identity) (*model.User, error) {
	user, err := s.users.SyncProviderFields(ctx, userID, identity.Email, identity.Name, identity.AvatarURL)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if user == nil {
		// identityが残っているのにユーザーがいない状態。セッションは発行しない。
		return nil, model.NewStoreUnavailableError(fmt.Errorf("user %s referenced by identity not found", userID))
	}
	return user, nil
}

// Register はメール/パスワードの新規アカウントを作成する。
// identity.ProviderUserIDには正規化済みメールアドレスを渡す。
func (s *Service) Register(ctx context.Context, identity auth.Identity, passwordHash string) (*model.User, error) {
	user, ident := s.newRecords(identity)
	cred := &model.Credential{
		Email:        identity.ProviderUserID,
		UserID:       user.ID,
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
	}

	if err := s.credentials.CreateWithUser(ctx, user, ident, cred); err != nil {
		if errors.Is(err, repository.ErrCredentialExists) {
			return nil, model.NewAccountExistsError()
		}
		return nil, model.NewStoreUnavailableError(err)
	}

	slog.Info("new account registered", slog.String("user_id", user.ID))
	return user, nil
}

// newRecords はIdentityから新規ユーザーとidentityのレコードを組み立てる。
func (s *Service) newRecords(identity auth.Identity) (*model.User, *model.Identity) {
	now := s.now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     identity.Email,
		Name:      identity.Name,
		Image:     identity.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ident := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		CreatedAt:      now,
	}
	return user, ident
}

// GetProfile は指定ユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// LinkedProviders はユーザーがサインインに使えるprovider名を返す。
// ユーザーが存在しない場合はUserNotFoundになる。
func (s *Service) LinkedProviders(ctx context.Context, userID string) ([]string, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	providers, err := s.identities.ListProvidersByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	return providers, nil
}

// UpdateProfile はプロフィール固有のフィールドを部分更新する。
// 入力は検証・正規化され、不正な値はValidationErrorになる。
func (s *Service) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error) {
	normalized, err := s.normalizeProfile(update)
	if err != nil {
		return nil, err
	}
	if normalized.IsEmpty() {
		return s.GetProfile(ctx, userID)
	}

	user, err := s.users.UpdateProfile(ctx, userID, normalized)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return user, nil
}
