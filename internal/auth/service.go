// Package auth はサインイン（メール/パスワード、Google、GitHub）と
// 署名付きセッショントークンの発行・検証・失効を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/model"
	"github.com/hitoshi/learnhub/internal/repository"
)

// パスワードの長さ制約。上限はbcryptが扱えるバイト数。
const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

// DefaultSessionMaxAge はセッションの既定の有効期間。
const DefaultSessionMaxAge = 7 * 24 * time.Hour

// UserSynchronizer は正規化されたIdentityを永続化されたユーザーに対応付ける。
// userパッケージが実装する。
type UserSynchronizer interface {
	// EnsureUser はIdentityに対応するユーザーを返す。未登録なら作成する。
	EnsureUser(ctx context.Context, identity Identity) (*model.User, error)
	// Register はメール/パスワードの新規アカウントを作成する。
	Register(ctx context.Context, identity Identity, passwordHash string) (*model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge time.Duration
	BcryptCost    int
}

// SignupInput はサインアップフォームの入力。
type SignupInput struct {
	Name        string
	Email       string
	Password    string
	AcceptTerms bool
}

// SignIn はサインイン成功時に発行されるセッションとトークン。
type SignIn struct {
	Session *model.Session
	Token   string
	User    *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	providers   map[string]OAuthProvider
	users       UserSynchronizer
	credentials repository.CredentialRepository
	sessions    repository.SessionRepository
	signer      *TokenSigner
	metrics     metrics.MetricsCollector
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。providersには有効なOAuthプロバイダーのみを渡す。
func NewService(
	providers []OAuthProvider,
	users UserSynchronizer,
	credentials repository.CredentialRepository,
	sessions repository.SessionRepository,
	signer *TokenSigner,
	m metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = DefaultSessionMaxAge
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if m == nil {
		m = metrics.Nop{}
	}
	byName := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		providers:   byName,
		users:       users,
		credentials: credentials,
		sessions:    sessions,
		signer:      signer,
		metrics:     m,
		config:      config,
		now:         time.Now,
	}
}

// Providers は利用可能なサインイン方法の一覧を返す。credentialsは常に含まれる。
func (s *Service) Providers() []string {
	names := []string{ProviderCredentials}
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names[1:])
	return names
}

// LoginURL は指定プロバイダーの認証URLを生成する。
func (s *Service) LoginURL(provider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", model.NewUnknownProviderError(provider)
	}
	return p.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// denialにはプロバイダーがerrorクエリで返した理由を渡す。空でなければ同意拒否として扱う。
// 新規ユーザーの作成はセッション発行前に完了している。
func (s *Service) HandleCallback(ctx context.Context, provider, code, denial string) (*SignIn, error) {
	attempt := newAttempt(provider, s.metrics)

	p, ok := s.providers[provider]
	if !ok {
		return nil, attempt.Fail(model.NewUnknownProviderError(provider))
	}
	if denial != "" {
		return nil, attempt.Fail(model.NewProviderDeniedError(provider, errors.New(denial)))
	}

	profile, err := p.ExchangeCode(ctx, code)
	if err != nil {
		return nil, attempt.Fail(err)
	}

	identity := profile.Identity()
	if identity.ProviderUserID == "" {
		return nil, attempt.Fail(model.NewProviderFailedError(provider, errors.New("profile without user id")))
	}

	user, err := s.users.EnsureUser(ctx, identity)
	if err != nil {
		return nil, attempt.Fail(err)
	}
	return s.issue(ctx, attempt, user)
}

// Login はメール/パスワードで認証し、セッションを発行する。
// アカウントの有無とパスワードの誤りは区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*SignIn, error) {
	attempt := newAttempt(ProviderCredentials, s.metrics)

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, attempt.Fail(model.NewMissingFieldsError("Email and password are required"))
	}
	if !validCredentialShape(email, password) {
		return nil, attempt.Fail(model.NewInvalidCredentialsError())
	}

	cred, err := s.credentials.FindByEmail(ctx, email)
	if err != nil {
		return nil, attempt.Fail(model.NewStoreUnavailableError(err))
	}
	if cred == nil {
		return nil, attempt.Fail(model.NewInvalidCredentialsError())
	}

	ok, err := VerifyPassword(cred.PasswordHash, password)
	if err != nil {
		return nil, attempt.Fail(err)
	}
	if !ok {
		return nil, attempt.Fail(model.NewInvalidCredentialsError())
	}

	user, err := s.users.EnsureUser(ctx, credentialsIdentity(email, ""))
	if err != nil {
		return nil, attempt.Fail(err)
	}
	return s.issue(ctx, attempt, user)
}

// Signup はメール/パスワードのアカウントを作成し、そのままセッションを発行する。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*SignIn, error) {
	attempt := newAttempt(ProviderCredentials, s.metrics)

	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, s.signupFailed(attempt, model.NewMissingFieldsError("All fields are required"))
	}
	if !in.AcceptTerms {
		return nil, s.signupFailed(attempt, model.NewTermsNotAcceptedError())
	}
	if !validCredentialShape(email, in.Password) || len(in.Password) > maxPasswordBytes {
		return nil, s.signupFailed(attempt, model.NewInvalidSignupError())
	}

	hash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		return nil, s.signupFailed(attempt, err)
	}

	user, err := s.users.Register(ctx, credentialsIdentity(email, name), hash)
	if err != nil {
		return nil, s.signupFailed(attempt, err)
	}
	s.metrics.RecordSignup(metrics.ResultSuccess)

	return s.issue(ctx, attempt, user)
}

func (s *Service) signupFailed(attempt *Attempt, err error) error {
	if model.IsCategory(err, model.CategoryValidation) {
		s.metrics.RecordSignup(metrics.ResultFailure)
	} else {
		s.metrics.RecordSignup(metrics.ResultError)
	}
	return attempt.Fail(err)
}

// Logout はトークンが参照するセッションを失効させる。
// トークンが空・不正な場合は既に未認証とみなしnilを返す。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil
	}

	if err := s.sessions.DeleteByID(ctx, claims.ID); err != nil {
		slog.Error("failed to delete session",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		return model.NewStoreUnavailableError(err)
	}

	s.metrics.RecordLogout()
	slog.Info("user logged out",
		slog.String("user_id", claims.Subject),
		slog.String("from", StateAuthenticated.String()),
		slog.String("to", StateAnonymous.String()),
	)
	return nil
}

// LogoutAll は指定ユーザーの全セッションを失効させる。
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		slog.Error("failed to delete user sessions",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return model.NewStoreUnavailableError(err)
	}
	s.metrics.RecordLogout()
	slog.Info("all sessions revoked", slog.String("user_id", userID))
	return nil
}

// Resolve はトークンを検証し、有効なセッションを返す。
// トークンの欠落・改ざん・期限切れ・失効、ストアの障害はいずれもnilとなる。
func (s *Service) Resolve(ctx context.Context, token string) *model.Session {
	if token == "" {
		s.metrics.RecordSessionResolved(metrics.SessionAnonymous)
		return nil
	}

	claims, err := s.signer.Parse(token)
	if err != nil {
		s.metrics.RecordSessionResolved(metrics.SessionInvalid)
		slog.Debug("rejected session token", slog.String("error", err.Error()))
		return nil
	}

	session, err := s.sessions.FindByID(ctx, claims.ID)
	if err != nil {
		s.metrics.RecordSessionResolved(metrics.SessionInvalid)
		slog.Error("failed to look up session",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if session == nil || session.Expired(s.now()) {
		s.metrics.RecordSessionResolved(metrics.SessionRevoked)
		return nil
	}
	if session.UserID != claims.Subject {
		s.metrics.RecordSessionResolved(metrics.SessionInvalid)
		slog.Warn("session token subject mismatch", slog.String("user_id", session.UserID))
		return nil
	}

	s.metrics.RecordSessionResolved(metrics.SessionValid)
	return session
}

// issue はセッションを永続化してトークンを発行し、試行をAuthenticatedにする。
// ユーザーの作成と独立した操作のため、ここで失敗してもユーザーは残る。
func (s *Service) issue(ctx context.Context, attempt *Attempt, user *model.User) (*SignIn, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, attempt.Fail(fmt.Errorf("failed to generate session ID: %w", err))
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.config.SessionMaxAge),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, attempt.Fail(model.NewStoreUnavailableError(err))
	}

	token, err := s.signer.Sign(session)
	if err != nil {
		return nil, attempt.Fail(err)
	}

	attempt.Succeed(user.ID)
	return &SignIn{Session: session, Token: token, User: user}, nil
}

// validCredentialShape はメールアドレスに"@"を含み、パスワードが6文字以上であることを検証する。
func validCredentialShape(email, password string) bool {
	return strings.Contains(email, "@") && utf8.RuneCountInString(password) >= minPasswordLength
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
