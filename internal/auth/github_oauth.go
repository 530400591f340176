package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2/endpoints"

	"github.com/hitoshi/learnhub/internal/model"
)

const (
	defaultGitHubUserURL   = "https://api.github.com/user"
	defaultGitHubEmailsURL = "https://api.github.com/user/emails"
)

// GitHubOAuthProvider はGitHub OAuthによる認証を提供する。
type GitHubOAuthProvider struct {
	client    *oauthClient
	userURL   string
	emailsURL string
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
// cfg.UserInfoURLを指定した場合、メール一覧は同じURLの"/emails"を参照する。
func NewGitHubOAuthProvider(cfg OAuthConfig) *GitHubOAuthProvider {
	userURL, emailsURL := defaultGitHubUserURL, defaultGitHubEmailsURL
	if cfg.UserInfoURL != "" {
		userURL = cfg.UserInfoURL
		emailsURL = cfg.UserInfoURL + "/emails"
	}
	return &GitHubOAuthProvider{
		client:    newOAuthClient(ProviderGitHub, cfg, endpoints.GitHub, []string{"read:user", "user:email"}),
		userURL:   userURL,
		emailsURL: emailsURL,
	}
}

// Name はプロバイダー名を返す。
func (p *GitHubOAuthProvider) Name() string { return ProviderGitHub }

// GetLoginURL はGitHub OAuthの認証URLを生成する。
func (p *GitHubOAuthProvider) GetLoginURL(state string) string {
	return p.client.conf.AuthCodeURL(state)
}

// githubEmail は/user/emailsエンドポイントの要素。
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
// プロフィールのメールアドレスが非公開の場合は検証済みのプライマリアドレスで補う。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (ProviderProfile, error) {
	ctx, cancel, httpClient, err := p.client.exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var profile GitHubProfile
	if err := getJSON(ctx, httpClient, p.userURL, &profile); err != nil {
		return nil, p.client.classify(fmt.Errorf("failed to fetch user: %w", err))
	}
	if profile.ID == 0 {
		return nil, model.NewProviderFailedError(ProviderGitHub, errors.New("empty id in user response"))
	}

	if profile.Email == "" {
		email, err := p.primaryEmail(ctx, httpClient)
		if err != nil {
			// メールアドレスなしでもサインインは継続する
			slog.Warn("failed to fetch github emails",
				slog.Int64("github_id", profile.ID),
				slog.String("error", err.Error()),
			)
		}
		profile.Email = email
	}
	return profile, nil
}

func (p *GitHubOAuthProvider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, client, p.emailsURL, &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
