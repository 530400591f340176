package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/hitoshi/learnhub/internal/model"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
type GoogleOAuthProvider struct {
	client      *oauthClient
	userInfoURL string
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(cfg OAuthConfig) *GoogleOAuthProvider {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}
	return &GoogleOAuthProvider{
		client:      newOAuthClient(ProviderGoogle, cfg, endpoints.Google, []string{"openid", "email", "profile"}),
		userInfoURL: userInfoURL,
	}
}

// Name はプロバイダー名を返す。
func (p *GoogleOAuthProvider) Name() string { return ProviderGoogle }

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// 毎回同意画面を表示し、オフラインアクセスを要求する。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	return p.client.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (ProviderProfile, error) {
	ctx, cancel, httpClient, err := p.client.exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var profile GoogleProfile
	if err := getJSON(ctx, httpClient, p.userInfoURL, &profile); err != nil {
		return nil, p.client.classify(fmt.Errorf("failed to fetch user info: %w", err))
	}
	if profile.Sub == "" {
		return nil, model.NewProviderFailedError(ProviderGoogle, errors.New("empty sub in user info response"))
	}
	return profile, nil
}

// getJSON はGETリクエストを送りJSONレスポンスをdstにデコードする。
func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
