package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/learnhub/internal/model"
)

// DefaultOAuthTimeout はプロバイダーとの通信1回のハンドシェイク全体に許す時間。
const DefaultOAuthTimeout = 10 * time.Second

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名（"google", "github"）を返す。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	// 失敗時は*model.APIErrorを返す。
	ExchangeCode(ctx context.Context, code string) (ProviderProfile, error)
}

// OAuthConfig はOAuthプロバイダー共通の設定。
// エンドポイントURLはテスト用にオーバーライドできる。
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Timeout      time.Duration

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// oauthClient はoauth2.Configとタイムアウト付きHTTPクライアントをまとめたもの。
type oauthClient struct {
	name    string
	conf    *oauth2.Config
	http    *http.Client
	timeout time.Duration
}

func newOAuthClient(name string, cfg OAuthConfig, endpoint oauth2.Endpoint, scopes []string) *oauthClient {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultOAuthTimeout
	}
	return &oauthClient{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// exchange は認可コードをトークンに交換し、トークン付きのHTTPクライアントを返す。
// 返すcontextはハンドシェイク全体のタイムアウトを持つため、呼び出し側がcancelする。
func (c *oauthClient) exchange(ctx context.Context, code string) (context.Context, context.CancelFunc, *http.Client, error) {
	if code == "" {
		return ctx, func() {}, nil, model.NewProviderDeniedError(c.name, errors.New("empty authorization code"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	token, err := c.conf.Exchange(ctx, code)
	if err != nil {
		cancel()
		return ctx, func() {}, nil, c.classify(err)
	}
	return ctx, cancel, c.conf.Client(ctx, token), nil
}

// classify はプロバイダー通信のエラーを認証失敗と依存先障害に分類する。
// トークンエンドポイントが4xxで拒否した場合は認証失敗、それ以外は依存先障害とする。
func (c *oauthClient) classify(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
		retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
		return model.NewProviderDeniedError(c.name, err)
	}
	return model.NewProviderFailedError(c.name, err)
}
