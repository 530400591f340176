package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

// mockSessionResolverForRouter はトークン→セッションの固定表で解決する。
type mockSessionResolverForRouter struct {
	sessions map[string]*model.Session
}

func (m *mockSessionResolverForRouter) Resolve(_ context.Context, token string) *model.Session {
	return m.sessions[token]
}

const (
	testToken     = "valid-token"
	testCSRFToken = "csrf-token-value"
)

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
func createTestRouter(t *testing.T) http.Handler {
	t.Helper()

	session := &model.Session{ID: "sess-1", UserID: "user-test-1", ExpiresAt: time.Now().Add(time.Hour)}
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		SessionResolver: &mockSessionResolverForRouter{sessions: map[string]*model.Session{testToken: session}},
		CSRFConfig:      middleware.CSRFConfig{},
		RateLimiter:     rl,
		AuthService: &mockAuthService{
			loginURLFn: func(provider, state string) (string, error) {
				if provider != auth.ProviderGoogle {
					return "", model.NewUnknownProviderError(provider)
				}
				return "https://accounts.google.com/o/oauth2/auth?state=" + state, nil
			},
			loginFn: func(context.Context, string, string) (*auth.SignIn, error) {
				return signInFor("user-test-1", testToken), nil
			},
		},
		Binder: &mockBinder{forSessionFn: func(_ context.Context, s *model.Session) *model.CurrentUser {
			if s == nil {
				return nil
			}
			return &model.CurrentUser{User: &model.User{ID: s.UserID}, Progress: map[string]float64{}, Stats: model.Stats{Level: 1}}
		}},
		AuthConfig: AuthHandlerConfig{BaseURL: "http://localhost:3000", SessionMaxAge: 86400},
		UserService: &mockUserService{
			getProfileFn: func(_ context.Context, userID string) (*model.User, error) {
				return &model.User{ID: userID}, nil
			},
			updateProfileFn: func(_ context.Context, userID string, _ model.ProfileUpdate) (*model.User, error) {
				return &model.User{ID: userID}, nil
			},
			providersFn: func(context.Context, string) ([]string, error) {
				return []string{"google"}, nil
			},
		},
		ProgressService: &mockProgressService{
			recordFn: func(_ context.Context, userID, skill string, percent float64) (*model.Progress, error) {
				return &model.Progress{UserID: userID, Skill: skill, Percent: percent}, nil
			},
		},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
	}
	return NewRouter(deps)
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: testToken})
	return req
}

func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	return req
}

func TestNewRouter_Routes(t *testing.T) {
	tests := []struct {
		name       string
		req        func() *http.Request
		wantStatus int
	}{
		{
			name:       "ヘルスチェック",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/health", nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "メトリクス",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/metrics", nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "CSRFトークンは認証不要",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "プロバイダー一覧",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/auth/providers", nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "OAuthログイン開始",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/auth/google/login", nil) },
			wantStatus: http.StatusTemporaryRedirect,
		},
		{
			name:       "未対応プロバイダー",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/auth/myspace/login", nil) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "meは未認証で401",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/auth/me", nil) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "meは認証済みで200",
			req:        func() *http.Request { return authedRequest(http.MethodGet, "/auth/me", "") },
			wantStatus: http.StatusOK,
		},
		{
			name: "ログインフォームはCSRF不要",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"secret1"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "ログアウトは未認証でも成功",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodPost, "/auth/logout", nil) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "全端末ログアウトは未認証で401",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "全端末ログアウトはCSRF必須",
			req:        func() *http.Request { return authedRequest(http.MethodPost, "/auth/logout-all", "") },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "全端末ログアウト成功",
			req:        func() *http.Request { return withCSRF(authedRequest(http.MethodPost, "/auth/logout-all", "")) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "プロフィールは未認証で401",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/users/me", nil) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "プロフィール取得",
			req:        func() *http.Request { return authedRequest(http.MethodGet, "/api/users/me", "") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "プロフィール更新はCSRF必須",
			req:        func() *http.Request { return authedRequest(http.MethodPatch, "/api/users/me", `{"bio":"x"}`) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "プロフィール更新",
			req:        func() *http.Request { return withCSRF(authedRequest(http.MethodPatch, "/api/users/me", `{"bio":"x"}`)) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "サインイン方法の一覧",
			req:        func() *http.Request { return authedRequest(http.MethodGet, "/api/users/me/providers", "") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "サインイン方法の一覧は未認証で401",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/users/me/providers", nil) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "進捗一覧",
			req:        func() *http.Request { return authedRequest(http.MethodGet, "/api/progress", "") },
			wantStatus: http.StatusOK,
		},
		{
			name:       "進捗記録",
			req:        func() *http.Request { return withCSRF(authedRequest(http.MethodPut, "/api/progress/html", `{"percent":40}`)) },
			wantStatus: http.StatusOK,
		},
		{
			name: "無効なトークンは未認証扱い",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
				req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "forged"})
				return req
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	router := createTestRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tt.req())

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestNewRouter_SessionBeforeCSRF(t *testing.T) {
	router := createTestRouter(t)

	// 未認証の状態変更リクエストはCSRF検証より先に401になる
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/progress/html", strings.NewReader(`{"percent":1}`)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestNewRouter_SecurityHeaders(t *testing.T) {
	router := createTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest(http.MethodGet, "/api/users/me", ""))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestNewRouter_LoginRateLimited(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(120, 2))
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		SessionResolver: &mockSessionResolverForRouter{},
		RateLimiter:     rl,
		AuthService:     &mockAuthService{},
		Binder:          &mockBinder{},
		AuthConfig:      AuthHandlerConfig{BaseURL: "http://localhost:3000"},
		UserService:     &mockUserService{},
		ProgressService: &mockProgressService{},
	})

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"bad-pass"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:5000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("third login status = %d, want %d", last, http.StatusTooManyRequests)
	}
}
