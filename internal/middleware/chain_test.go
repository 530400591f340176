package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// protectedChain は認証必須ルートと同じ順序でミドルウェアを重ねる。
// Session -> RequireSession -> RateLimit -> Handler
func protectedChain(resolver SessionResolver, rl *RateLimiter, h http.Handler) http.Handler {
	return NewSessionMiddleware(resolver)(RequireSession(rl.GeneralMiddleware()(h)))
}

// TestMiddlewareChain_AuthenticatedRequest はセッション付きリクエストがチェーンを通過することを検証する。
func TestMiddlewareChain_AuthenticatedRequest(t *testing.T) {
	rl := testRateLimiter(t, DefaultRateLimiterConfig())

	var capturedUserID string
	handler := protectedChain(tokenResolver("chain-token", "user-chain-test"), rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "chain-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-chain-test" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-chain-test")
	}
}

// TestMiddlewareChain_NoSession_Returns401BeforeRateLimit は未認証リクエストが
// レート制限に到達する前に401になることを検証する。
func TestMiddlewareChain_NoSession_Returns401BeforeRateLimit(t *testing.T) {
	rl := testRateLimiter(t, DefaultRateLimiterConfig())
	handler := protectedChain(tokenResolver("chain-token", "user-1"), rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "revoked-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("GeneralLimiterCount() = %d, want 0", rl.GeneralLimiterCount())
	}
}

// TestMiddlewareChain_RateLimitAfterSession はセッション解決後にユーザー単位で制限されることを検証する。
func TestMiddlewareChain_RateLimitAfterSession(t *testing.T) {
	rl := testRateLimiter(t, RateLimiterConfig{GeneralRate: 1, GeneralBurst: 2, LoginRate: 1, LoginBurst: 1})

	handler := NewCORSMiddleware("http://localhost:3000")(
		protectedChain(tokenResolver("rate-token", "user-rate-chain"), rl, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})),
	)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "rate-token"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "rate-token"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}
