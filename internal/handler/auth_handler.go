// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthNextCookie  = "oauth_next"
	oauthCookieAge   = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Providers() []string
	LoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider, code, denial string) (*auth.SignIn, error)
	Login(ctx context.Context, email, password string) (*auth.SignIn, error)
	Signup(ctx context.Context, in auth.SignupInput) (*auth.SignIn, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID string) error
}

// CurrentUserBinder は解決済みセッションから現在のユーザー像を組み立てる。
type CurrentUserBinder interface {
	ForSession(ctx context.Context, session *model.Session) *model.CurrentUser
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	binder  CurrentUserBinder
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, binder CurrentUserBinder, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		binder:  binder,
		config:  config,
	}
}

// Providers は利用可能なサインイン方法を返す。
// GET /auth/providers
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"providers": h.service.Providers(),
	})
}

// Login はOAuthフローを開始する。
// GET /auth/{provider}/login?next=/dashboard
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.LoginURL(provider, state)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	h.setShortLivedCookie(w, oauthStateCookie, state, oauthCookieAge)
	if next := r.URL.Query().Get("next"); next != "" {
		h.setShortLivedCookie(w, oauthNextCookie, safeRedirect(h.config.BaseURL, next), oauthCookieAge)
	}

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
// IdPが同意拒否を返した場合はerrorクエリが設定される。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.String("provider", provider))
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_STATE",
			Message:  "Sign-in session expired. Please try again.",
			Category: model.CategoryValidation,
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	next := h.config.BaseURL
	if c, err := r.Cookie(oauthNextCookie); err == nil && c.Value != "" {
		next = safeRedirect(h.config.BaseURL, c.Value)
	}
	h.setShortLivedCookie(w, oauthStateCookie, "", -1)
	h.setShortLivedCookie(w, oauthNextCookie, "", -1)

	// 2. 認証処理。失敗はログイン画面にエラーコード付きで戻す
	signIn, err := h.service.HandleCallback(r.Context(), provider, query.Get("code"), query.Get("error"))
	if err != nil {
		http.Redirect(w, r, loginErrorURL(h.config.BaseURL, err), http.StatusTemporaryRedirect)
		return
	}

	// 3. セッションCookieを設定してリダイレクト
	h.setSessionCookie(w, signIn.Token)
	http.Redirect(w, r, next, http.StatusTemporaryRedirect)
}

// credentialsRequest はメール/パスワードのログイン・サインアップ入力。
type credentialsRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AcceptTerms bool   `json:"acceptTerms"`
}

// readCredentials はJSONまたはフォームのボディから入力を読み取る。
func readCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if isJSONRequest(r) {
		err := decodeJSON(w, r, &req)
		return req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Name = r.PostForm.Get("name")
	req.Email = r.PostForm.Get("email")
	req.Password = r.PostForm.Get("password")
	req.AcceptTerms = formBool(r.PostForm.Get("acceptTerms"))
	return req, nil
}

// CredentialsLogin はメール/パスワードでサインインする。
// POST /auth/login
func (h *AuthHandler) CredentialsLogin(w http.ResponseWriter, r *http.Request) {
	req, err := readCredentials(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.AuthResult{Success: false, Message: "Invalid request body"})
		return
	}

	signIn, err := h.service.Login(r.Context(), req.Email, req.Password)
	h.writeSignInResult(w, signIn, err)
}

// Signup はメール/パスワードのアカウントを作成してサインインする。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	req, err := readCredentials(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.AuthResult{Success: false, Message: "Invalid request body"})
		return
	}

	signIn, err := h.service.Signup(r.Context(), auth.SignupInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		AcceptTerms: req.AcceptTerms,
	})
	h.writeSignInResult(w, signIn, err)
}

func (h *AuthHandler) writeSignInResult(w http.ResponseWriter, signIn *auth.SignIn, err error) {
	if err != nil {
		status, result := toAuthResult("", err)
		writeJSON(w, status, result)
		return
	}
	h.setSessionCookie(w, signIn.Token)
	status, result := toAuthResult(signIn.User.ID, nil)
	writeJSON(w, status, result)
}

// Logout はセッションを破棄する。
// POST /auth/logout
// ストアの障害で失効に失敗してもCookieはクリアする。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), middleware.SessionToken(r))
	h.clearSessionCookie(w)

	if err != nil {
		status, result := toAuthResult("", err)
		writeJSON(w, status, result)
		return
	}
	writeJSON(w, http.StatusOK, model.AuthResult{Success: true})
}

// LogoutAll はユーザーの全セッションを破棄する。
// POST /auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		status, result := toAuthResult("", err)
		writeJSON(w, status, result)
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, model.AuthResult{Success: true, UserID: userID})
}

// Me は現在のユーザー（プロフィール、進捗、導出指標）を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cu := h.binder.ForSession(r.Context(), middleware.SessionFromContext(r.Context()))
	if cu == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	writeJSON(w, http.StatusOK, toCurrentUserResponse(cu))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// setShortLivedCookie はOAuthフロー中だけ使うCookieを設定する。maxAgeが負なら削除する。
func (h *AuthHandler) setShortLivedCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// safeRedirect はnextがBASE_URLと同一オリジンの場合のみそのURLを返し、それ以外はbaseを返す。
// 相対パスはbase基準で解決する。
func safeRedirect(base, next string) string {
	baseURL, err := url.Parse(base)
	if err != nil || next == "" {
		return base
	}
	// "//evil.example" や "/\evil.example" はブラウザが別ホストとして扱う
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return base
	}
	target, err := baseURL.Parse(next)
	if err != nil {
		return base
	}
	if target.Scheme != baseURL.Scheme || target.Host != baseURL.Host {
		return base
	}
	return target.String()
}

// loginErrorURL はサインイン失敗時の戻り先URLを返す。
func loginErrorURL(base string, err error) string {
	code := "SIGNIN_FAILED"
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.Code
	}
	return strings.TrimRight(base, "/") + "/login?error=" + url.QueryEscape(code)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
