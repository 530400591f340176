// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/learnhub/internal/model"
)

// SessionCookieName はセッショントークンを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストに解決済みセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionResolver はセッショントークンを有効なセッションに解決する。
// 無効・失効済み・期限切れのトークンにはnilを返す。
type SessionResolver interface {
	Resolve(ctx context.Context, token string) *model.Session
}

// NewSessionMiddleware はCookieのセッショントークンをリクエストごとに1回だけ解決し、
// 有効なセッションをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証のリクエストもそのまま通す。拒否はRequireSessionが行う。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session := resolver.Resolve(r.Context(), token)
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			annotateUserID(r.Context(), session.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// RequireSession はセッションのないリクエストを401で拒否する。
// NewSessionMiddlewareの後に配置する。
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionToken はリクエストのCookieからセッショントークンを取り出す。ない場合は空文字列。
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SessionFromContext はリクエストコンテキストから解決済みセッションを取得する。
// 未認証の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアで認証済みのリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	session := SessionFromContext(ctx)
	if session == nil || session.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return session.UserID, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// ContextWithUserID はユーザーIDだけを持つセッションをコンテキストに注入する。
// テストなどミドルウェアを通さないコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithSession(ctx, &model.Session{UserID: userID})
}
