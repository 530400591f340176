package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/learnhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	Binder      CurrentUserBinder
	AuthConfig  AuthHandlerConfig

	// プロフィール・進捗
	UserService     UserServiceInterface
	ProgressService ProgressServiceInterface

	// 運用
	Logger         *slog.Logger
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → CORS → Session
//
// Sessionはトークンを1回だけ解決してコンテキストに載せ、未認証でも通す。
// 認証必須ルートはRequireSession → CSRF → RateLimit(General)を追加する。
// /health と /metrics はアクセスログとセッション解決の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Binder, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	progressHandler := NewProgressHandler(deps.ProgressService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))

		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// --- 認証不要のルート ---
		r.Route("/auth", func(r chi.Router) {
			r.Get("/providers", authHandler.Providers)
			r.Get("/me", authHandler.Me)

			// OAuthフロー
			r.Get("/{provider}/login", authHandler.Login)
			r.Get("/{provider}/callback", authHandler.Callback)

			// フォーム送信（クライアントIP単位のレート制限）
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.LoginMiddleware())
				r.Post("/login", authHandler.CredentialsLogin)
				r.Post("/signup", authHandler.Signup)
			})

			r.Post("/logout", authHandler.Logout)
			r.With(middleware.RequireSession, middleware.NewCSRFMiddleware(deps.CSRFConfig)).
				Post("/logout-all", authHandler.LogoutAll)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: RequireSession → CSRF → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession)
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Route("/api/users", func(r chi.Router) {
				r.Get("/me", userHandler.GetProfile)
				r.Patch("/me", userHandler.UpdateProfile)
				r.Get("/me/providers", userHandler.LinkedProviders)
			})

			r.Route("/api/progress", func(r chi.Router) {
				r.Get("/", progressHandler.List)
				r.Put("/{skill}", progressHandler.Record)
			})
		})
	})

	return r
}
