package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/config"
	"github.com/hitoshi/learnhub/internal/handler"
	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/progress"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/user"
	"github.com/hitoshi/learnhub/internal/viewer"
)

// redisPingTimeout は起動時のRedis疎通確認のタイムアウト。
const redisPingTimeout = 5 * time.Second

// openSessionStore は設定に応じたセッションリポジトリと、その後始末を返す。
func openSessionStore(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.SessionRepository, func(), error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return repository.NewPostgresSessionRepo(db), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connection established", slog.String("addr", opts.Addr))

	return repository.NewRedisSessionRepo(client), func() { client.Close() }, nil
}

// buildOAuthProviders は設定が揃っているOAuthプロバイダーだけを生成する。
func buildOAuthProviders(cfg *config.Config) []auth.OAuthProvider {
	var providers []auth.OAuthProvider
	if cfg.Google.Enabled() {
		providers = append(providers, auth.NewGoogleOAuthProvider(auth.OAuthConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Timeout:      cfg.OAuthTimeout,
		}))
	}
	if cfg.GitHub.Enabled() {
		providers = append(providers, auth.NewGitHubOAuthProvider(auth.OAuthConfig{
			ClientID:     cfg.GitHub.ClientID,
			ClientSecret: cfg.GitHub.ClientSecret,
			RedirectURL:  cfg.GitHub.RedirectURL,
			Timeout:      cfg.OAuthTimeout,
		}))
	}
	return providers
}

// newRouterDeps はリポジトリ・サービス・ミドルウェアを組み立ててルーターの依存を返す。
func newRouterDeps(cfg *config.Config, db *sql.DB, sessions repository.SessionRepository) *handler.RouterDeps {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	credRepo := repository.NewPostgresCredentialRepo(db)
	progressRepo := repository.NewPostgresProgressRepo(db)

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	userService := user.NewService(userRepo, identRepo, credRepo, security.NewTextSanitizer())

	providers := buildOAuthProviders(cfg)
	authService := auth.NewService(
		providers, userService, credRepo, sessions,
		auth.NewTokenSigner(cfg.SessionSecret), collector,
		auth.ServiceConfig{
			SessionMaxAge: time.Duration(cfg.SessionMaxAge) * time.Second,
			BcryptCost:    cfg.BcryptCost,
		},
	)

	calc := progress.Calculator{
		XPPerPercent: float64(cfg.XPPerPercent),
		XPPerLevel:   cfg.XPPerLevel,
	}
	progressService := progress.NewService(progressRepo, calc)
	binder := viewer.NewBinder(authService, userRepo, progressRepo, calc)

	slog.Info("sign-in providers configured", slog.Any("providers", authService.Providers()))

	// 4. ルーター依存の構築
	return &handler.RouterDeps{
		SessionResolver:   authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: middleware.NewRateLimiter(
			middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
		),

		AuthService: authService,
		Binder:      binder,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:     userService,
		ProgressService: progressService,

		Logger:         slog.Default(),
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
	}
}
