package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/authgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
// 起動時に1回構築し、ハンドラーとミドルウェアに参照で渡す。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	LegacyStatusCodes bool
	StatusRecorder    middleware.StatusRecorder // nilの場合はメトリクスを記録しない

	// 認証
	AuthService   AuthServiceInterface
	Authenticator middleware.Authenticator
	Cookies       CookieSigner
	AuthConfig    AuthHandlerConfig

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// /protectedのみトークン認証ミドルウェアを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errWriter := middleware.ErrorWriter{Legacy: deps.LegacyStatusCodes}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies, deps.AuthConfig, errWriter)
	tokenAuth := middleware.NewTokenAuthMiddleware(deps.Authenticator, middleware.TokenAuthConfig{
		CookieName: deps.AuthConfig.CookieName,
		Cookies:    deps.Cookies,
		Errors:     errWriter,
	})

	// --- 運用ルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)

	// --- 認証が必要なルート ---
	r.With(tokenAuth).Post("/protected", authHandler.Protected)

	return r
}
