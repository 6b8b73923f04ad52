package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/itemkeep/internal/metrics"
	"github.com/hitoshi/itemkeep/internal/middleware"
	"github.com/hitoshi/itemkeep/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	HSTS              bool
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス（nilの場合は記録しない / /metricsを公開しない）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// アイテム
	ItemService ItemServiceInterface

	// ヘルスチェック
	HealthChecker repository.Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Metrics → Logging
//
// アイテムの変更系ルートのみ RequireAuthenticated → CSRF を追加で通す。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewLoggingMiddleware(logger))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	itemHandler := NewItemHandler(deps.ItemService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証ルート ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
		r.Get("/check-auth", authHandler.CheckAuth)
		r.With(middleware.RequireAuthenticated).Get("/protected", authHandler.Protected)
	})

	// --- アイテム ---
	r.Route("/items", func(r chi.Router) {
		// 参照系は認証不要
		r.Get("/", itemHandler.ListItems)
		r.Get("/{id}", itemHandler.GetItem)

		// 変更系は認証とCSRFトークンが必要
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated)
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Post("/", itemHandler.CreateItem)
			r.Put("/{id}", itemHandler.UpdateItem)
			r.Delete("/{id}", itemHandler.DeleteItem)
		})
	})

	return r
}
