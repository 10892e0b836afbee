package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedgen/internal/metrics"
	"github.com/hitoshi/feedgen/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// フィード配信URLの組み立てに使う公開ベースURL
	BaseURL string

	// サービス
	FeedService    FeedServiceInterface
	VersionService VersionServiceInterface

	// /metrics用。nilの場合はエンドポイントを公開しない。
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// フィード配信ルート（/feeds/{id}/output）はクローラー向けのため一般レート制限の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	feedHandler := NewFeedHandler(deps.FeedService, deps.BaseURL)
	versionHandler := NewVersionHandler(deps.VersionService, deps.FeedService)
	outputHandler := NewOutputHandler(deps.FeedService)

	// --- 運用ルート ---

	r.Get("/health", healthCheck)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- フィード配信（認証・レート制限なし） ---

	r.Get("/feeds/{id}/output", outputHandler.ServeFeed)

	// --- 管理API ---
	// ミドルウェアスタック: RateLimit(General)、変更系には追加でRateLimit(Mutation)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/feeds", func(r chi.Router) {
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/", feedHandler.CreateFeed)
			r.Get("/", feedHandler.ListFeeds)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", feedHandler.GetFeed)
				r.Put("/settings", feedHandler.UpdateSettings)
				r.Delete("/", feedHandler.DeleteFeed)

				// ライフサイクル操作
				r.Post("/pause", feedHandler.PauseFeed)
				r.Post("/resume", feedHandler.ResumeFeed)
				r.Post("/reactivate", feedHandler.ReactivateFeed)

				// バージョン管理
				r.Route("/versions", func(r chi.Router) {
					r.Get("/", versionHandler.ListVersions)
					r.Get("/compare", versionHandler.Compare)
					r.With(deps.RateLimiter.MutationMiddleware()).Post("/{versionID}/rollback", versionHandler.Rollback)
				})
			})
		})
	})

	return r
}

// healthCheck は死活監視エンドポイント。
// GET /health
func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
