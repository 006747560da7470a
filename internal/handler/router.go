package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/crossfeed/internal/metrics"
	"github.com/hitoshi/crossfeed/internal/middleware"
	"github.com/hitoshi/crossfeed/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// タイムライン
	TimelineService TimelineServiceInterface

	// フィルタ機能フラグ
	FilterSwitch FilterSwitch

	// 登録管理
	AccountRepo  repository.AccountRepository
	SourceRepo   repository.SourceRepository
	FeedDetector FeedDetectorInterface

	// 監視
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → RateLimit(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())

	timelineHandler := NewTimelineHandler(deps.TimelineService)
	filterHandler := NewFilterHandler(deps.FilterSwitch)
	accountHandler := NewAccountHandler(deps.AccountRepo)
	sourceHandler := NewSourceHandler(deps.SourceRepo, deps.FeedDetector)

	// --- レート制限の外のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/timeline", timelineHandler.GetTimeline)

		r.Route("/api/filter", func(r chi.Router) {
			r.Get("/", filterHandler.GetFilterState)
			r.Put("/", filterHandler.UpdateFilterState)
		})

		r.Route("/api/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.ListAccounts)
			r.Post("/", accountHandler.CreateAccount)
			r.Delete("/{id}", accountHandler.DeleteAccount)
		})

		r.Route("/api/sources", func(r chi.Router) {
			r.Get("/", sourceHandler.ListSources)
			// ソース登録は外部フェッチを伴うため専用レート制限を追加
			r.With(deps.RateLimiter.SourceRegistrationMiddleware()).Post("/", sourceHandler.CreateSource)
			r.Delete("/{id}", sourceHandler.DeleteSource)
		})
	})

	return r
}
