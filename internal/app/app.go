// Package app はアプリケーションの起動・初期化・依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/crossfeed/internal/cache"
	"github.com/hitoshi/crossfeed/internal/config"
	"github.com/hitoshi/crossfeed/internal/database"
	"github.com/hitoshi/crossfeed/internal/filter"
	"github.com/hitoshi/crossfeed/internal/following"
	"github.com/hitoshi/crossfeed/internal/handler"
	"github.com/hitoshi/crossfeed/internal/logger"
	"github.com/hitoshi/crossfeed/internal/metrics"
	"github.com/hitoshi/crossfeed/internal/middleware"
	"github.com/hitoshi/crossfeed/internal/model"
	"github.com/hitoshi/crossfeed/internal/platform/adapter"
	"github.com/hitoshi/crossfeed/internal/platform/rss"
	"github.com/hitoshi/crossfeed/internal/repository"
	"github.com/hitoshi/crossfeed/internal/security"
	"github.com/hitoshi/crossfeed/internal/timeline"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	sourceRepo := repository.NewPostgresSourceRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. 監視の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. プラットフォームクライアントの初期化
	apiClient := &http.Client{Timeout: cfg.FetchTimeout}
	mastodonAdapter := adapter.NewMastodonAdapter(apiClient, sanitizer, slog.Default())
	blueskyAdapter := adapter.NewBlueskyAdapter(apiClient, slog.Default())

	rssClient := rss.NewClient(ssrfGuard, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize)
	feedDetector := rss.NewDetector(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize)

	// 6. フォロー集合の集約
	followingCache := cache.NewExpiring[string, model.IdentitySet](nil)
	aggregator := following.NewAggregator(
		map[model.Platform]following.Fetcher{
			model.PlatformMastodon: mastodonAdapter,
			model.PlatformBluesky:  blueskyAdapter,
		},
		followingCache, cfg.FollowingCacheTTL, cfg.FetchMaxConcurrent,
		slog.Default(), collector,
	)

	// 7. リプライフィルタ
	threadCache := cache.NewExpiring[string, model.IdentitySet](nil)
	coordinator := filter.NewCoordinator(
		map[model.Platform]filter.ThreadResolver{
			model.PlatformMastodon: adapter.NewMastodonThreadResolver(accountRepo, apiClient, slog.Default()),
			model.PlatformBluesky:  adapter.NewBlueskyThreadResolver(accountRepo, apiClient, slog.Default()),
		},
		threadCache,
		filter.Options{
			ThreadTTL:      cfg.ThreadCacheTTL,
			ResolveTimeout: cfg.ResolveTimeout,
			MinFollowed:    cfg.MinFollowedInThread,
			MaxConcurrent:  cfg.FetchMaxConcurrent,
			Enabled:        cfg.ReplyFilterEnabled,
		},
		slog.Default(), collector,
	)

	// 8. タイムライン組み立てサービス
	timelineService := timeline.NewService(
		accountRepo, sourceRepo,
		map[model.Platform]timeline.PlatformFetcher{
			model.PlatformMastodon: mastodonAdapter,
			model.PlatformBluesky:  blueskyAdapter,
		},
		rssClient, aggregator, coordinator,
		cfg.TimelinePageSize, cfg.FetchMaxConcurrent,
		slog.Default(), collector,
	)

	// 9. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		SourceRegRate:   rate.Limit(float64(cfg.RateLimitSrcReg) / 60.0),
		SourceRegBurst:  cfg.RateLimitSrcReg,
		CleanupInterval: 5 * time.Minute,
	})

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		TimelineService: timelineService,
		FilterSwitch:    coordinator,

		AccountRepo:  accountRepo,
		SourceRepo:   sourceRepo,
		FeedDetector: feedDetector,

		MetricsGatherer: registry,
	})

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	rateLimiter.Stop()

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
