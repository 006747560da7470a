// Package timeline は複数ソースからの統一タイムライン組み立てを提供する。
// 連携アカウントのホームタイムラインとRSSソースを並行取得し、
// 正規化・マージ・フィルタリングを経て1本の時系列リストにする。
package timeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/hitoshi/crossfeed/internal/model"
	"github.com/hitoshi/crossfeed/internal/platform/rss"
	"github.com/hitoshi/crossfeed/internal/repository"
)

// PlatformFetcher は1連携アカウントのホームタイムラインを統一投稿モデルで取得する。
// プラットフォームごとのアダプタ（Mastodonクライアント、Blueskyクライアント）が実装する。
type PlatformFetcher interface {
	FetchHomeTimeline(ctx context.Context, account *model.LinkedAccount, limit int) ([]model.UnifiedPost, error)
}

// SourceFetcher はRSSソースのフェッチインターフェース。rss.Clientが実装する。
type SourceFetcher interface {
	Fetch(ctx context.Context, source *model.RSSSource) (*rss.FetchResult, error)
}

// TimelineFilter はリプライフィルタのインターフェース。filter.Coordinatorが実装する。
type TimelineFilter interface {
	FilterTimeline(ctx context.Context, posts []model.UnifiedPost, followed model.IdentitySet) []model.UnifiedPost
}

// FollowingAggregator はフォロー集合集約のインターフェース。following.Aggregatorが実装する。
type FollowingAggregator interface {
	AggregateFollowing(ctx context.Context, accounts []model.LinkedAccount) model.IdentitySet
}

// MetricsRecorder はタイムライン組み立ての計測インターフェース。nilでもよい。
type MetricsRecorder interface {
	TimelineAssembled()
}

// Service は統一タイムラインの組み立てを統括する。
// ソース単位の取得失敗はタイムライン全体を失敗させず、そのソースの寄与を
// 空としてスキップする（フェイルオープン）。
type Service struct {
	accountRepo   repository.AccountRepository
	sourceRepo    repository.SourceRepository
	fetchers      map[model.Platform]PlatformFetcher
	rssClient     SourceFetcher
	aggregator    FollowingAggregator
	filter        TimelineFilter
	pageSize      int
	maxConcurrent int
	logger        *slog.Logger
	metrics       MetricsRecorder

	// lastRSSPosts はソースIDごとの前回取得分。304 Not Modified時に使い回す。
	mu           sync.Mutex
	lastRSSPosts map[string][]model.UnifiedPost
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(
	accountRepo repository.AccountRepository,
	sourceRepo repository.SourceRepository,
	fetchers map[model.Platform]PlatformFetcher,
	rssClient SourceFetcher,
	aggregator FollowingAggregator,
	timelineFilter TimelineFilter,
	pageSize int,
	maxConcurrent int,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Service {
	if pageSize <= 0 {
		pageSize = 40
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Service{
		accountRepo:   accountRepo,
		sourceRepo:    sourceRepo,
		fetchers:      fetchers,
		rssClient:     rssClient,
		aggregator:    aggregator,
		filter:        timelineFilter,
		pageSize:      pageSize,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		metrics:       metrics,
		lastRSSPosts:  make(map[string][]model.UnifiedPost),
	}
}

// BuildTimeline は統一タイムラインを組み立てて返す。
// 処理の流れ:
//  1. 連携アカウントとRSSソースの一覧を取得
//  2. フォロー集合を集約（リプライフィルタの判定材料）
//  3. 各ソースのタイムラインを並行取得し、失敗したソースはスキップ
//  4. IDで重複排除し、作成日時の降順でマージ
//  5. リプライフィルタを適用し、ページサイズに切り詰める
func (s *Service) BuildTimeline(ctx context.Context) ([]model.UnifiedPost, error) {
	accounts, err := s.accountRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := s.sourceRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 && len(sources) == 0 {
		return nil, model.NewNoLinkedAccountsError()
	}

	followed := s.aggregator.AggregateFollowing(ctx, accounts)
	merged := s.fetchAll(ctx, accounts, sources)
	merged = dedupeByID(merged)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	filtered := s.filter.FilterTimeline(ctx, merged, followed)
	if len(filtered) > s.pageSize {
		filtered = filtered[:s.pageSize]
	}

	if s.metrics != nil {
		s.metrics.TimelineAssembled()
	}
	s.logger.Info("タイムラインを組み立てた",
		"accounts", len(accounts),
		"rss_sources", len(sources),
		"fetched", len(merged),
		"included", len(filtered),
	)
	return filtered, nil
}

// fetchAll は全ソースのタイムラインを並行取得してマージ前のリストを返す。
// 取得失敗したソースはログに記録し、寄与を空としてスキップする。
func (s *Service) fetchAll(ctx context.Context, accounts []model.LinkedAccount, sources []model.RSSSource) []model.UnifiedPost {
	sem := make(chan struct{}, s.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var merged []model.UnifiedPost

	collect := func(posts []model.UnifiedPost) {
		if len(posts) == 0 {
			return
		}
		mu.Lock()
		merged = append(merged, posts...)
		mu.Unlock()
	}

	for _, account := range accounts {
		wg.Add(1)
		go func(acct model.LinkedAccount) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fetcher, ok := s.fetchers[acct.Platform]
			if !ok {
				s.logger.Warn("タイムライン取得未対応のプラットフォーム",
					"account_id", acct.ID,
					"platform", acct.Platform,
				)
				return
			}

			posts, err := fetcher.FetchHomeTimeline(ctx, &acct, s.pageSize)
			if err != nil {
				s.logger.Warn("ホームタイムラインの取得に失敗（このアカウントをスキップ）",
					"account_id", acct.ID,
					"platform", acct.Platform,
					"error", err,
				)
				return
			}
			collect(posts)
		}(account)
	}

	for _, source := range sources {
		wg.Add(1)
		go func(src model.RSSSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			collect(s.fetchRSSSource(ctx, &src))
		}(source)
	}

	wg.Wait()
	return merged
}

// fetchRSSSource は1つのRSSソースを条件付きGETで取得する。
// 304 Not Modifiedの場合は前回取得分を返す。
// フェッチに成功した場合はETag/Last-Modified/タイトルを永続化する
// （永続化の失敗は次回の再フェッチで回復するため、投稿自体は返す）。
func (s *Service) fetchRSSSource(ctx context.Context, source *model.RSSSource) []model.UnifiedPost {
	result, err := s.rssClient.Fetch(ctx, source)
	if err != nil {
		s.logger.Warn("RSSソースの取得に失敗（このソースをスキップ）",
			"source_id", source.ID,
			"feed_url", source.FeedURL,
			"error", err,
		)
		return nil
	}

	if result.NotModified {
		s.mu.Lock()
		posts := s.lastRSSPosts[source.ID]
		s.mu.Unlock()
		return posts
	}

	s.mu.Lock()
	s.lastRSSPosts[source.ID] = result.Posts
	s.mu.Unlock()

	changed := result.ETag != source.ETag || result.LastModified != source.LastModified
	if result.Title != "" && result.Title != source.Title {
		changed = true
	}
	if changed {
		updated := *source
		updated.ETag = result.ETag
		updated.LastModified = result.LastModified
		if result.Title != "" {
			updated.Title = result.Title
		}
		if err := s.sourceRepo.UpdateFetchState(ctx, &updated); err != nil {
			s.logger.Warn("RSSソースのフェッチ状態の保存に失敗",
				"source_id", source.ID,
				"error", err,
			)
		}
	}

	return result.Posts
}

// dedupeByID はIDの重複する投稿を除去する。先に現れた投稿を残す。
func dedupeByID(posts []model.UnifiedPost) []model.UnifiedPost {
	seen := make(map[string]struct{}, len(posts))
	result := posts[:0]
	for _, post := range posts {
		if _, ok := seen[post.ID]; ok {
			continue
		}
		seen[post.ID] = struct{}{}
		result = append(result, post)
	}
	return result
}
