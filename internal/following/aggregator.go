// Package following は連携アカウント横断のフォロー集合の取得と集約を提供する。
package following

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/crossfeed/internal/cache"
	"github.com/hitoshi/crossfeed/internal/model"
)

// Fetcher は1つの連携アカウントのフォロー集合を取得するインターフェース。
// プラットフォームごとの実装（Mastodonクライアント、Blueskyクライアント）が提供する。
type Fetcher interface {
	FetchFollowing(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error)
}

// FetcherFunc は関数をFetcherとして使うためのアダプタ。
type FetcherFunc func(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error)

// FetchFollowing はFetcherインターフェースを実装する。
func (f FetcherFunc) FetchFollowing(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
	return f(ctx, account)
}

// MetricsRecorder はフォロー取得失敗の計測インターフェース。nilでもよい。
type MetricsRecorder interface {
	FollowingFetchFailed(platform string)
}

// Aggregator は全連携アカウントのフォロー集合を並行取得し、和集合に集約する。
// アカウント単位でTTL付きキャッシュを持ち、取得失敗したアカウントは
// 空の寄与としてスキップする（フェイルオープン）。
type Aggregator struct {
	fetchers      map[model.Platform]Fetcher
	cache         *cache.Expiring[string, model.IdentitySet]
	ttl           time.Duration
	maxConcurrent int
	logger        *slog.Logger
	metrics       MetricsRecorder
}

// NewAggregator はAggregatorの新しいインスタンスを生成する。
// metricsはnilでもよい。
func NewAggregator(
	fetchers map[model.Platform]Fetcher,
	followingCache *cache.Expiring[string, model.IdentitySet],
	ttl time.Duration,
	maxConcurrent int,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Aggregator{
		fetchers:      fetchers,
		cache:         followingCache,
		ttl:           ttl,
		maxConcurrent: maxConcurrent,
		logger:        logger,
		metrics:       metrics,
	}
}

// AggregateFollowing は全連携アカウントのフォロー集合の和集合を返す。
// アカウントごとに並行取得し（同時実行数はmaxConcurrentで制限）、
// 一部のアカウントで取得が失敗してもエラーにはせず、成功した分だけを集約する。
// 失敗したアカウントの結果はキャッシュに書き込まない。
func (a *Aggregator) AggregateFollowing(ctx context.Context, accounts []model.LinkedAccount) model.IdentitySet {
	union := model.NewIdentitySet()
	if len(accounts) == 0 {
		return union
	}

	sem := make(chan struct{}, a.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, account := range accounts {
		wg.Add(1)
		go func(acct model.LinkedAccount) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			set := a.followingFor(ctx, &acct)
			if set == nil {
				return
			}

			mu.Lock()
			for id := range set {
				union.Add(id)
			}
			mu.Unlock()
		}(account)
	}
	wg.Wait()

	return union
}

// followingFor は1アカウントのフォロー集合をキャッシュ経由で取得する。
// 取得に失敗した場合はnilを返す（呼び出し元はそのアカウントをスキップする）。
func (a *Aggregator) followingFor(ctx context.Context, account *model.LinkedAccount) model.IdentitySet {
	if set, ok := a.cache.Get(account.ID); ok {
		return set
	}

	fetcher, ok := a.fetchers[account.Platform]
	if !ok {
		a.logger.Warn("フォロー取得未対応のプラットフォーム",
			"account_id", account.ID,
			"platform", account.Platform,
		)
		return nil
	}

	set, err := fetcher.FetchFollowing(ctx, account)
	if err != nil {
		a.logger.Warn("フォロー集合の取得に失敗（このアカウントの寄与を空として続行）",
			"account_id", account.ID,
			"platform", account.Platform,
			"error", err,
		)
		if a.metrics != nil {
			a.metrics.FollowingFetchFailed(string(account.Platform))
		}
		return nil
	}

	a.cache.Put(account.ID, set, a.ttl)
	return set
}
