package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/crossfeed/internal/cache"
	"github.com/hitoshi/crossfeed/internal/model"
)

// ThreadResolver はスレッド参加者解決のインターフェース。
// プラットフォームごとの実装（mastodon.Resolver、bluesky.Resolver）が提供する。
type ThreadResolver interface {
	ResolveParticipants(ctx context.Context, post *model.UnifiedPost) (model.IdentitySet, error)
}

// MetricsRecorder はフィルタ判定と解決レイテンシの計測インターフェース。nilでもよい。
type MetricsRecorder interface {
	FilterDecision(reason Reason)
	ResolveDuration(platform model.Platform, elapsed time.Duration)
}

// Options はCoordinatorの動作パラメータ。
type Options struct {
	// ThreadTTL はスレッド参加者キャッシュのTTL。
	ThreadTTL time.Duration
	// ResolveTimeout は参加者解決1回あたりのタイムアウト。
	ResolveTimeout time.Duration
	// MinFollowed は包含に必要なスレッド内のフォロー中参加者数。
	MinFollowed int
	// MaxConcurrent はFilterTimelineの同時判定数。
	MaxConcurrent int
	// Enabled はフィルタの初期状態。
	Enabled bool
}

// Coordinator はタイムライン構築時のリプライフィルタ判定を統括する。
// プラットフォームタグで選択されるリゾルバ群、TTL付き参加者キャッシュ、
// 実行時に切り替え可能な機能フラグを保持する。
// 解決失敗は常にフェイルオープン（表示する側に倒す）で処理する。
type Coordinator struct {
	resolvers      map[model.Platform]ThreadResolver
	threadCache    *cache.Expiring[string, model.IdentitySet]
	threadTTL      time.Duration
	resolveTimeout time.Duration
	minFollowed    int
	maxConcurrent  int
	enabled        atomic.Bool
	logger         *slog.Logger
	metrics        MetricsRecorder
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。metricsはnilでもよい。
func NewCoordinator(
	resolvers map[model.Platform]ThreadResolver,
	threadCache *cache.Expiring[string, model.IdentitySet],
	opts Options,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Coordinator {
	if opts.ThreadTTL <= 0 {
		opts.ThreadTTL = 5 * time.Minute
	}
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 8 * time.Second
	}
	if opts.MinFollowed <= 0 {
		opts.MinFollowed = 2
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}

	c := &Coordinator{
		resolvers:      resolvers,
		threadCache:    threadCache,
		threadTTL:      opts.ThreadTTL,
		resolveTimeout: opts.ResolveTimeout,
		minFollowed:    opts.MinFollowed,
		maxConcurrent:  opts.MaxConcurrent,
		logger:         logger,
		metrics:        metrics,
	}
	c.enabled.Store(opts.Enabled)
	return c
}

// Enabled はフィルタの現在の有効状態を返す。
func (c *Coordinator) Enabled() bool {
	return c.enabled.Load()
}

// SetEnabled はフィルタの有効状態を切り替える。
// 再起動不要で、以降のShouldInclude呼び出しに即座に反映される。
func (c *Coordinator) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
	c.logger.Info("リプライフィルタの状態を変更した", "enabled", enabled)
}

// ShouldInclude は1投稿のフィルタ判定を行う。
// 判定順序:
//  1. フィルタ無効なら無条件で包含（診断用のエスケープハッチ）
//  2. トップレベル投稿は無条件で包含
//  3. フォロー中アカウントのセルフリプライ（ルート著者＝投稿著者）は包含
//  4. スレッド参加者を解決（キャッシュ優先）し、フォロー中参加者が閾値以上なら包含
//  5. 解決に失敗した場合はフェイルオープンで包含
func (c *Coordinator) ShouldInclude(ctx context.Context, post *model.UnifiedPost, followed model.IdentitySet) Decision {
	d := c.decide(ctx, post, followed)

	if c.metrics != nil {
		c.metrics.FilterDecision(d.Reason)
	}
	c.logger.Debug("フィルタ判定",
		"post_id", post.ID,
		"thread_key", post.ThreadKey(),
		"include", d.Include,
		"reason", d.Reason,
	)
	return d
}

func (c *Coordinator) decide(ctx context.Context, post *model.UnifiedPost, followed model.IdentitySet) Decision {
	if !c.enabled.Load() {
		return Decision{Include: true, Reason: ReasonTopLevel}
	}
	if !post.IsReply() {
		return Decision{Include: true, Reason: ReasonTopLevel}
	}

	if followed.Contains(post.Author) && post.RootAuthor != nil && *post.RootAuthor == post.Author {
		return Decision{Include: true, Reason: ReasonSelfReplyFromFollowed}
	}

	participants, err := c.threadParticipants(ctx, post)
	if err != nil {
		// フィルタのエラーでコンテンツを隠さない
		c.logger.Warn("スレッド参加者の解決に失敗（フェイルオープンで表示）",
			"post_id", post.ID,
			"thread_key", post.ThreadKey(),
			"error", err,
		)
		return Decision{Include: true, Reason: ReasonErrorFailOpen}
	}

	if participants.IntersectCount(followed) >= c.minFollowed {
		return Decision{Include: true, Reason: ReasonThreadHasEnoughFollowedParticipants}
	}
	return Decision{Include: false, Reason: ReasonFilteredOut}
}

// threadParticipants はスレッド参加者集合をキャッシュ経由で取得する。
// キャッシュミス時はリゾルバを呼び出し、成功した場合のみキャッシュに格納する。
// 同一スレッドの並行解決は直列化しない（解決は副作用のない読み取りのため、
// 重複呼び出しは冪等でネットワークコスト以外の害がない）。
func (c *Coordinator) threadParticipants(ctx context.Context, post *model.UnifiedPost) (model.IdentitySet, error) {
	key := post.ThreadKey()
	if set, ok := c.threadCache.Get(key); ok {
		return set, nil
	}

	resolver, ok := c.resolvers[post.Platform]
	if !ok {
		return nil, model.NewResolveError(model.ResolveErrorNotFound,
			fmt.Errorf("プラットフォーム %s のリゾルバが登録されていません", post.Platform))
	}

	rctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	start := time.Now()
	set, err := resolver.ResolveParticipants(rctx, post)
	if c.metrics != nil {
		c.metrics.ResolveDuration(post.Platform, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	c.threadCache.Put(key, set, c.threadTTL)
	return set, nil
}

// FilterTimeline は投稿リストを並行判定し、包含される投稿だけを元の相対順序で返す。
// 判定の完了順序は保証しないが、返却順序は入力順序を保存する。
func (c *Coordinator) FilterTimeline(ctx context.Context, posts []model.UnifiedPost, followed model.IdentitySet) []model.UnifiedPost {
	if len(posts) == 0 {
		return posts
	}

	include := make([]bool, len(posts))
	sem := make(chan struct{}, c.maxConcurrent)
	var wg sync.WaitGroup

	for i := range posts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			include[i] = c.ShouldInclude(ctx, &posts[i], followed).Include
		}(i)
	}
	wg.Wait()

	filtered := make([]model.UnifiedPost, 0, len(posts))
	for i, post := range posts {
		if include[i] {
			filtered = append(filtered, post)
		}
	}
	return filtered
}
