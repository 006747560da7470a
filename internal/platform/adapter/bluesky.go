package adapter

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/crossfeed/internal/model"
	"github.com/hitoshi/crossfeed/internal/platform/bluesky"
)

// BlueskyAdapter はBlueskyクライアントをタイムライン取得と
// フォロー集合取得のインターフェースに適合させる。
type BlueskyAdapter struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBlueskyAdapter はBlueskyAdapterを生成する。
func NewBlueskyAdapter(httpClient *http.Client, logger *slog.Logger) *BlueskyAdapter {
	return &BlueskyAdapter{
		httpClient: httpClient,
		logger:     logger,
	}
}

func (a *BlueskyAdapter) clientFor(account *model.LinkedAccount) *bluesky.Client {
	return bluesky.NewClient(a.httpClient, a.logger, account.InstanceURL, account.AccessToken)
}

// FetchHomeTimeline は連携アカウントのタイムラインを統一投稿モデルで返す。
func (a *BlueskyAdapter) FetchHomeTimeline(ctx context.Context, account *model.LinkedAccount, limit int) ([]model.UnifiedPost, error) {
	items, err := a.clientFor(account).GetTimeline(ctx, limit)
	if err != nil {
		return nil, err
	}

	posts := make([]model.UnifiedPost, 0, len(items))
	for _, item := range items {
		posts = append(posts, bluesky.ToUnifiedPost(item))
	}
	return posts, nil
}

// FetchFollowing は連携アカウントのフォロー集合を返す。
func (a *BlueskyAdapter) FetchFollowing(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
	actors, err := a.clientFor(account).GetFollows(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}

	set := model.NewIdentitySet()
	for _, actor := range actors {
		set.Add(bluesky.NormalizeActor(actor))
	}
	return set, nil
}

// BlueskyThreadResolver はBlueskyのスレッド参加者解決を
// 連携アカウントの認証情報で行うアダプタ。
// アカウントは解決時に引くため、実行時のアカウント登録・削除に追従する。
type BlueskyThreadResolver struct {
	accounts   AccountLister
	httpClient *http.Client
	logger     *slog.Logger
}

// NewBlueskyThreadResolver はBlueskyThreadResolverを生成する。
func NewBlueskyThreadResolver(accounts AccountLister, httpClient *http.Client, logger *slog.Logger) *BlueskyThreadResolver {
	return &BlueskyThreadResolver{
		accounts:   accounts,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ResolveParticipants は投稿のスレッド参加者集合を解決する。
// Blueskyの連携アカウントが存在しない場合はnot_foundのResolveErrorを返す。
func (r *BlueskyThreadResolver) ResolveParticipants(ctx context.Context, post *model.UnifiedPost) (model.IdentitySet, error) {
	account, err := firstAccount(ctx, r.accounts, model.PlatformBluesky)
	if err != nil {
		return nil, err
	}

	client := bluesky.NewClient(r.httpClient, r.logger, account.InstanceURL, account.AccessToken)
	return bluesky.NewResolver(client).ResolveParticipants(ctx, post)
}
