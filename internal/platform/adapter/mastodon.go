package adapter

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/crossfeed/internal/model"
	"github.com/hitoshi/crossfeed/internal/platform/mastodon"
)

// MastodonAdapter はMastodonクライアントをタイムライン取得と
// フォロー集合取得のインターフェースに適合させる。
type MastodonAdapter struct {
	httpClient *http.Client
	sanitizer  Sanitizer
	logger     *slog.Logger
}

// NewMastodonAdapter はMastodonAdapterを生成する。
func NewMastodonAdapter(httpClient *http.Client, sanitizer Sanitizer, logger *slog.Logger) *MastodonAdapter {
	return &MastodonAdapter{
		httpClient: httpClient,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

func (a *MastodonAdapter) clientFor(account *model.LinkedAccount) *mastodon.Client {
	return mastodon.NewClient(a.httpClient, a.logger, account.InstanceURL, account.AccessToken)
}

// FetchHomeTimeline は連携アカウントのホームタイムラインを統一投稿モデルで返す。
// 本文HTMLはサニタイズし、acctはインスタンスホストで修飾して正規化する。
func (a *MastodonAdapter) FetchHomeTimeline(ctx context.Context, account *model.LinkedAccount, limit int) ([]model.UnifiedPost, error) {
	statuses, err := a.clientFor(account).HomeTimeline(ctx, limit)
	if err != nil {
		return nil, err
	}

	host := instanceHost(account.InstanceURL)
	posts := make([]model.UnifiedPost, 0, len(statuses))
	for _, s := range statuses {
		posts = append(posts, mastodon.ToUnifiedPost(s, host, a.sanitizer.Sanitize))
	}
	return posts, nil
}

// FetchFollowing は連携アカウントのフォロー集合を返す。
func (a *MastodonAdapter) FetchFollowing(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
	accounts, err := a.clientFor(account).Following(ctx, account.AccountID)
	if err != nil {
		return nil, err
	}

	host := instanceHost(account.InstanceURL)
	set := model.NewIdentitySet()
	for _, acct := range accounts {
		set.Add(mastodon.NormalizeAccount(acct, host))
	}
	return set, nil
}

// MastodonThreadResolver はMastodonのスレッド参加者解決を
// 連携アカウントの認証情報で行うアダプタ。
// アカウントは解決時に引くため、実行時のアカウント登録・削除に追従する。
type MastodonThreadResolver struct {
	accounts   AccountLister
	httpClient *http.Client
	logger     *slog.Logger
}

// NewMastodonThreadResolver はMastodonThreadResolverを生成する。
func NewMastodonThreadResolver(accounts AccountLister, httpClient *http.Client, logger *slog.Logger) *MastodonThreadResolver {
	return &MastodonThreadResolver{
		accounts:   accounts,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ResolveParticipants は投稿のスレッド参加者集合を解決する。
// Mastodonの連携アカウントが存在しない場合はnot_foundのResolveErrorを返す。
func (r *MastodonThreadResolver) ResolveParticipants(ctx context.Context, post *model.UnifiedPost) (model.IdentitySet, error) {
	account, err := firstAccount(ctx, r.accounts, model.PlatformMastodon)
	if err != nil {
		return nil, err
	}

	client := mastodon.NewClient(r.httpClient, r.logger, account.InstanceURL, account.AccessToken)
	resolver := mastodon.NewResolver(client, instanceHost(account.InstanceURL))
	return resolver.ResolveParticipants(ctx, post)
}
