package mastodon

import (
	"context"
	"fmt"

	"github.com/hitoshi/crossfeed/internal/model"
)

// Resolver はMastodonのスレッド参加者解決を行う。
// ステートレスであり、内部キャッシュは持たない（キャッシュは呼び出し元の責務）。
type Resolver struct {
	client       *Client
	instanceHost string
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(client *Client, instanceHost string) *Resolver {
	return &Resolver{
		client:       client,
		instanceHost: instanceHost,
	}
}

// ResolveParticipants は投稿のスレッド参加者集合を解決する。
// コンテキストエンドポイント1回の呼び出しで祖先・子孫の全著者と
// 投稿自身の著者を収集し、重複排除した集合を返す。
// プラットフォーム固有IDが無い場合、またはAPI呼び出しが失敗した場合は
// model.ResolveErrorを返す。
func (r *Resolver) ResolveParticipants(ctx context.Context, post *model.UnifiedPost) (model.IdentitySet, error) {
	if post.PlatformSpecificID == "" {
		return nil, model.NewResolveError(model.ResolveErrorNotFound,
			fmt.Errorf("投稿にプラットフォーム固有IDがありません: %s", post.ID))
	}

	threadCtx, err := r.client.StatusContext(ctx, post.PlatformSpecificID)
	if err != nil {
		return nil, err
	}

	participants := model.NewIdentitySet(post.Author)
	for _, s := range threadCtx.Ancestors {
		participants.Add(NormalizeAccount(s.Account, r.instanceHost))
	}
	for _, s := range threadCtx.Descendants {
		participants.Add(NormalizeAccount(s.Account, r.instanceHost))
	}

	return participants, nil
}
