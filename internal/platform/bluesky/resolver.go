package bluesky

import (
	"context"
	"fmt"

	"github.com/hitoshi/crossfeed/internal/model"
)

// Resolver はBlueskyのスレッド参加者解決を行う。
// ステートレスであり、内部キャッシュは持たない（キャッシュは呼び出し元の責務）。
type Resolver struct {
	client *Client
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// ResolveParticipants は投稿のスレッド参加者集合を解決する。
// スレッドエンドポイント1回の呼び出しで親チェーンとリプライツリーの全著者と
// 投稿自身の著者を収集し、重複排除した集合を返す。
// プラットフォーム固有ID（AT URI）が無い場合、またはAPI呼び出しが失敗した場合は
// model.ResolveErrorを返す。
func (r *Resolver) ResolveParticipants(ctx context.Context, post *model.UnifiedPost) (model.IdentitySet, error) {
	if post.PlatformSpecificID == "" {
		return nil, model.NewResolveError(model.ResolveErrorNotFound,
			fmt.Errorf("投稿にプラットフォーム固有IDがありません: %s", post.ID))
	}

	thread, err := r.client.GetPostThread(ctx, post.PlatformSpecificID)
	if err != nil {
		return nil, err
	}

	participants := model.NewIdentitySet(post.Author)
	collectAuthors(thread, participants)

	return participants, nil
}

// collectAuthors はスレッドツリーを再帰的に辿り、全ノードの著者を集合に追加する。
// notFoundPost/blockedPostノード（Postがnil）はスキップする。
func collectAuthors(node *ThreadNode, participants model.IdentitySet) {
	if node == nil {
		return
	}
	if node.Type == threadViewPostType && node.Post != nil {
		participants.Add(NormalizeActor(node.Post.Author))
	}
	collectAuthors(node.Parent, participants)
	for _, reply := range node.Replies {
		collectAuthors(reply, participants)
	}
}
