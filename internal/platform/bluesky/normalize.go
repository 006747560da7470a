package bluesky

import "github.com/hitoshi/crossfeed/internal/model"

// NormalizeActor はBlueskyアクターをプラットフォーム修飾identityに正規化する。
// 値にはDIDを使用する（ハンドルは変更されうるがDIDは安定している）。
// DIDが空の場合はハンドルにフォールバックする
// （正規化の欠けでフィルタパイプラインを止めない）。
func NormalizeActor(a Actor) model.UserIdentity {
	value := a.DID
	if value == "" {
		value = a.Handle
	}
	return model.UserIdentity{
		Value:    value,
		Platform: model.PlatformBluesky,
	}
}

// ToUnifiedPost はBlueskyのタイムライン項目を統一投稿モデルに変換する。
// リポストは元投稿への一方向の値参照として表現する
// （元投稿側のOriginalは常にnilで、循環参照は形成されない）。
func ToUnifiedPost(item FeedViewPost) model.UnifiedPost {
	post := convertPostView(item.Post)

	// リプライ情報: レコードのルートURIとフィード項目のルート著者から設定する
	if item.Post.Record.Reply != nil {
		post.InReplyToID = item.Post.Record.Reply.Parent.URI
		if item.Reply != nil && item.Reply.Root != nil {
			rootAuthor := NormalizeActor(item.Reply.Root.Author)
			post.RootAuthor = &rootAuthor
		}
	}

	// リポスト: 外側の著者はリポストした人、元投稿はOriginalに保持する
	if item.Reason != nil && item.Reason.Type == reasonRepostType {
		original := post
		original.Original = nil
		repost := original
		repost.Author = NormalizeActor(item.Reason.By)
		repost.Original = &original
		return repost
	}

	return post
}

// convertPostView はPostViewを統一投稿モデルに変換する。
func convertPostView(pv PostView) model.UnifiedPost {
	post := model.UnifiedPost{
		ID:       string(model.PlatformBluesky) + ":" + pv.URI,
		Platform: model.PlatformBluesky,
		Author:   NormalizeActor(pv.Author),
		// Blueskyの本文はプレーンテキストのためサニタイズ不要
		Content:   pv.Record.Text,
		CreatedAt: pv.Record.CreatedAt,
		Counts: model.PostCounts{
			Likes:   pv.LikeCount,
			Reposts: pv.RepostCount,
			Replies: pv.ReplyCount,
		},
		PlatformSpecificID: pv.URI,
	}

	if pv.Viewer != nil {
		post.IsLiked = pv.Viewer.Like != nil
		post.IsReposted = pv.Viewer.Repost != nil
	}

	if pv.Record.Embed != nil && pv.Record.Embed.Record != nil {
		post.QuotedID = pv.Record.Embed.Record.URI
	}

	return post
}
