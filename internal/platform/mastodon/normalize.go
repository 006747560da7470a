package mastodon

import (
	"strings"

	"github.com/hitoshi/crossfeed/internal/model"
)

// NormalizeAccount はMastodonアカウントをプラットフォーム修飾identityに正規化する。
// 値にはwebfinger形式のacct（user@instance）を使用する。
// ローカルアカウントのacctはインスタンス部を含まないため、instanceHostで補完する。
// acctが空の場合はアカウントIDに、それも空の場合はURLにフォールバックする
// （正規化の欠けでフィルタパイプラインを止めない）。
func NormalizeAccount(a Account, instanceHost string) model.UserIdentity {
	value := a.Acct
	if value == "" {
		value = a.ID
	}
	if value == "" {
		value = a.URL
	}
	if value != "" && value == a.Acct && !strings.Contains(value, "@") && instanceHost != "" {
		value = value + "@" + instanceHost
	}
	return model.UserIdentity{
		Value:    value,
		Platform: model.PlatformMastodon,
	}
}

// ToUnifiedPost はMastodonステータスを統一投稿モデルに変換する。
// sanitizeは投稿本文HTMLのサニタイズ関数（nilの場合は素通し）。
// ブーストは元ステータスへの一方向の値参照として表現する
// （元ステータス側のOriginalは常にnilで、循環参照は形成されない）。
func ToUnifiedPost(s Status, instanceHost string, sanitize func(string) string) model.UnifiedPost {
	if sanitize == nil {
		sanitize = func(html string) string { return html }
	}

	author := NormalizeAccount(s.Account, instanceHost)
	post := model.UnifiedPost{
		ID:        string(model.PlatformMastodon) + ":" + s.ID,
		Platform:  model.PlatformMastodon,
		Author:    author,
		Content:   sanitize(s.Content),
		CreatedAt: s.CreatedAt,
		Counts: model.PostCounts{
			Likes:   s.FavouritesCount,
			Reposts: s.ReblogsCount,
			Replies: s.RepliesCount,
		},
		IsLiked:            s.Favourited,
		IsReposted:         s.Reblogged,
		PlatformSpecificID: s.ID,
	}

	if s.InReplyToID != nil && *s.InReplyToID != "" {
		post.InReplyToID = *s.InReplyToID
		// Mastodonのタイムラインペイロードは会話ルートの著者を含まないため、
		// 親著者がリプライ著者自身である場合のみRootAuthorを設定する
		// （セルフリプライ判定に必要なのはこの等価性のみ）。
		if s.InReplyToAccountID != nil && *s.InReplyToAccountID == s.Account.ID {
			post.RootAuthor = &author
		}
	}

	if s.Reblog != nil {
		original := ToUnifiedPost(*s.Reblog, instanceHost, sanitize)
		// ブーストのネストは1段まで（Mastodon API上もネストしない）
		original.Original = nil
		post.Original = &original
		// ブースト表示は元投稿の本文を使用する
		post.Content = original.Content
	}

	return post
}
