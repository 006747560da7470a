package model

import "time"

// PostCounts は投稿のリアクション数を表す。
type PostCounts struct {
	Likes   int
	Reposts int
	Replies int
}

// UnifiedPost は各プラットフォームの投稿を正規化した統一モデル。
// タイムライン正規化時にAPIレスポンスから生成され、以降イミュータブルとして扱う。
// 新しいタイムラインページ・リフレッシュで置き換えられたら破棄される。
type UnifiedPost struct {
	// ID はタイムラインスナップショット内で一意の識別子。
	// "platform:platformSpecificID" 形式で、リフレッシュをまたいで安定している。
	ID       string
	Platform Platform
	Author   UserIdentity

	// Content は表示用本文。Mastodonの場合はサニタイズ済みHTML。
	Content    string
	CreatedAt  time.Time
	Counts     PostCounts
	IsLiked    bool
	IsReposted bool

	// Original はブースト/リポスト対象の元投稿。値コピーへの一方向参照であり、
	// 循環参照を形成しない（元投稿のOriginalは常にnil）。
	Original *UnifiedPost

	// PlatformSpecificID はプラットフォームAPIで使用するネイティブID。
	// MastodonではステータスID、BlueskyではAT URI。
	PlatformSpecificID string

	// QuotedID は引用投稿のネイティブID（存在する場合のみ）。
	// ポインタグラフではなくIDによる参照で表現する。
	QuotedID string

	// InReplyToID はリプライ先投稿のネイティブID。空ならトップレベル投稿。
	InReplyToID string

	// RootAuthor は会話ルート投稿の著者（判明している場合のみ）。
	// Blueskyはタイムラインペイロードにルート著者を含む。
	// Mastodonはin_reply_to_account_idしか持たないため親著者で近似する。
	RootAuthor *UserIdentity
}

// IsReply はこの投稿がリプライかどうかを返す。
func (p *UnifiedPost) IsReply() bool {
	return p.InReplyToID != ""
}

// ThreadKey は参加者キャッシュのキーを返す。
// スナップショットローカルな値に依存せず、リフレッシュをまたいで安定している。
func (p *UnifiedPost) ThreadKey() string {
	return string(p.Platform) + ":" + p.PlatformSpecificID
}
