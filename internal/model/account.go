package model

import "time"

// LinkedAccount はユーザーが連携したプラットフォームアカウントを表す。
// アクセストークンの取得（OAuthフロー）は外部コラボレーターの責務で、
// ここでは登録済みの値を保持するだけ。
type LinkedAccount struct {
	ID string
	// Platform はmastodonまたはbluesky。RSSソースはRSSSourceで別管理する。
	Platform Platform
	// InstanceURL はMastodonインスタンスのベースURL（例: https://mastodon.social）。
	// Blueskyの場合はPDS/AppViewのベースURL。
	InstanceURL string
	// Handle は表示用のアカウントハンドル。
	Handle string
	// AccountID はプラットフォームネイティブのアカウントID（MastodonのID、BlueskyのDID）。
	AccountID string
	// AccessToken はAPI呼び出しに使用するトークン。
	AccessToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RSSSource は統一タイムラインに合流するRSS/Atomフィードソースを表す。
// スレッド概念を持たないため、生成される投稿は常にトップレベル扱いとなる。
type RSSSource struct {
	ID      string
	FeedURL string
	Title   string
	// ETag / LastModified は条件付きGET用に前回レスポンスの値を保持する。
	ETag         string
	LastModified string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
