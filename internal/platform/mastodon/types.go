// Package mastodon はMastodon系（ActivityPub）プラットフォームのAPIクライアント、
// identity正規化、スレッド参加者解決を提供する。
package mastodon

import "time"

// Account はMastodon APIのアカウント表現。
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	// Acct はwebfingerハンドル。ローカルアカウントの場合はインスタンス部を含まない。
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
}

// Status はMastodon APIのステータス（投稿）表現。
// ContentはサニタイズされていないHTML。
type Status struct {
	ID                 string    `json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	InReplyToID        *string   `json:"in_reply_to_id"`
	InReplyToAccountID *string   `json:"in_reply_to_account_id"`
	Content            string    `json:"content"`
	Account            Account   `json:"account"`
	// Reblog はブースト対象の元ステータス。ブーストでない場合はnil。
	Reblog             *Status   `json:"reblog"`
	FavouritesCount    int       `json:"favourites_count"`
	ReblogsCount       int       `json:"reblogs_count"`
	RepliesCount       int       `json:"replies_count"`
	Favourited         bool      `json:"favourited"`
	Reblogged          bool      `json:"reblogged"`
}

// Context はステータスの会話コンテキスト（祖先・子孫）を表す。
// /api/v1/statuses/{id}/context のレスポンス。
type Context struct {
	Ancestors   []Status `json:"ancestors"`
	Descendants []Status `json:"descendants"`
}
