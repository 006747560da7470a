// Package bluesky はBluesky（AT Protocol）プラットフォームのXRPCクライアント、
// identity正規化、スレッド参加者解決を提供する。
package bluesky

import "time"

// Actor はBluesky APIのアカウント表現。
type Actor struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName"`
}

// RecordReplyRef はレコード内のリプライ参照（URIのみ）。
type RecordReplyRef struct {
	URI string `json:"uri"`
}

// RecordReply は投稿レコードのリプライ情報。
type RecordReply struct {
	Root   RecordReplyRef `json:"root"`
	Parent RecordReplyRef `json:"parent"`
}

// EmbedRecord は引用埋め込みの参照先レコード。
type EmbedRecord struct {
	URI string `json:"uri"`
}

// Embed は投稿レコードの埋め込み。引用投稿の抽出にのみ使用する。
type Embed struct {
	Record *EmbedRecord `json:"record"`
}

// Record は投稿の本文レコード（app.bsky.feed.post）。
type Record struct {
	Text      string       `json:"text"`
	CreatedAt time.Time    `json:"createdAt"`
	Reply     *RecordReply `json:"reply"`
	Embed     *Embed       `json:"embed"`
}

// Viewer は閲覧者視点の投稿状態。Like/Repostは対応レコードのURI（未操作ならnil）。
type Viewer struct {
	Like   *string `json:"like"`
	Repost *string `json:"repost"`
}

// PostView は投稿のビュー表現（app.bsky.feed.defs#postView）。
type PostView struct {
	URI         string  `json:"uri"`
	CID         string  `json:"cid"`
	Author      Actor   `json:"author"`
	Record      Record  `json:"record"`
	LikeCount   int     `json:"likeCount"`
	RepostCount int     `json:"repostCount"`
	ReplyCount  int     `json:"replyCount"`
	Viewer      *Viewer `json:"viewer"`
}

// ReplyRef はフィード項目のリプライ参照。ルート・親の投稿ビューを含む。
type ReplyRef struct {
	Root   *PostView `json:"root"`
	Parent *PostView `json:"parent"`
}

// reasonRepostType はリポスト理由の$type値。
const reasonRepostType = "app.bsky.feed.defs#reasonRepost"

// Reason はフィード項目がタイムラインに現れた理由（リポスト等）。
type Reason struct {
	Type string `json:"$type"`
	By   Actor  `json:"by"`
}

// FeedViewPost はタイムラインの1項目（app.bsky.feed.defs#feedViewPost）。
type FeedViewPost struct {
	Post   PostView  `json:"post"`
	Reply  *ReplyRef `json:"reply"`
	Reason *Reason   `json:"reason"`
}

// TimelineResponse はgetTimelineのレスポンス。
type TimelineResponse struct {
	Feed   []FeedViewPost `json:"feed"`
	Cursor string         `json:"cursor"`
}

// threadViewPostType はスレッドビューの$type値。
const threadViewPostType = "app.bsky.feed.defs#threadViewPost"

// ThreadNode はgetPostThreadのスレッドノード。
// $typeがthreadViewPost以外（notFoundPost, blockedPost）の場合はPostがnilになる。
type ThreadNode struct {
	Type    string        `json:"$type"`
	Post    *PostView     `json:"post"`
	Parent  *ThreadNode   `json:"parent"`
	Replies []*ThreadNode `json:"replies"`
}

// ThreadResponse はgetPostThreadのレスポンス。
type ThreadResponse struct {
	Thread ThreadNode `json:"thread"`
}

// FollowsResponse はgetFollowsのレスポンス。
type FollowsResponse struct {
	Follows []Actor `json:"follows"`
	Cursor  string  `json:"cursor"`
}
