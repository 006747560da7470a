// Package model はドメインモデルを定義する。
package model

// Platform は投稿・アカウントの所属プラットフォームを表す。
type Platform string

const (
	// PlatformMastodon はMastodon系（ActivityPub）プラットフォーム。
	PlatformMastodon Platform = "mastodon"
	// PlatformBluesky はBluesky（AT Protocol）プラットフォーム。
	PlatformBluesky Platform = "bluesky"
	// PlatformRSS はRSS/Atomフィードソース。スレッド概念を持たない。
	PlatformRSS Platform = "rss"
)

// UserIdentity はプラットフォーム修飾されたユーザー識別子を表す。
// 値は比較可能なイミュータブルな値型で、(Value, Platform) の組で等価性を判定する。
// 同一人物でもプラットフォームが異なれば別のidentityとして扱う
// （プラットフォーム横断の同一人物リンクは行わない）。
// 表示用フォーマットには使用しないこと。
type UserIdentity struct {
	// Value はプラットフォームネイティブのハンドルまたはURI。
	// Mastodonではwebfinger形式のacct（user@instance）、BlueskyではDID。
	Value string
	// Platform は所属プラットフォーム。
	Platform Platform
}

// IdentitySet はUserIdentityの重複なし集合。
// スレッド参加者やフォロー中アカウントの集合表現に使用する。
// map由来のためゼロ値は使用せず、NewIdentitySetで生成すること。
type IdentitySet map[UserIdentity]struct{}

// NewIdentitySet は指定されたidentityを含む新しいIdentitySetを生成する。
func NewIdentitySet(ids ...UserIdentity) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add はidentityを集合に追加する。
func (s IdentitySet) Add(id UserIdentity) {
	s[id] = struct{}{}
}

// Contains はidentityが集合に含まれるかを返す。
func (s IdentitySet) Contains(id UserIdentity) bool {
	_, ok := s[id]
	return ok
}

// Len は集合の要素数を返す。
func (s IdentitySet) Len() int {
	return len(s)
}

// Union は2つの集合の和集合を新しい集合として返す。引数はnilでもよい。
func (s IdentitySet) Union(other IdentitySet) IdentitySet {
	result := make(IdentitySet, len(s)+len(other))
	for id := range s {
		result[id] = struct{}{}
	}
	for id := range other {
		result[id] = struct{}{}
	}
	return result
}

// IntersectCount は他の集合との共通要素数を返す。
// フィルタ判定（スレッド内のフォロー中参加者数）に使用する。
func (s IdentitySet) IntersectCount(other IdentitySet) int {
	// 小さい方を走査する
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	count := 0
	for id := range small {
		if _, ok := large[id]; ok {
			count++
		}
	}
	return count
}
