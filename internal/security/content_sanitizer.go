// ContentSanitizerService はMastodon系プラットフォームから取得した
// HTML形式の投稿本文をサニタイズし、XSS等のリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// Mastodonが投稿本文に生成するタグのみを通過させる。
// Blueskyの投稿本文はプレーンテキストのためサニタイズ対象外。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// タイムライン正規化時、投稿本文がAPI境界を越える前に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// Mastodonが生成するタグ（p, br, a, span, del, pre, code, blockquote,
	// strong, em, ul, ol, li）のみを通過させ、script, iframe, style タグ
	// およびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にMastodonの投稿本文向けのbluemondayポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, span, del, pre, code, blockquote, strong, em, ul, ol, li
//   - spanタグ: メンション・ハッシュタグ表示用のclass属性
//     （h-card, mention, hashtag, invisible, ellipsis）のみ許可
//   - aタグ: href属性を許可、target="_blank" と rel="noreferrer noopener" を強制付与
//   - script, iframe, style および全てのon*イベント属性は許可リスト外のため除去
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "del",
		"blockquote", "pre", "code",
		"strong", "em",
		"ul", "ol", "li",
	)

	// Mastodonはメンション・ハッシュタグをspan/aのclassでマークアップする
	p.AllowAttrs("class").Matching(
		bluemonday.SpaceSeparatedTokens,
	).OnElements("span", "a")

	// リンクの設定:
	// - href属性を許可、相対URLは不許可
	// - target="_blank" と rel="noreferrer noopener" を強制付与
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})
	p.AllowURLSchemeWithCustomPolicy("http", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
