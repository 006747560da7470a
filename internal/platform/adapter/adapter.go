// Package adapter は各プラットフォームクライアントをタイムライン組み立て・
// フォロー集約・スレッド解決の各インターフェースに適合させる。
// クライアントは連携アカウントの認証情報を使ってリクエストごとに構築する。
package adapter

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hitoshi/crossfeed/internal/model"
)

// Sanitizer は投稿本文HTMLのサニタイズインターフェース。
// security.NewContentSanitizer() が実装する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// AccountLister はスレッド解決時に認証情報を引くための連携アカウント参照。
// repository.AccountRepository が実装する。
type AccountLister interface {
	List(ctx context.Context) ([]model.LinkedAccount, error)
}

// firstAccount は指定プラットフォームの連携アカウントを1件返す。
// スレッド解決はどのアカウントの認証情報でも同じ結果になるため、先頭を使う。
func firstAccount(ctx context.Context, lister AccountLister, platform model.Platform) (*model.LinkedAccount, error) {
	accounts, err := lister.List(ctx)
	if err != nil {
		return nil, model.NewResolveError(model.ResolveErrorNetwork, err)
	}
	for i := range accounts {
		if accounts[i].Platform == platform {
			return &accounts[i], nil
		}
	}
	return nil, model.NewResolveError(model.ResolveErrorNotFound,
		fmt.Errorf("プラットフォーム %s の連携アカウントがありません", platform))
}

// instanceHost はインスタンスURLからホスト名を取り出す。
// 解析できない場合は入力をそのまま返す（acct補完の欠けで処理を止めない）。
func instanceHost(instanceURL string) string {
	u, err := url.Parse(instanceURL)
	if err != nil || u.Host == "" {
		return instanceURL
	}
	return u.Host
}
