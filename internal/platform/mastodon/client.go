package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/hitoshi/crossfeed/internal/model"
)

const (
	// maxFollowingPages はフォロー一覧取得のページ数上限。
	// Linkヘッダーページネーションの暴走を防ぐ。
	maxFollowingPages = 20
	// followingPageLimit は1ページあたりのフォロー取得件数（Mastodon APIの上限は80）。
	followingPageLimit = 80
)

// Client はMastodon REST APIのクライアント。
// 1つの連携アカウント（インスタンス＋トークン）に対応する。
// キャッシュは持たない（キャッシュは呼び出し元の責務）。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string // インスタンスのベースURL（例: https://mastodon.social）
	accessToken string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, accessToken string) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		baseURL:     baseURL,
		accessToken: accessToken,
	}
}

// HomeTimeline はホームタイムラインの最新ステータスを取得する。
func (c *Client) HomeTimeline(ctx context.Context, limit int) ([]Status, error) {
	endpoint := fmt.Sprintf("%s/api/v1/timelines/home?limit=%s", c.baseURL, timelineLimitParam(limit))

	var statuses []Status
	if _, err := c.getJSON(ctx, endpoint, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// StatusContext はステータスの会話コンテキスト（祖先・子孫）を取得する。
// ステータスが存在しない場合はnot_found種別のResolveErrorを返す。
func (c *Client) StatusContext(ctx context.Context, statusID string) (*Context, error) {
	endpoint := fmt.Sprintf("%s/api/v1/statuses/%s/context", c.baseURL, url.PathEscape(statusID))

	var result Context
	if _, err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Following は指定アカウントのフォロー一覧を全ページ取得する。
// MastodonのページネーションはLinkヘッダーのrel="next"で辿る。
func (c *Client) Following(ctx context.Context, accountID string) ([]Account, error) {
	endpoint := fmt.Sprintf("%s/api/v1/accounts/%s/following?limit=%d",
		c.baseURL, url.PathEscape(accountID), followingPageLimit)

	var all []Account
	for page := 0; page < maxFollowingPages && endpoint != ""; page++ {
		var accounts []Account
		next, err := c.getJSON(ctx, endpoint, &accounts)
		if err != nil {
			return nil, err
		}
		all = append(all, accounts...)
		endpoint = next
	}
	return all, nil
}

// linkNextRe はLinkヘッダーからrel="next"のURLを抽出する。
var linkNextRe = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// getJSON はGETリクエストを実行し、レスポンスJSONをデコードする。
// 戻り値はLinkヘッダーのrel="next" URL（存在しない場合は空文字列）。
// 失敗はmodel.ResolveErrorに分類される:
// 接続失敗・タイムアウト・4xx/5xx → network、404/410 → not_found、不正JSON → decode。
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", model.NewResolveError(model.ResolveErrorNetwork, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("User-Agent", "Crossfeed/1.0")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Mastodon APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return "", model.NewResolveError(model.ResolveErrorNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Mastodon APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		kind := model.ResolveErrorNetwork
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			kind = model.ResolveErrorNotFound
		}
		return "", model.NewResolveError(kind,
			fmt.Errorf("Mastodon APIがステータス %d を返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.NewResolveError(model.ResolveErrorNetwork,
			fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("Mastodon APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return "", model.NewResolveError(model.ResolveErrorDecode,
			fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err))
	}

	next := ""
	if m := linkNextRe.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
		next = m[1]
	}
	return next, nil
}

// timelineLimitParam はlimitクエリの値を正規化する。Mastodonの上限は40。
func timelineLimitParam(limit int) string {
	if limit <= 0 || limit > 40 {
		limit = 40
	}
	return strconv.Itoa(limit)
}
