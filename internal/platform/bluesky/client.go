package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/crossfeed/internal/model"
)

const (
	// maxFollowsPages はフォロー一覧取得のページ数上限。カーソルの暴走を防ぐ。
	maxFollowsPages = 20
	// followsPageLimit は1ページあたりのフォロー取得件数（APIの上限は100）。
	followsPageLimit = 100
)

// Client はBluesky XRPC APIのクライアント。
// 1つの連携アカウント（サービスURL＋トークン）に対応する。
// キャッシュは持たない（キャッシュは呼び出し元の責務）。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string // AppView/PDSのベースURL（例: https://bsky.social）
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

// GetTimeline はホームタイムラインの最新項目を取得する。
func (c *Client) GetTimeline(ctx context.Context, limit int) ([]FeedViewPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))

	var result TimelineResponse
	if err := c.getJSON(ctx, "app.bsky.feed.getTimeline", params, &result); err != nil {
		return nil, err
	}
	return result.Feed, nil
}

// GetPostThread は投稿のスレッド全体（親チェーン＋リプライツリー）を取得する。
// 投稿が存在しない場合はnot_found種別のResolveErrorを返す。
func (c *Client) GetPostThread(ctx context.Context, postURI string) (*ThreadNode, error) {
	params := url.Values{}
	params.Set("uri", postURI)

	var result ThreadResponse
	if err := c.getJSON(ctx, "app.bsky.feed.getPostThread", params, &result); err != nil {
		return nil, err
	}
	return &result.Thread, nil
}

// GetFollows は指定アクターのフォロー一覧を全ページ取得する。
// カーソルベースページネーションで辿る。
func (c *Client) GetFollows(ctx context.Context, actorDID string) ([]Actor, error) {
	var all []Actor
	cursor := ""
	for page := 0; page < maxFollowsPages; page++ {
		params := url.Values{}
		params.Set("actor", actorDID)
		params.Set("limit", fmt.Sprintf("%d", followsPageLimit))
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var result FollowsResponse
		if err := c.getJSON(ctx, "app.bsky.graph.getFollows", params, &result); err != nil {
			return nil, err
		}
		all = append(all, result.Follows...)

		if result.Cursor == "" || len(result.Follows) == 0 {
			break
		}
		cursor = result.Cursor
	}
	return all, nil
}

// getJSON はXRPCエンドポイントへのGETリクエストを実行し、レスポンスJSONをデコードする。
// 失敗はmodel.ResolveErrorに分類される:
// 接続失敗・タイムアウト・4xx/5xx → network、404 → not_found、不正JSON → decode。
func (c *Client) getJSON(ctx context.Context, method string, params url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s/xrpc/%s", c.baseURL, method)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.NewResolveError(model.ResolveErrorNetwork, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("User-Agent", "Crossfeed/1.0")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Bluesky APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return model.NewResolveError(model.ResolveErrorNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Bluesky APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
		)
		kind := model.ResolveErrorNetwork
		if resp.StatusCode == http.StatusNotFound {
			kind = model.ResolveErrorNotFound
		}
		return model.NewResolveError(kind,
			fmt.Errorf("Bluesky APIがステータス %d を返しました", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewResolveError(model.ResolveErrorNetwork,
			fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("Bluesky APIのレスポンスのパースに失敗しました",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return model.NewResolveError(model.ResolveErrorDecode,
			fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err))
	}

	return nil
}
