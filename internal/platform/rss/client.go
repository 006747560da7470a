package rss

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/crossfeed/internal/model"
)

// maxItemsPerFeed は1フィードから取り込む最大記事数。
// タイムライン合流用途のため、直近分だけで十分。
const maxItemsPerFeed = 20

// FetchResult はフィードフェッチの結果を表す。
// NotModifiedがtrueの場合、Postsはnilであり前回取得分を使い回せる。
type FetchResult struct {
	Posts        []model.UnifiedPost
	Title        string
	ETag         string
	LastModified string
	NotModified  bool
}

// Client はRSS/Atomフィードを取得し、統一投稿モデルへ変換する。
// ETag/Last-Modifiedによる条件付きGETに対応し、SSRF対策済みHTTPクライアントを使用する。
type Client struct {
	ssrfGuard SSRFValidator
	logger    *slog.Logger
	timeout   time.Duration
	maxSize   int64
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(ssrfGuard SSRFValidator, logger *slog.Logger, timeout time.Duration, maxSize int64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &Client{
		ssrfGuard: ssrfGuard,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Fetch はフィードを取得して統一投稿モデルのスライスに変換する。
// sourceにETag/LastModifiedが設定されていれば条件付きGETを行い、
// 304 Not Modifiedの場合はNotModified=trueの結果を返す。
// 変更があった場合は新しいETag/Last-Modifiedを結果に含める（永続化は呼び出し元の責務）。
func (c *Client) Fetch(ctx context.Context, source *model.RSSSource) (*FetchResult, error) {
	if err := c.ssrfGuard.ValidateURL(source.FeedURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト生成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Crossfeed/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if source.ETag != "" {
		req.Header.Set("If-None-Match", source.ETag)
	}
	if source.LastModified != "" {
		req.Header.Set("If-Modified-Since", source.LastModified)
	}

	client := c.ssrfGuard.NewSafeClient(c.timeout, c.maxSize)
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewResolveError(model.ResolveErrorNetwork,
			fmt.Errorf("フィード取得に失敗: %s: %w", source.FeedURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.logger.Debug("フィードは更新されていない", "feed_url", source.FeedURL)
		return &FetchResult{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		kind := model.ResolveErrorNetwork
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			kind = model.ResolveErrorNotFound
		}
		return nil, model.NewResolveError(kind,
			fmt.Errorf("フィード取得で予期しないステータス: %s: %d", source.FeedURL, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize))
	if err != nil {
		return nil, model.NewResolveError(model.ResolveErrorNetwork,
			fmt.Errorf("フィード本文の読み込みに失敗: %s: %w", source.FeedURL, err))
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, model.NewResolveError(model.ResolveErrorDecode,
			fmt.Errorf("フィードの解析に失敗: %s: %w", source.FeedURL, err))
	}

	result := &FetchResult{
		Posts:        convertFeedItems(feed, source),
		Title:        strings.TrimSpace(feed.Title),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	c.logger.Info("フィードを取得した",
		"feed_url", source.FeedURL,
		"item_count", len(result.Posts),
	)
	return result, nil
}

// convertFeedItems はフィード記事を統一投稿モデルへ変換する。
// RSSはスレッド概念を持たないため、全投稿がトップレベルとなる。
// 著者の識別子はフィードURL（フィード単位で1つの「アカウント」とみなす）。
func convertFeedItems(feed *gofeed.Feed, source *model.RSSSource) []model.UnifiedPost {
	author := model.UserIdentity{Value: source.FeedURL, Platform: model.PlatformRSS}
	authorName := strings.TrimSpace(feed.Title)
	if authorName == "" {
		authorName = source.FeedURL
	}

	items := feed.Items
	if len(items) > maxItemsPerFeed {
		items = items[:maxItemsPerFeed]
	}

	posts := make([]model.UnifiedPost, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		createdAt := time.Time{}
		if item.PublishedParsed != nil {
			createdAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			createdAt = *item.UpdatedParsed
		}

		posts = append(posts, model.UnifiedPost{
			ID:                 "rss:" + guid,
			Platform:           model.PlatformRSS,
			Author:             author,
			Content:            itemContent(item),
			CreatedAt:          createdAt,
			PlatformSpecificID: guid,
		})
	}
	return posts
}

// itemContent は記事のタイトルと本文（またはリンク）を1つの本文にまとめる。
func itemContent(item *gofeed.Item) string {
	title := strings.TrimSpace(item.Title)
	body := strings.TrimSpace(item.Description)
	if body == "" {
		body = strings.TrimSpace(item.Link)
	}
	if title == "" {
		return body
	}
	if body == "" {
		return title
	}
	return title + "\n" + body
}
