// Package rss はRSS/Atomフィードをスレッド概念を持たない第3のソースとして
// 統一タイムラインに合流させる機能を提供する。
// フィードURLの自動検出、条件付きGETによるフェッチ、統一投稿モデルへの変換を含む。
package rss

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/crossfeed/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Detector はフィードURLの自動検出機能を提供する。
// 入力URLがフィードそのものであればそのまま返し、HTMLページであれば
// headタグの<link rel="alternate">からフィードURLを検出する。
type Detector struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewDetector はDetectorの新しいインスタンスを生成する。
func NewDetector(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *Detector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &Detector{
		ssrfGuard: ssrfGuard,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// DetectFeedURL はURLがフィードかHTMLかを判定し、フィードURLを返す。
// SSRF検証 → HTTPフェッチ → Content-Type/ボディ判定 → HTMLならリンク検出、の順で処理する。
// フィードを検出できない場合はAPIError（原因カテゴリ＋対処方法）を返す。
func (d *Detector) DetectFeedURL(ctx context.Context, inputURL string) (string, error) {
	if inputURL == "" {
		return "", model.NewInvalidURLError("URLが入力されていません")
	}

	if err := d.ssrfGuard.ValidateURL(inputURL); err != nil {
		return "", model.NewSSRFBlockedError()
	}

	client := d.ssrfGuard.NewSafeClient(d.timeout, d.maxSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Crossfeed/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewFeedNotDetectedError(inputURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize))
	if err != nil {
		return "", model.NewFeedNotDetectedError(inputURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if isDirectFeed(contentType, body) {
		return inputURL, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return "", model.NewFeedNotDetectedError(inputURL)
	}

	feedURL := pickFeedLink(parseFeedLinks(body, inputURL), inputURL)
	if feedURL == "" {
		return "", model.NewFeedNotDetectedError(inputURL)
	}
	return feedURL, nil
}

// feedContentTypes はフィードとして直接認識するContent-Type。
var feedContentTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// xmlContentTypes は汎用XMLのContent-Type（ボディ解析で判定する）。
var xmlContentTypes = map[string]bool{
	"text/xml":        true,
	"application/xml": true,
}

// isDirectFeed はContent-Typeとボディから、レスポンスがRSS/Atomフィードかを判定する。
func isDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	if feedContentTypes[mediaType] {
		return true
	}
	if !xmlContentTypes[mediaType] || len(body) == 0 {
		return false
	}

	// 汎用XMLはボディの先頭部分でルート要素を判定する
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// parseFeedLinks はHTMLのheadタグから<link rel="alternate">のフィードURLを検出する。
// 相対URLはbaseURLを基準に絶対URLへ解決される。
func parseFeedLinks(htmlBody []byte, baseURL string) []string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				return links
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			if linkType != "application/rss+xml" && linkType != "application/atom+xml" {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, baseU.ResolveReference(ref).String())

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return links
			}
		}
	}
}

// pickFeedLink は検出されたフィードURL候補から1つを選択する。
// 入力URLと同一ホストの候補を優先し、なければ先頭を返す。
func pickFeedLink(links []string, inputURL string) string {
	if len(links) == 0 {
		return ""
	}

	inputHost := hostOf(inputURL)
	for _, link := range links {
		if hostOf(link) == inputHost {
			return link
		}
	}
	return links[0]
}

// hostOf はURLから小文字のホスト名を抽出する。
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
