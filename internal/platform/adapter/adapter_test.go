package adapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/crossfeed/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeSanitizer はマーカーを付与するだけのサニタイザ。適用の有無を検証する。
type fakeSanitizer struct{}

func (fakeSanitizer) Sanitize(rawHTML string) string {
	return "sanitized:" + rawHTML
}

// fakeAccountLister はテスト用の連携アカウント一覧。
type fakeAccountLister struct {
	accounts []model.LinkedAccount
	err      error
}

func (l *fakeAccountLister) List(ctx context.Context) ([]model.LinkedAccount, error) {
	return l.accounts, l.err
}

func TestInstanceHost(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://mastodon.social", "mastodon.social"},
		{"https://mastodon.social/", "mastodon.social"},
		{"http://localhost:8080", "localhost:8080"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := instanceHost(tt.input); got != tt.want {
			t.Errorf("instanceHost(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMastodonAdapter_FetchHomeTimeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/timelines/home" {
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{
				"id": "101",
				"created_at": "2026-08-24T12:00:00Z",
				"content": "<p>こんにちは</p>",
				"account": {"id": "1", "acct": "alice"}
			}
		]`)
	}))
	defer server.Close()

	a := NewMastodonAdapter(server.Client(), fakeSanitizer{}, testLogger())
	account := &model.LinkedAccount{
		Platform:    model.PlatformMastodon,
		InstanceURL: server.URL,
		AccessToken: "token",
	}

	posts, err := a.FetchHomeTimeline(context.Background(), account, 40)
	if err != nil {
		t.Fatalf("FetchHomeTimeline() error = %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("投稿数 = %d, want 1", len(posts))
	}
	if posts[0].Content != "sanitized:<p>こんにちは</p>" {
		t.Errorf("本文がサニタイズされていない: %s", posts[0].Content)
	}
	// ローカルアカウントのacctはインスタンスホストで修飾される
	wantAuthor := "alice@" + instanceHost(server.URL)
	if posts[0].Author.Value != wantAuthor {
		t.Errorf("著者 = %s, want %s", posts[0].Author.Value, wantAuthor)
	}
}

func TestMastodonAdapter_FetchFollowing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/1/following" {
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id": "2", "acct": "bob"},
			{"id": "3", "acct": "carol@other.example"}
		]`)
	}))
	defer server.Close()

	a := NewMastodonAdapter(server.Client(), fakeSanitizer{}, testLogger())
	account := &model.LinkedAccount{
		Platform:    model.PlatformMastodon,
		InstanceURL: server.URL,
		AccountID:   "1",
	}

	set, err := a.FetchFollowing(context.Background(), account)
	if err != nil {
		t.Fatalf("FetchFollowing() error = %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("フォロー数 = %d, want 2", set.Len())
	}
	if !set.Contains(model.UserIdentity{Value: "bob@" + instanceHost(server.URL), Platform: model.PlatformMastodon}) {
		t.Error("ローカルアカウントはホスト修飾されるべき")
	}
	if !set.Contains(model.UserIdentity{Value: "carol@other.example", Platform: model.PlatformMastodon}) {
		t.Error("リモートアカウントはそのまま保持されるべき")
	}
}

func TestMastodonThreadResolver_NoAccount(t *testing.T) {
	r := NewMastodonThreadResolver(&fakeAccountLister{}, http.DefaultClient, testLogger())

	_, err := r.ResolveParticipants(context.Background(), &model.UnifiedPost{
		ID:                 "mastodon:101",
		Platform:           model.PlatformMastodon,
		PlatformSpecificID: "101",
	})

	var resolveErr *model.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("ResolveErrorが返るべき: %v", err)
	}
	if resolveErr.Kind != model.ResolveErrorNotFound {
		t.Errorf("kind = %s, want %s", resolveErr.Kind, model.ResolveErrorNotFound)
	}
}

func TestMastodonThreadResolver_ResolvesViaLinkedAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/statuses/101/context" {
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token-a" {
			t.Errorf("認証ヘッダーが不正: %s", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"ancestors": [{"id": "100", "account": {"id": "2", "acct": "bob"}}],
			"descendants": []
		}`)
	}))
	defer server.Close()

	lister := &fakeAccountLister{accounts: []model.LinkedAccount{
		{Platform: model.PlatformBluesky, InstanceURL: "https://bsky.social"},
		{Platform: model.PlatformMastodon, InstanceURL: server.URL, AccessToken: "token-a"},
	}}
	r := NewMastodonThreadResolver(lister, server.Client(), testLogger())

	post := &model.UnifiedPost{
		ID:                 "mastodon:101",
		Platform:           model.PlatformMastodon,
		Author:             model.UserIdentity{Value: "alice@example.com", Platform: model.PlatformMastodon},
		PlatformSpecificID: "101",
	}
	participants, err := r.ResolveParticipants(context.Background(), post)
	if err != nil {
		t.Fatalf("ResolveParticipants() error = %v", err)
	}
	if participants.Len() != 2 {
		t.Fatalf("参加者数 = %d, want 2", participants.Len())
	}
	if !participants.Contains(post.Author) {
		t.Error("投稿自身の著者が参加者に含まれるべき")
	}
}

func TestBlueskyAdapter_FetchHomeTimeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xrpc/app.bsky.feed.getTimeline" {
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"feed": [
				{
					"post": {
						"uri": "at://did:plc:alice/app.bsky.feed.post/1",
						"author": {"did": "did:plc:alice", "handle": "alice.bsky.social"},
						"record": {"text": "こんにちは", "createdAt": "2026-08-24T12:00:00Z"}
					}
				}
			]
		}`)
	}))
	defer server.Close()

	a := NewBlueskyAdapter(server.Client(), testLogger())
	account := &model.LinkedAccount{
		Platform:    model.PlatformBluesky,
		InstanceURL: server.URL,
		AccessToken: "token",
	}

	posts, err := a.FetchHomeTimeline(context.Background(), account, 50)
	if err != nil {
		t.Fatalf("FetchHomeTimeline() error = %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("投稿数 = %d, want 1", len(posts))
	}
	if posts[0].Author.Value != "did:plc:alice" {
		t.Errorf("著者 = %s, want did:plc:alice", posts[0].Author.Value)
	}
	if posts[0].Content != "こんにちは" {
		t.Errorf("本文 = %s", posts[0].Content)
	}
}

func TestBlueskyAdapter_FetchFollowing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xrpc/app.bsky.graph.getFollows" {
			t.Errorf("予期しないパス: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("actor"); got != "did:plc:alice" {
			t.Errorf("actor = %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"follows": [
				{"did": "did:plc:bob", "handle": "bob.bsky.social"},
				{"did": "did:plc:carol", "handle": "carol.bsky.social"}
			]
		}`)
	}))
	defer server.Close()

	a := NewBlueskyAdapter(server.Client(), testLogger())
	account := &model.LinkedAccount{
		Platform:    model.PlatformBluesky,
		InstanceURL: server.URL,
		AccountID:   "did:plc:alice",
	}

	set, err := a.FetchFollowing(context.Background(), account)
	if err != nil {
		t.Fatalf("FetchFollowing() error = %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("フォロー数 = %d, want 2", set.Len())
	}
	if !set.Contains(model.UserIdentity{Value: "did:plc:bob", Platform: model.PlatformBluesky}) {
		t.Error("DIDで正規化されるべき")
	}
}

func TestBlueskyThreadResolver_NoAccount(t *testing.T) {
	r := NewBlueskyThreadResolver(&fakeAccountLister{}, http.DefaultClient, testLogger())

	_, err := r.ResolveParticipants(context.Background(), &model.UnifiedPost{
		ID:                 "bluesky:at://did:plc:alice/app.bsky.feed.post/1",
		Platform:           model.PlatformBluesky,
		PlatformSpecificID: "at://did:plc:alice/app.bsky.feed.post/1",
	})

	var resolveErr *model.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("ResolveErrorが返るべき: %v", err)
	}
	if resolveErr.Kind != model.ResolveErrorNotFound {
		t.Errorf("kind = %s, want %s", resolveErr.Kind, model.ResolveErrorNotFound)
	}
}

func TestThreadResolver_ListerErrorIsNetwork(t *testing.T) {
	lister := &fakeAccountLister{err: errors.New("db down")}
	r := NewBlueskyThreadResolver(lister, http.DefaultClient, testLogger())

	_, err := r.ResolveParticipants(context.Background(), &model.UnifiedPost{
		PlatformSpecificID: "at://did:plc:alice/app.bsky.feed.post/1",
	})

	var resolveErr *model.ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("ResolveErrorが返るべき: %v", err)
	}
	if resolveErr.Kind != model.ResolveErrorNetwork {
		t.Errorf("kind = %s, want %s", resolveErr.Kind, model.ResolveErrorNetwork)
	}
}
