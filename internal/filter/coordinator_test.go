package filter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/crossfeed/internal/cache"
	"github.com/hitoshi/crossfeed/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func identity(value string, platform model.Platform) model.UserIdentity {
	return model.UserIdentity{Value: value, Platform: platform}
}

// fakeResolver は呼び出し回数を数えるテスト用リゾルバ。
type fakeResolver struct {
	calls        atomic.Int64
	participants model.IdentitySet
	err          error
	delay        time.Duration
}

func (f *fakeResolver) ResolveParticipants(ctx context.Context, post *model.UnifiedPost) (model.IdentitySet, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.participants, nil
}

func newCoordinator(resolver ThreadResolver, threadCache *cache.Expiring[string, model.IdentitySet], buf *bytes.Buffer) *Coordinator {
	return NewCoordinator(
		map[model.Platform]ThreadResolver{
			model.PlatformMastodon: resolver,
			model.PlatformBluesky:  resolver,
		},
		threadCache,
		Options{
			ThreadTTL:      5 * time.Minute,
			ResolveTimeout: 2 * time.Second,
			MinFollowed:    2,
			MaxConcurrent:  4,
			Enabled:        true,
		},
		newTestLogger(buf),
		nil,
	)
}

func topLevelPost(id string, author model.UserIdentity) model.UnifiedPost {
	return model.UnifiedPost{
		ID:                 "mastodon:" + id,
		Platform:           model.PlatformMastodon,
		Author:             author,
		PlatformSpecificID: id,
	}
}

func replyPost(id string, author model.UserIdentity) model.UnifiedPost {
	return model.UnifiedPost{
		ID:                 "mastodon:" + id,
		Platform:           model.PlatformMastodon,
		Author:             author,
		PlatformSpecificID: id,
		InReplyToID:        "parent-" + id,
	}
}

func TestShouldInclude_TopLevelAlwaysIncluded(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("呼ばれてはいけない")}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	alice := identity("alice@mastodon.social", model.PlatformMastodon)
	post := topLevelPost("1", alice)

	d := c.ShouldInclude(context.Background(), &post, model.NewIdentitySet(alice))

	if !d.Include {
		t.Error("トップレベル投稿は常に包含されるべき")
	}
	if d.Reason != ReasonTopLevel {
		t.Errorf("理由 = %s, want %s", d.Reason, ReasonTopLevel)
	}
	if resolver.calls.Load() != 0 {
		t.Errorf("トップレベル判定でリゾルバが呼ばれるべきではない: %d回", resolver.calls.Load())
	}
}

func TestShouldInclude_DisabledIncludesEverything(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("呼ばれてはいけない")}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)
	c.SetEnabled(false)

	stranger := identity("stranger@other.social", model.PlatformMastodon)
	post := replyPost("1", stranger)

	d := c.ShouldInclude(context.Background(), &post, model.NewIdentitySet())

	if !d.Include {
		t.Error("フィルタ無効時は全投稿が包含されるべき")
	}
	if d.Reason != ReasonTopLevel {
		t.Errorf("理由 = %s, want %s", d.Reason, ReasonTopLevel)
	}
	if resolver.calls.Load() != 0 {
		t.Errorf("フィルタ無効時にリゾルバが呼ばれるべきではない: %d回", resolver.calls.Load())
	}
}

func TestShouldInclude_SelfReplyFromFollowedSkipsResolver(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("呼ばれてはいけない")}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	alice := identity("alice@mastodon.social", model.PlatformMastodon)
	post := replyPost("2", alice)
	post.RootAuthor = &alice

	d := c.ShouldInclude(context.Background(), &post, model.NewIdentitySet(alice))

	if !d.Include {
		t.Error("フォロー中アカウントのセルフリプライは包含されるべき")
	}
	if d.Reason != ReasonSelfReplyFromFollowed {
		t.Errorf("理由 = %s, want %s", d.Reason, ReasonSelfReplyFromFollowed)
	}
	if resolver.calls.Load() != 0 {
		t.Errorf("セルフリプライ判定でリゾルバが呼ばれるべきではない: %d回", resolver.calls.Load())
	}
}

func TestShouldInclude_ThreadWithTwoFollowedParticipants(t *testing.T) {
	alice := identity("alice@mastodon.social", model.PlatformMastodon)
	bob := identity("bob@mastodon.social", model.PlatformMastodon)
	carol := identity("carol@other.social", model.PlatformMastodon)

	// スレッド参加者: フォロー中2名 + 未フォロー1名
	resolver := &fakeResolver{participants: model.NewIdentitySet(alice, bob, carol)}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	post := replyPost("3", carol)
	followed := model.NewIdentitySet(alice, bob)

	d := c.ShouldInclude(context.Background(), &post, followed)

	if !d.Include {
		t.Error("フォロー中参加者が2名いるスレッドのリプライは包含されるべき")
	}
	if d.Reason != ReasonThreadHasEnoughFollowedParticipants {
		t.Errorf("理由 = %s, want %s", d.Reason, ReasonThreadHasEnoughFollowedParticipants)
	}
}

func TestShouldInclude_ThreadWithOneFollowedParticipantFilteredOut(t *testing.T) {
	alice := identity("alice@mastodon.social", model.PlatformMastodon)
	carol := identity("carol@other.social", model.PlatformMastodon)
	dave := identity("dave@other.social", model.PlatformMastodon)

	resolver := &fakeResolver{participants: model.NewIdentitySet(alice, carol, dave)}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	post := replyPost("4", carol)
	followed := model.NewIdentitySet(alice)

	d := c.ShouldInclude(context.Background(), &post, followed)

	if d.Include {
		t.Error("フォロー中参加者が1名だけのスレッドのリプライは除外されるべき")
	}
	if d.Reason != ReasonFilteredOut {
		t.Errorf("理由 = %s, want %s", d.Reason, ReasonFilteredOut)
	}
}

func TestShouldInclude_ResolverFailureFailsOpen(t *testing.T) {
	resolver := &fakeResolver{err: model.NewResolveError(model.ResolveErrorNetwork, errors.New("タイムアウト"))}
	threadCache := cache.NewExpiring[string, model.IdentitySet](nil)
	var buf bytes.Buffer
	c := newCoordinator(resolver, threadCache, &buf)

	carol := identity("carol@other.social", model.PlatformMastodon)
	post := replyPost("5", carol)

	d := c.ShouldInclude(context.Background(), &post, model.NewIdentitySet())

	// フェイルオープンの方向: 除外ではなく包含
	if !d.Include {
		t.Error("解決失敗時は包含（フェイルオープン）であるべき")
	}
	if d.Reason != ReasonErrorFailOpen {
		t.Errorf("理由 = %s, want %s", d.Reason, ReasonErrorFailOpen)
	}
	// 失敗結果はキャッシュに残らない
	if _, ok := threadCache.Get(post.ThreadKey()); ok {
		t.Error("解決失敗時にキャッシュエントリが作られるべきではない")
	}
}

func TestShouldInclude_ResolveTimeoutFailsOpen(t *testing.T) {
	resolver := &fakeResolver{
		participants: model.NewIdentitySet(),
		delay:        5 * time.Second,
	}
	var buf bytes.Buffer
	c := NewCoordinator(
		map[model.Platform]ThreadResolver{model.PlatformMastodon: resolver},
		cache.NewExpiring[string, model.IdentitySet](nil),
		Options{ResolveTimeout: 50 * time.Millisecond, MinFollowed: 2, MaxConcurrent: 4, Enabled: true},
		newTestLogger(&buf),
		nil,
	)

	carol := identity("carol@other.social", model.PlatformMastodon)
	post := replyPost("6", carol)

	d := c.ShouldInclude(context.Background(), &post, model.NewIdentitySet())

	if !d.Include || d.Reason != ReasonErrorFailOpen {
		t.Errorf("タイムアウトは他の解決失敗と同様にフェイルオープンであるべき: %+v", d)
	}
}

func TestShouldInclude_UnknownPlatformFailsOpen(t *testing.T) {
	var buf bytes.Buffer
	c := NewCoordinator(
		map[model.Platform]ThreadResolver{},
		cache.NewExpiring[string, model.IdentitySet](nil),
		Options{Enabled: true},
		newTestLogger(&buf),
		nil,
	)

	carol := identity("carol@other.social", model.PlatformMastodon)
	post := replyPost("7", carol)

	d := c.ShouldInclude(context.Background(), &post, model.NewIdentitySet())

	if !d.Include || d.Reason != ReasonErrorFailOpen {
		t.Errorf("リゾルバ未登録もフェイルオープンであるべき: %+v", d)
	}
}

func TestShouldInclude_CacheConvergenceAcrossConcurrentCalls(t *testing.T) {
	alice := identity("alice@mastodon.social", model.PlatformMastodon)
	bob := identity("bob@mastodon.social", model.PlatformMastodon)
	resolver := &fakeResolver{
		participants: model.NewIdentitySet(alice, bob),
		delay:        10 * time.Millisecond,
	}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	carol := identity("carol@other.social", model.PlatformMastodon)
	followed := model.NewIdentitySet(alice, bob)

	// 同一スレッドを参照する50投稿を並行判定する
	const n = 50
	decisions := make([]Decision, n)
	sem := make(chan struct{}, 4)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			post := replyPost("shared-thread", carol)
			decisions[i] = c.ShouldInclude(context.Background(), &post, followed)
		}(i)
	}
	wg.Wait()

	for i, d := range decisions {
		if !d.Include || d.Reason != ReasonThreadHasEnoughFollowedParticipants {
			t.Fatalf("判定[%d]が他と一致しない: %+v", i, d)
		}
	}
	// キャッシュ収束: 同時実行数を超えるリゾルバ呼び出しは発生しない
	if calls := resolver.calls.Load(); calls > 4 {
		t.Errorf("リゾルバ呼び出し回数 = %d, want <= 4", calls)
	}
}

func TestFilterTimeline_PreservesRelativeOrder(t *testing.T) {
	alice := identity("alice@mastodon.social", model.PlatformMastodon)
	carol := identity("carol@other.social", model.PlatformMastodon)

	// リプライのスレッドにはフォロー中参加者が1名しかいない
	resolver := &fakeResolver{participants: model.NewIdentitySet(alice, carol)}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	a := topLevelPost("a", alice)
	b := replyPost("b", carol)
	cc := topLevelPost("c", alice)

	got := c.FilterTimeline(context.Background(), []model.UnifiedPost{a, b, cc}, model.NewIdentitySet(alice))

	if len(got) != 2 {
		t.Fatalf("包含投稿数 = %d, want 2", len(got))
	}
	if got[0].ID != a.ID || got[1].ID != cc.ID {
		t.Errorf("相対順序が保存されるべき: got [%s, %s], want [%s, %s]",
			got[0].ID, got[1].ID, a.ID, cc.ID)
	}
}

func TestFilterTimeline_EmptyInput(t *testing.T) {
	var buf bytes.Buffer
	c := newCoordinator(&fakeResolver{}, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	got := c.FilterTimeline(context.Background(), nil, model.NewIdentitySet())
	if len(got) != 0 {
		t.Errorf("空入力は空出力であるべき: %d", len(got))
	}
}

func TestSetEnabled_TakesEffectImmediately(t *testing.T) {
	alice := identity("alice@mastodon.social", model.PlatformMastodon)
	carol := identity("carol@other.social", model.PlatformMastodon)
	resolver := &fakeResolver{participants: model.NewIdentitySet(alice, carol)}
	var buf bytes.Buffer
	c := newCoordinator(resolver, cache.NewExpiring[string, model.IdentitySet](nil), &buf)

	post := replyPost("8", carol)
	followed := model.NewIdentitySet(alice)

	if d := c.ShouldInclude(context.Background(), &post, followed); d.Include {
		t.Fatal("フィルタ有効時は除外されるべき前提が崩れている")
	}

	c.SetEnabled(false)
	if c.Enabled() {
		t.Fatal("Enabled() = true, want false")
	}
	if d := c.ShouldInclude(context.Background(), &post, followed); !d.Include {
		t.Error("無効化は以降の判定に即座に反映されるべき")
	}

	c.SetEnabled(true)
	if d := c.ShouldInclude(context.Background(), &post, followed); d.Include {
		t.Error("再有効化も即座に反映されるべき")
	}
}
