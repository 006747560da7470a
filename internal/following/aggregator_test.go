package following

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
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

type countingMetrics struct {
	failed atomic.Int64
}

func (m *countingMetrics) FollowingFetchFailed(platform string) {
	m.failed.Add(1)
}

func TestAggregator_AggregateFollowing_UnionAcrossAccounts(t *testing.T) {
	fetchers := map[model.Platform]Fetcher{
		model.PlatformMastodon: FetcherFunc(func(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
			return model.NewIdentitySet(
				identity("alice@mastodon.social", model.PlatformMastodon),
				identity("bob@mastodon.social", model.PlatformMastodon),
			), nil
		}),
		model.PlatformBluesky: FetcherFunc(func(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
			return model.NewIdentitySet(
				identity("did:plc:carol", model.PlatformBluesky),
			), nil
		}),
	}

	var buf bytes.Buffer
	a := NewAggregator(fetchers,
		cache.NewExpiring[string, model.IdentitySet](nil),
		10*time.Minute, 10, newTestLogger(&buf), nil)

	got := a.AggregateFollowing(context.Background(), []model.LinkedAccount{
		{ID: "acct-1", Platform: model.PlatformMastodon},
		{ID: "acct-2", Platform: model.PlatformBluesky},
	})

	if got.Len() != 3 {
		t.Fatalf("和集合の要素数 = %d, want 3", got.Len())
	}
	if !got.Contains(identity("did:plc:carol", model.PlatformBluesky)) {
		t.Error("Bluesky側のフォローが含まれるべき")
	}
}

func TestAggregator_AggregateFollowing_FailedAccountContributesNothing(t *testing.T) {
	fetchers := map[model.Platform]Fetcher{
		model.PlatformMastodon: FetcherFunc(func(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
			if account.ID == "acct-broken" {
				return nil, errors.New("接続タイムアウト")
			}
			return model.NewIdentitySet(
				identity("alice@"+account.ID, model.PlatformMastodon),
			), nil
		}),
	}

	var buf bytes.Buffer
	metrics := &countingMetrics{}
	a := NewAggregator(fetchers,
		cache.NewExpiring[string, model.IdentitySet](nil),
		10*time.Minute, 10, newTestLogger(&buf), metrics)

	got := a.AggregateFollowing(context.Background(), []model.LinkedAccount{
		{ID: "acct-1", Platform: model.PlatformMastodon},
		{ID: "acct-broken", Platform: model.PlatformMastodon},
		{ID: "acct-3", Platform: model.PlatformMastodon},
	})

	// 失敗アカウントの寄与は空、成功した2アカウント分のみ
	if got.Len() != 2 {
		t.Fatalf("和集合の要素数 = %d, want 2", got.Len())
	}
	if metrics.failed.Load() != 1 {
		t.Errorf("失敗カウント = %d, want 1", metrics.failed.Load())
	}
	if !bytes.Contains(buf.Bytes(), []byte("acct-broken")) {
		t.Error("失敗アカウントのIDがログに記録されるべき")
	}
}

func TestAggregator_AggregateFollowing_CachesPerAccount(t *testing.T) {
	var calls atomic.Int64
	fetchers := map[model.Platform]Fetcher{
		model.PlatformMastodon: FetcherFunc(func(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
			calls.Add(1)
			return model.NewIdentitySet(
				identity("alice@mastodon.social", model.PlatformMastodon),
			), nil
		}),
	}

	var buf bytes.Buffer
	a := NewAggregator(fetchers,
		cache.NewExpiring[string, model.IdentitySet](nil),
		10*time.Minute, 10, newTestLogger(&buf), nil)

	accounts := []model.LinkedAccount{{ID: "acct-1", Platform: model.PlatformMastodon}}

	a.AggregateFollowing(context.Background(), accounts)
	a.AggregateFollowing(context.Background(), accounts)

	if calls.Load() != 1 {
		t.Errorf("TTL内の2回目はキャッシュが使われるべき: 取得回数 = %d, want 1", calls.Load())
	}
}

func TestAggregator_AggregateFollowing_FailureDoesNotPoisonCache(t *testing.T) {
	var calls atomic.Int64
	fetchers := map[model.Platform]Fetcher{
		model.PlatformMastodon: FetcherFunc(func(ctx context.Context, account *model.LinkedAccount) (model.IdentitySet, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("一時的な障害")
			}
			return model.NewIdentitySet(
				identity("alice@mastodon.social", model.PlatformMastodon),
			), nil
		}),
	}

	var buf bytes.Buffer
	a := NewAggregator(fetchers,
		cache.NewExpiring[string, model.IdentitySet](nil),
		10*time.Minute, 10, newTestLogger(&buf), nil)

	accounts := []model.LinkedAccount{{ID: "acct-1", Platform: model.PlatformMastodon}}

	first := a.AggregateFollowing(context.Background(), accounts)
	if first.Len() != 0 {
		t.Fatalf("失敗時の寄与は空であるべき: %d", first.Len())
	}

	// 失敗結果はキャッシュされないため、次回は再取得して成功する
	second := a.AggregateFollowing(context.Background(), accounts)
	if second.Len() != 1 {
		t.Errorf("失敗後の再試行は成功結果を返すべき: 要素数 = %d, want 1", second.Len())
	}
	if calls.Load() != 2 {
		t.Errorf("取得回数 = %d, want 2", calls.Load())
	}
}

func TestAggregator_AggregateFollowing_UnknownPlatformSkipped(t *testing.T) {
	var buf bytes.Buffer
	a := NewAggregator(map[model.Platform]Fetcher{},
		cache.NewExpiring[string, model.IdentitySet](nil),
		10*time.Minute, 10, newTestLogger(&buf), nil)

	got := a.AggregateFollowing(context.Background(), []model.LinkedAccount{
		{ID: "acct-1", Platform: model.Platform("unknown")},
	})

	if got.Len() != 0 {
		t.Errorf("未対応プラットフォームは空の寄与であるべき: %d", got.Len())
	}
}

func TestAggregator_AggregateFollowing_NoAccounts(t *testing.T) {
	var buf bytes.Buffer
	a := NewAggregator(map[model.Platform]Fetcher{},
		cache.NewExpiring[string, model.IdentitySet](nil),
		10*time.Minute, 10, newTestLogger(&buf), nil)

	got := a.AggregateFollowing(context.Background(), nil)
	if got == nil {
		t.Fatal("アカウントがなくてもnilではなく空集合を返すべき")
	}
	if got.Len() != 0 {
		t.Errorf("要素数 = %d, want 0", got.Len())
	}
}
