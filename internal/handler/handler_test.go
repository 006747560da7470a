package handler

import (
	"context"
	"sync"

	"github.com/hitoshi/crossfeed/internal/model"
)

// fakeAccountRepo はテスト用のインメモリ連携アカウントリポジトリ。
type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []model.LinkedAccount
	err      error
}

func (r *fakeAccountRepo) FindByID(ctx context.Context, id string) (*model.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		if r.accounts[i].ID == id {
			account := r.accounts[i]
			return &account, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) FindByPlatformAccount(ctx context.Context, platform model.Platform, instanceURL, accountID string) (*model.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		a := r.accounts[i]
		if a.Platform == platform && a.InstanceURL == instanceURL && a.AccountID == accountID {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) List(ctx context.Context) ([]model.LinkedAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.LinkedAccount(nil), r.accounts...), r.err
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *model.LinkedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts = append(r.accounts, *account)
	return nil
}

func (r *fakeAccountRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.accounts {
		if r.accounts[i].ID == id {
			r.accounts = append(r.accounts[:i], r.accounts[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeSourceRepo はテスト用のインメモリRSSソースリポジトリ。
type fakeSourceRepo struct {
	mu      sync.Mutex
	sources []model.RSSSource
}

func (r *fakeSourceRepo) FindByID(ctx context.Context, id string) (*model.RSSSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sources {
		if r.sources[i].ID == id {
			source := r.sources[i]
			return &source, nil
		}
	}
	return nil, nil
}

func (r *fakeSourceRepo) FindByFeedURL(ctx context.Context, feedURL string) (*model.RSSSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sources {
		if r.sources[i].FeedURL == feedURL {
			source := r.sources[i]
			return &source, nil
		}
	}
	return nil, nil
}

func (r *fakeSourceRepo) List(ctx context.Context) ([]model.RSSSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.RSSSource(nil), r.sources...), nil
}

func (r *fakeSourceRepo) Create(ctx context.Context, source *model.RSSSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, *source)
	return nil
}

func (r *fakeSourceRepo) UpdateFetchState(ctx context.Context, source *model.RSSSource) error {
	return nil
}

func (r *fakeSourceRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sources {
		if r.sources[i].ID == id {
			r.sources = append(r.sources[:i], r.sources[i+1:]...)
			return nil
		}
	}
	return nil
}

// fakeTimelineService はテスト用のタイムラインサービス。
type fakeTimelineService struct {
	posts []model.UnifiedPost
	err   error
}

func (s *fakeTimelineService) BuildTimeline(ctx context.Context) ([]model.UnifiedPost, error) {
	return s.posts, s.err
}

// fakeDetector はテスト用のフィード検出器。
type fakeDetector struct {
	feedURL string
	err     error
}

func (d *fakeDetector) DetectFeedURL(ctx context.Context, inputURL string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.feedURL, nil
}

// fakeFilterSwitch はテスト用の機能フラグ。
type fakeFilterSwitch struct {
	mu      sync.Mutex
	enabled bool
}

func (f *fakeFilterSwitch) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeFilterSwitch) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}
