// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/crossfeed/internal/filter"
	"github.com/hitoshi/crossfeed/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// filter.MetricsRecorderとfollowing.MetricsRecorderの両方を実装する。
type Collector struct {
	filterDecision    *prometheus.CounterVec
	filteredOut       prometheus.Counter
	failOpen          prometheus.Counter
	followingFail     *prometheus.CounterVec
	resolveLatency    *prometheus.HistogramVec
	timelineAssembled prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		filterDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crossfeed_filter_decision_total",
			Help: "フィルタ判定の理由別合計数",
		}, []string{"reason"}),
		filteredOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossfeed_filter_filtered_out_total",
			Help: "フィルタで除外された投稿の合計数",
		}),
		failOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossfeed_filter_fail_open_total",
			Help: "解決失敗によりフェイルオープンで表示された投稿の合計数",
		}),
		followingFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crossfeed_following_fetch_fail_total",
			Help: "フォロー集合取得失敗のプラットフォーム別合計数",
		}, []string{"platform"}),
		resolveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crossfeed_resolve_latency_seconds",
			Help:    "スレッド参加者解決のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		timelineAssembled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crossfeed_timeline_assembled_total",
			Help: "組み立てられた統一タイムラインの合計数",
		}),
	}

	reg.MustRegister(
		c.filterDecision,
		c.filteredOut,
		c.failOpen,
		c.followingFail,
		c.resolveLatency,
		c.timelineAssembled,
	)

	return c
}

// FilterDecision はフィルタ判定を理由付きで記録する。
// 除外とフェイルオープンは専用カウンタにも記録する。
func (c *Collector) FilterDecision(reason filter.Reason) {
	c.filterDecision.WithLabelValues(string(reason)).Inc()
	switch reason {
	case filter.ReasonFilteredOut:
		c.filteredOut.Inc()
	case filter.ReasonErrorFailOpen:
		c.failOpen.Inc()
	}
}

// ResolveDuration はスレッド参加者解決のレイテンシを記録する。
func (c *Collector) ResolveDuration(platform model.Platform, elapsed time.Duration) {
	c.resolveLatency.WithLabelValues(string(platform)).Observe(elapsed.Seconds())
}

// FollowingFetchFailed はフォロー集合取得の失敗を記録する。
func (c *Collector) FollowingFetchFailed(platform string) {
	c.followingFail.WithLabelValues(platform).Inc()
}

// TimelineAssembled はタイムライン組み立ての完了を記録する。
func (c *Collector) TimelineAssembled() {
	c.timelineAssembled.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
