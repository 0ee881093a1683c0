// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、ハンドラ、ワーカーから利用する。
type MetricsCollector interface {
	ObserveHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordAuthzFailure(kind string)
	RecordContentMutation(content, operation string)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	authzFailures  *prometheus.CounterVec
	mutations      *prometheus.CounterVec
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quora_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quora_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authzFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quora_authz_failures_total",
			Help: "種別ごとの認可エラー数（未サインイン・サインアウト済み・権限なし）",
		}, []string{"kind"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quora_content_mutations_total",
			Help: "質問・回答・ユーザーの作成・編集・削除の成功数",
		}, []string{"content", "operation"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quora_sessions_purged_total",
			Help: "クリーンアップで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.authzFailures,
		c.mutations,
		c.sessionsPurged,
	)

	return c
}

// ObserveHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
func (c *Collector) ObserveHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAuthzFailure は認可エラーを種別ごとに記録する。
func (c *Collector) RecordAuthzFailure(kind string) {
	c.authzFailures.WithLabelValues(kind).Inc()
}

// RecordContentMutation はコンテンツ変更の成功を記録する。
func (c *Collector) RecordContentMutation(content, operation string) {
	c.mutations.WithLabelValues(content, operation).Inc()
}

// RecordSessionsPurged は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) ObserveHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordAuthzFailure(string)                            {}
func (Nop) RecordContentMutation(string, string)                 {}
func (Nop) RecordSessionsPurged(int64)                           {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
