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
// サービス層、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthEvent(event, outcome string)
	RecordHTTPStatus(statusCode int)
	ObservePasswordHash(duration time.Duration)
	RecordRevocationsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents        *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	passwordHash      prometheus.Histogram
	revocationsPurged prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_auth_events_total",
			Help: "認証イベント（登録・ログイン・ログアウト・検証）の結果別件数",
		}, []string{"event", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		passwordHash: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authgate_password_hash_seconds",
			Help:    "パスワードハッシュ化にかかった時間（秒）",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		revocationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_revocations_purged_total",
			Help: "期限切れで削除された失効エントリの合計数",
		}),
	}

	reg.MustRegister(
		c.authEvents,
		c.httpStatus,
		c.passwordHash,
		c.revocationsPurged,
	)

	return c
}

// RecordAuthEvent は認証イベントの結果を記録する。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// ObservePasswordHash はパスワードハッシュ化の所要時間を記録する。
func (c *Collector) ObservePasswordHash(duration time.Duration) {
	c.passwordHash.Observe(duration.Seconds())
}

// RecordRevocationsPurged は削除した失効エントリ数を記録する。
func (c *Collector) RecordRevocationsPurged(count int64) {
	c.revocationsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
