// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordRunSuccess(feedID string)
	RecordRunFailure(feedID string, reason string)
	RecordRunLatency(duration time.Duration)
	RecordProductsValidated(valid, invalid int)
	RecordVersionCreated(format string)
	RecordVersionRollback(feedID string)
	RecordHealth(classification string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	runSuccess      prometheus.Counter
	runFail         *prometheus.CounterVec
	runLatency      prometheus.Histogram
	productsValid   prometheus.Counter
	productsInvalid prometheus.Counter
	versionsCreated *prometheus.CounterVec
	rollbacks       prometheus.Counter
	healthClass     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedgen_run_success_total",
			Help: "フィード生成成功の合計数",
		}),
		runFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedgen_run_fail_total",
			Help: "フィード生成失敗の合計数（失敗理由別）",
		}, []string{"reason"}),
		runLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedgen_run_latency_seconds",
			Help:    "フィード生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		productsValid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedgen_products_valid_total",
			Help: "バリデーションを通過した商品の合計数",
		}),
		productsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedgen_products_invalid_total",
			Help: "バリデーションで除外された商品の合計数",
		}),
		versionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedgen_versions_created_total",
			Help: "作成されたフィードバージョンの合計数（フォーマット別）",
		}, []string{"format"}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedgen_rollbacks_total",
			Help: "実行されたロールバックの合計数",
		}),
		healthClass: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedgen_run_health_total",
			Help: "生成実行のヘルス分類の合計数（healthy/degraded/failed）",
		}, []string{"classification"}),
	}

	reg.MustRegister(
		c.runSuccess,
		c.runFail,
		c.runLatency,
		c.productsValid,
		c.productsInvalid,
		c.versionsCreated,
		c.rollbacks,
		c.healthClass,
	)

	return c
}

// RecordRunSuccess は生成成功を記録する。
func (c *Collector) RecordRunSuccess(feedID string) {
	c.runSuccess.Inc()
}

// RecordRunFailure は生成失敗を記録する。
func (c *Collector) RecordRunFailure(feedID string, reason string) {
	c.runFail.WithLabelValues(reason).Inc()
}

// RecordRunLatency は生成のレイテンシを記録する。
func (c *Collector) RecordRunLatency(duration time.Duration) {
	c.runLatency.Observe(duration.Seconds())
}

// RecordProductsValidated はバリデーション結果の商品数を記録する。
func (c *Collector) RecordProductsValidated(valid, invalid int) {
	c.productsValid.Add(float64(valid))
	c.productsInvalid.Add(float64(invalid))
}

// RecordVersionCreated はバージョン作成を記録する。
func (c *Collector) RecordVersionCreated(format string) {
	c.versionsCreated.WithLabelValues(format).Inc()
}

// RecordVersionRollback はロールバック実行を記録する。
func (c *Collector) RecordVersionRollback(feedID string) {
	c.rollbacks.Inc()
}

// RecordHealth は生成実行のヘルス分類を記録する。
func (c *Collector) RecordHealth(classification string) {
	c.healthClass.WithLabelValues(classification).Inc()
}

// Noop は何も記録しないMetricsCollector実装。テストで使用する。
type Noop struct{}

// RecordRunSuccess は何もしない。
func (Noop) RecordRunSuccess(feedID string) {}

// RecordRunFailure は何もしない。
func (Noop) RecordRunFailure(feedID string, reason string) {}

// RecordRunLatency は何もしない。
func (Noop) RecordRunLatency(duration time.Duration) {}

// RecordProductsValidated は何もしない。
func (Noop) RecordProductsValidated(valid, invalid int) {}

// RecordVersionCreated は何もしない。
func (Noop) RecordVersionCreated(format string) {}

// RecordVersionRollback は何もしない。
func (Noop) RecordVersionRollback(feedID string) {}

// RecordHealth は何もしない。
func (Noop) RecordHealth(classification string) {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
