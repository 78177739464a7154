// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CallRecorder はリモート呼び出しと行ロードのメトリクス収集のインターフェース。
// transport層とスケジュールローダーから利用する。
type CallRecorder interface {
	RecordCallSuccess(action string)
	RecordCallFailure(action string, reason string)
	RecordFallback(action string)
	RecordCallLatency(action string, duration time.Duration)
	RecordRowEmitted(phase string)
	RecordRowDegraded()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	callSuccess *prometheus.CounterVec
	callFail    *prometheus.CounterVec
	fallback    *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
	rowsEmitted *prometheus.CounterVec
	rowsDegrade prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		callSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kondate_call_success_total",
			Help: "リモート呼び出し成功の合計数",
		}, []string{"action"}),
		callFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kondate_call_fail_total",
			Help: "リモート呼び出し失敗の合計数（原因別）",
		}, []string{"action", "reason"}),
		fallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kondate_call_fallback_total",
			Help: "応答不可視フォールバックに切り替えた呼び出しの合計数",
		}, []string{"action"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kondate_call_latency_seconds",
			Help:    "リモート呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"action"}),
		rowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kondate_rows_emitted_total",
			Help: "表示側へ送出した献立行の合計数（フェーズ別）",
		}, []string{"phase"}),
		rowsDegrade: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kondate_rows_degraded_total",
			Help: "チェック状態の取得に失敗しfalseへ劣化させた行の合計数",
		}),
	}

	reg.MustRegister(
		c.callSuccess,
		c.callFail,
		c.fallback,
		c.callLatency,
		c.rowsEmitted,
		c.rowsDegrade,
	)

	return c
}

// RecordCallSuccess は呼び出し成功を記録する。
func (c *Collector) RecordCallSuccess(action string) {
	c.callSuccess.WithLabelValues(action).Inc()
}

// RecordCallFailure は呼び出し失敗を原因別に記録する。
// reasonはtimeout、network、malformed、unreadableのいずれか。
func (c *Collector) RecordCallFailure(action string, reason string) {
	c.callFail.WithLabelValues(action, reason).Inc()
}

// RecordFallback はフォールバックへの切り替えを記録する。
func (c *Collector) RecordFallback(action string) {
	c.fallback.WithLabelValues(action).Inc()
}

// RecordCallLatency は呼び出しのレイテンシを記録する。
func (c *Collector) RecordCallLatency(action string, duration time.Duration) {
	c.callLatency.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordRowEmitted は行の送出をフェーズ別（parallel/sequential）に記録する。
func (c *Collector) RecordRowEmitted(phase string) {
	c.rowsEmitted.WithLabelValues(phase).Inc()
}

// RecordRowDegraded はチェック状態のfalseへの劣化を記録する。
func (c *Collector) RecordRowDegraded() {
	c.rowsDegrade.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
