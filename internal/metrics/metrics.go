// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン方式のラベル値。
const (
	MethodLocal  = "local"
	MethodGoogle = "google"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、セッションミドルウェア、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(method, result string)
	RecordRegistration(result string)
	RecordSessionResolve(result string)
	RecordItemMutation(operation string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins          *prometheus.CounterVec
	registrations   *prometheus.CounterVec
	sessionResolves *prometheus.CounterVec
	itemMutations   *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itemkeep_login_total",
			Help: "ログイン試行の合計数（方式・結果別）",
		}, []string{"method", "result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itemkeep_registration_total",
			Help: "ローカル登録試行の合計数（結果別）",
		}, []string{"result"}),
		sessionResolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itemkeep_session_resolve_total",
			Help: "セッション解決の合計数（結果別）",
		}, []string{"result"}),
		itemMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itemkeep_item_mutation_total",
			Help: "アイテム変更操作の合計数（操作別）",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "itemkeep_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "itemkeep_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.sessionResolves,
		c.itemMutations,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordRegistration はローカル登録試行の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordSessionResolve はセッション解決の結果を記録する。
func (c *Collector) RecordSessionResolve(result string) {
	c.sessionResolves.WithLabelValues(result).Inc()
}

// RecordItemMutation はアイテム変更操作を記録する。
func (c *Collector) RecordItemMutation(operation string) {
	c.itemMutations.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを設定しない構成やテストで使用する。
type NopCollector struct{}

func (NopCollector) RecordLogin(string, string) {}
func (NopCollector) RecordRegistration(string) {}
func (NopCollector) RecordSessionResolve(string) {}
func (NopCollector) RecordItemMutation(string) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
