// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// サインイン試行の結果ラベル。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// セッション解決の結果ラベル。
const (
	SessionValid     = "valid"
	SessionAnonymous = "anonymous"
	SessionInvalid   = "invalid"
	SessionRevoked   = "revoked"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービスやミドルウェアから利用する。
type MetricsCollector interface {
	RecordSignInAttempt(provider, result string)
	RecordSignInLatency(provider string, duration time.Duration)
	RecordSignup(result string)
	RecordLogout()
	RecordSessionResolved(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signInAttempts  *prometheus.CounterVec
	signInLatency   *prometheus.HistogramVec
	signups         *prometheus.CounterVec
	logouts         prometheus.Counter
	sessionResolved *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signInAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_signin_attempts_total",
			Help: "プロバイダー・結果別のサインイン試行数",
		}, []string{"provider", "result"}),
		signInLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnhub_signin_latency_seconds",
			Help:    "サインイン処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_signups_total",
			Help: "結果別のサインアップ数",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_logouts_total",
			Help: "ログアウトの合計数",
		}),
		sessionResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_sessions_resolved_total",
			Help: "結果別のセッション解決数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.signInAttempts,
		c.signInLatency,
		c.signups,
		c.logouts,
		c.sessionResolved,
	)

	return c
}

// RecordSignInAttempt はサインイン試行を記録する。
func (c *Collector) RecordSignInAttempt(provider, result string) {
	c.signInAttempts.WithLabelValues(provider, result).Inc()
}

// RecordSignInLatency はサインイン処理のレイテンシを記録する。
func (c *Collector) RecordSignInLatency(provider string, duration time.Duration) {
	c.signInLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordSignup はサインアップ結果を記録する。
func (c *Collector) RecordSignup(result string) {
	c.signups.WithLabelValues(result).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordSessionResolved はセッション解決結果を記録する。
func (c *Collector) RecordSessionResolved(result string) {
	c.sessionResolved.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordSignInAttempt(string, string) {}
func (Nop) RecordSignInLatency(string, time.Duration) {}
func (Nop) RecordSignup(string) {}
func (Nop) RecordLogout() {}
func (Nop) RecordSessionResolved(string) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
