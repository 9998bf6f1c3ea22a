// Package metrics はPrometheusメトリクスの収集と公開を提供する。
// 各パッケージが定義する計測フック（Observer）をまとめて実装する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sewa"

// Collector はPrometheusメトリクスを収集する実装。
// middleware.StatusObserver、llm.Observer、donation.Observer、fetch.Observerを満たす。
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	donations     prometheus.Counter
	donatedAmount prometheus.Counter
	pledges       prometheus.Counter
	generations   *prometheus.CounterVec
	genDuration   *prometheus.HistogramVec
	fallbacks     *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "ルートとステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTPリクエストの処理時間（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		donations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_total",
			Help:      "受け付けた金銭寄付の件数",
		}),
		donatedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donated_amount_npr_total",
			Help:      "受け付けた寄付金額の合計（NPR）",
		}),
		pledges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "in_kind_pledges_total",
			Help:      "受け付けた物品寄付の申し出件数",
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "モデルと結果別の文章生成呼び出し数",
		}, []string{"model", "outcome"}),
		genDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "文章生成呼び出しの所要時間（秒）",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"model"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fallbacks_total",
			Help:      "代替モデルへのフォールバック回数",
		}, []string{"from", "to"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_fetch_total",
			Help:      "結果別の活動報告フィード取得数",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_fetch_duration_seconds",
			Help:      "活動報告フィード取得のレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.donations,
		c.donatedAmount,
		c.pledges,
		c.generations,
		c.genDuration,
		c.fallbacks,
		c.fetches,
		c.fetchDuration,
	)

	return c
}

// NewRegistry はGo/プロセスのコレクタを登録済みのレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ObserveHTTPRequest はHTTPリクエスト1件を記録する。
func (c *Collector) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDonation は金銭寄付1件を記録する。
func (c *Collector) ObserveDonation(amount int64) {
	c.donations.Inc()
	if amount > 0 {
		c.donatedAmount.Add(float64(amount))
	}
}

// ObserveInKindPledge は物品寄付の申し出1件を記録する。
func (c *Collector) ObserveInKindPledge() {
	c.pledges.Inc()
}

// ObserveGeneration は文章生成呼び出し1回を記録する。
func (c *Collector) ObserveGeneration(model, outcome string, duration time.Duration) {
	c.generations.WithLabelValues(model, outcome).Inc()
	c.genDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// ObserveFallback は代替モデルへのフォールバックを記録する。
func (c *Collector) ObserveFallback(from, to string) {
	c.fallbacks.WithLabelValues(from, to).Inc()
}

// ObserveFetch は活動報告フィード取得1回を記録する。
func (c *Collector) ObserveFetch(result string, duration time.Duration) {
	c.fetches.WithLabelValues(result).Inc()
	c.fetchDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
